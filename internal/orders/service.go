package orders

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// Service records receipts for placed orders and serves the confirmation view.
type Service interface {
	Record(ctx context.Context, receipt Receipt) error
	Confirmation(ctx context.Context, orderID string) (*Receipt, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the receipts service. A nil repository yields a service
// that skips recording and reports every confirmation as not found.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// Record stores the receipt. Callers treat failures as non-fatal since the
// order already exists upstream.
func (s *service) Record(ctx context.Context, receipt Receipt) error {
	if s.repo == nil {
		s.logg.Debug(ctx, "receipt store disabled; skipping receipt")
		return nil
	}
	if _, err := s.repo.Create(ctx, &receipt); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "order_id", receipt.OrderID), "order receipt recorded")
	return nil
}

func (s *service) Confirmation(ctx context.Context, orderID string) (*Receipt, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if s.repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.repo.FindByOrderID(ctx, orderID)
}
