package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront/pkg/db"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const orderIDConstraint = "order_receipts_order_id_key"

// Repository persists order receipts.
type Repository interface {
	Create(ctx context.Context, receipt *Receipt) (*Receipt, error)
	FindByOrderID(ctx context.Context, orderID string) (*Receipt, error)
}

type repository struct {
	client *db.Client
}

// NewRepository builds a receipts repository bound to the provided DB client.
func NewRepository(client *db.Client) (Repository, error) {
	if client == nil || client.DB() == nil {
		return nil, fmt.Errorf("db required")
	}
	return &repository{client: client}, nil
}

// Create checks for an existing receipt and inserts in one transaction so a
// duplicate order id is reported as a conflict on every driver.
func (r *repository) Create(ctx context.Context, receipt *Receipt) (*Receipt, error) {
	if receipt == nil || strings.TrimSpace(receipt.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}

	err := r.client.WithTx(ctx, func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Receipt{}).Where("order_id = ?", receipt.OrderID).Count(&existing).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check receipt")
		}
		if existing > 0 {
			return duplicateReceipt(nil, receipt.OrderID)
		}
		if err := tx.Create(receipt).Error; err != nil {
			if db.IsUniqueViolation(err, orderIDConstraint) {
				return duplicateReceipt(err, receipt.OrderID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert receipt")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert receipt")
		}
		return nil, err
	}
	return receipt, nil
}

func duplicateReceipt(err error, orderID string) error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "receipt already recorded").
		WithDetails(map[string]any{"orderId": orderID})
}

func (r *repository) FindByOrderID(ctx context.Context, orderID string) (*Receipt, error) {
	var receipt Receipt
	err := r.client.DB().WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&receipt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find receipt")
	}
	return &receipt, nil
}
