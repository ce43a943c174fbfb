package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/commerce"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

const defaultConfirmationPath = "/order-success"

// CartEngine is the slice of the synchronization engine checkout needs.
type CartEngine interface {
	Current(ctx context.Context) (cart.Cart, error)
	Refresh(ctx context.Context) (cart.Cart, error)
	CompleteCheckout(ctx context.Context)
}

// OrderGateway places orders against the commerce backend.
type OrderGateway interface {
	SetCustomerInfo(ctx context.Context, cartID string, info commerce.CustomerInfo) (cart.Cart, error)
	SubmitOrder(ctx context.Context, cartID string, order commerce.OrderPayload) (commerce.OrderResult, error)
}

// ReceiptRecorder keeps a local record of placed orders.
type ReceiptRecorder interface {
	Record(ctx context.Context, receipt orders.Receipt) error
}

type Params struct {
	Engine           CartEngine
	Gateway          OrderGateway
	Drafts           DraftStore
	Receipts         ReceiptRecorder
	Logger           *logger.Logger
	CurrencyID       string
	ConfirmationPath string
	Now              func() time.Time
}

// View is what the checkout page renders for the current stage.
type View struct {
	Stage    enums.CheckoutStage `json:"stage"`
	Delivery *DeliveryForm       `json:"delivery,omitempty"`
	Cart     cart.Cart           `json:"cart"`
}

// Confirmation is returned once the order exists upstream.
type Confirmation struct {
	OrderID    string `json:"orderId,omitempty"`
	Folio      *int   `json:"folio,omitempty"`
	RedirectTo string `json:"redirectTo"`
}

// Orchestrator drives the delivery, review and payment stages and the
// final order submission.
type Orchestrator struct {
	engine     CartEngine
	gateway    OrderGateway
	drafts     DraftStore
	receipts   ReceiptRecorder
	logg       *logger.Logger
	currencyID string
	confirmURL string
	now        func() time.Time
}

func NewOrchestrator(params Params) (*Orchestrator, error) {
	if params.Engine == nil {
		return nil, fmt.Errorf("cart engine required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("order gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(params.CurrencyID) == "" {
		return nil, fmt.Errorf("currency id required")
	}
	drafts := params.Drafts
	if drafts == nil {
		drafts = NewMemoryDraftStore()
	}
	confirmURL := params.ConfirmationPath
	if confirmURL == "" {
		confirmURL = defaultConfirmationPath
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		engine:     params.Engine,
		gateway:    params.Gateway,
		drafts:     drafts,
		receipts:   params.Receipts,
		logg:       params.Logger,
		currencyID: params.CurrencyID,
		confirmURL: confirmURL,
		now:        now,
	}, nil
}

// State returns the current stage, the saved delivery details and the cart.
func (o *Orchestrator) State(ctx context.Context) (View, error) {
	c, draft, err := o.load(ctx)
	if err != nil {
		return View{}, err
	}
	return viewOf(draft, c), nil
}

// SubmitDelivery validates the delivery stage and moves to review. The
// contact details are copied onto the remote cart on a best-effort basis.
func (o *Orchestrator) SubmitDelivery(ctx context.Context, form DeliveryForm) (View, error) {
	form, err := ValidateDelivery(form)
	if err != nil {
		return View{}, err
	}
	c, draft, err := o.load(ctx)
	if err != nil {
		return View{}, err
	}
	ctx = o.logg.WithCartID(ctx, c.ID)

	draft.Delivery = &form
	draft.Stage = enums.CheckoutStageReview
	if err := o.save(ctx, draft); err != nil {
		return View{}, err
	}

	info := commerce.CustomerInfo{Name: form.CustomerName(), Email: form.Email, Phone: form.Phone}
	if _, err := o.gateway.SetCustomerInfo(ctx, c.ID, info); err != nil {
		o.logg.Warn(o.logg.WithField(ctx, "reason", err.Error()), "failed to attach customer info to cart")
	}
	return viewOf(draft, c), nil
}

// Advance moves from review to payment.
func (o *Orchestrator) Advance(ctx context.Context) (View, error) {
	c, draft, err := o.load(ctx)
	if err != nil {
		return View{}, err
	}
	if draft.Stage != enums.CheckoutStageReview || draft.Delivery == nil {
		return View{}, stageConflict("only the review stage can advance", draft.Stage)
	}
	draft.Stage = enums.CheckoutStagePayment
	if err := o.save(o.logg.WithCartID(ctx, c.ID), draft); err != nil {
		return View{}, err
	}
	return viewOf(draft, c), nil
}

// Back returns to the previous stage. It is a no-op on the first stage.
func (o *Orchestrator) Back(ctx context.Context) (View, error) {
	c, draft, err := o.load(ctx)
	if err != nil {
		return View{}, err
	}
	prev, ok := draft.Stage.Previous()
	if !ok {
		return viewOf(draft, c), nil
	}
	draft.Stage = prev
	if err := o.save(o.logg.WithCartID(ctx, c.ID), draft); err != nil {
		return View{}, err
	}
	return viewOf(draft, c), nil
}

// Review returns the validated delivery details with the cart as currently
// published. It never refetches.
func (o *Orchestrator) Review(ctx context.Context) (View, error) {
	c, draft, err := o.load(ctx)
	if err != nil {
		return View{}, err
	}
	if draft.Delivery == nil || !draft.Stage.AtLeast(enums.CheckoutStageReview) {
		return View{}, stageConflict("delivery details required before review", draft.Stage)
	}
	return viewOf(draft, c), nil
}

// Submit places the order. Prices are taken from a fresh backend read of the
// cart. On failure the stage and the cart are left as they were.
func (o *Orchestrator) Submit(ctx context.Context, form PaymentForm) (Confirmation, error) {
	c, draft, err := o.load(ctx)
	if err != nil {
		return Confirmation{}, err
	}
	ctx = o.logg.WithOperation(o.logg.WithCartID(ctx, c.ID), "submit_order")

	if draft.Stage != enums.CheckoutStagePayment || draft.Delivery == nil {
		return Confirmation{}, stageConflict("orders can only be placed from the payment stage", draft.Stage)
	}
	form, err = ValidatePayment(form)
	if err != nil {
		return Confirmation{}, err
	}

	fresh, err := o.engine.Refresh(ctx)
	if err != nil {
		return Confirmation{}, err
	}
	if len(fresh.Items) == 0 {
		return Confirmation{}, pkgerrors.New(pkgerrors.CodeStateConflict, "your cart is empty")
	}

	delivery := *draft.Delivery
	result, err := o.gateway.SubmitOrder(ctx, fresh.ID, BuildOrderPayload(o.currencyID, delivery, form))
	if err != nil {
		return Confirmation{}, err
	}
	ctx = o.logg.WithField(ctx, "order_id", result.OrderID)

	o.engine.CompleteCheckout(ctx)
	if err := o.drafts.Delete(ctx, draft.CartID); err != nil {
		o.logg.Warn(o.logg.WithField(ctx, "reason", err.Error()), "failed to delete checkout draft")
	}

	if result.OrderID == "" {
		o.logg.Warn(ctx, "order created without an id; skipping receipt")
	} else if o.receipts != nil {
		receipt := orders.Receipt{
			OrderID:       result.OrderID,
			Folio:         result.Folio,
			CartID:        fresh.ID,
			CustomerName:  delivery.CustomerName(),
			CustomerEmail: delivery.Email,
			DeliveryType:  delivery.DeliveryType,
			CurrencyID:    o.currencyID,
			ItemCount:     fresh.ItemCount(),
			Total:         fresh.Total,
		}
		if err := o.receipts.Record(ctx, receipt); err != nil {
			o.logg.Error(ctx, "failed to record order receipt", err)
		}
	}

	o.logg.Info(ctx, "order placed")
	return Confirmation{
		OrderID:    result.OrderID,
		Folio:      result.Folio,
		RedirectTo: o.redirectFor(result.OrderID),
	}, nil
}

func (o *Orchestrator) load(ctx context.Context) (cart.Cart, Draft, error) {
	c, err := o.engine.Current(ctx)
	if err != nil {
		return cart.Cart{}, Draft{}, err
	}
	draft, ok, err := o.drafts.Load(ctx, c.ID)
	if err != nil {
		return cart.Cart{}, Draft{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout draft")
	}
	if !ok || !draft.Stage.IsValid() {
		draft = Draft{CartID: c.ID, Stage: enums.CheckoutStageDelivery}
	}
	return c, draft, nil
}

func (o *Orchestrator) save(ctx context.Context, draft Draft) error {
	draft.UpdatedAt = o.now().UTC()
	if err := o.drafts.Save(ctx, draft); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout draft")
	}
	return nil
}

func (o *Orchestrator) redirectFor(orderID string) string {
	if orderID == "" {
		return o.confirmURL
	}
	return o.confirmURL + "?orderId=" + url.QueryEscape(orderID)
}

func viewOf(draft Draft, c cart.Cart) View {
	return View{Stage: draft.Stage, Delivery: draft.Delivery, Cart: c}
}

func stageConflict(msg string, stage enums.CheckoutStage) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).
		WithDetails(map[string]any{"stage": stage.String()})
}
