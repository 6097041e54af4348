package checkout

import (
	"context"
	"sort"
	"sync"

	"tableside/internal/models"

	"go.uber.org/zap"
)

// Gateway is the backend surface used to settle orders
type Gateway interface {
	AddPayment(ctx context.Context, req models.PaymentRequest, idempotencyKey string) (*models.Payment, error)
	UpdateOrderStatus(ctx context.Context, orderID uint, status models.OrderStatus) (*models.Order, error)
	ApproveOrder(ctx context.Context, req models.PaymentRequest, idempotencyKey string) (*models.Approval, error)
}

// Observer is told how each approval attempt ended
type Observer interface {
	ApprovalFinished(mode models.PaymentMode, method models.PaymentMethod, outcome string)
}

// Outcomes reported to an Observer
const (
	OutcomeApproved    = "approved"
	OutcomeRejected    = "rejected"
	OutcomeUnconfirmed = "unconfirmed"
	OutcomeInvalid     = "invalid"
	OutcomeBusy        = "busy"
)

// Result is a successful approval
type Result struct {
	Order   *models.Order
	Payment models.Payment
}

// Approver submits validated payment forms. At most one approval per order
// runs at a time.
type Approver struct {
	gateway  Gateway
	atomic   bool
	observer Observer
	logger   *zap.Logger

	mu          sync.Mutex
	inFlight    map[uint]struct{}
	unconfirmed map[uint]models.Payment
}

// Option configures an Approver
type Option func(*Approver)

// WithAtomicApproval selects the single-transaction POST /orders/approve
// endpoint instead of separate payment and status calls.
func WithAtomicApproval(enabled bool) Option {
	return func(a *Approver) { a.atomic = enabled }
}

// WithObserver reports approval outcomes, e.g. to metrics.
func WithObserver(o Observer) Option {
	return func(a *Approver) { a.observer = o }
}

// WithLogger sets the logger used for approval events.
func WithLogger(l *zap.Logger) Option {
	return func(a *Approver) { a.logger = l }
}

// NewApprover creates an approver. Atomic approval is on by default.
func NewApprover(gateway Gateway, opts ...Option) *Approver {
	a := &Approver{
		gateway:     gateway,
		atomic:      true,
		logger:      zap.NewNop(),
		inFlight:    make(map[uint]struct{}),
		unconfirmed: make(map[uint]models.Payment),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Approve validates the form and settles its order. Validation failures are
// returned as *ValidationError without contacting the backend; backend and
// transport failures are returned as *ApprovalError.
//
// If an earlier approval of the same order recorded a payment but failed to
// confirm the order, Approve only retries the confirmation.
func (a *Approver) Approve(ctx context.Context, form *PaymentForm) (*Result, error) {
	intent, err := form.Intent()
	if err != nil {
		a.observe(form.Mode(), form.Method(), OutcomeInvalid)
		return nil, err
	}
	if !a.acquire(intent.OrderID) {
		a.observe(intent.Mode, intent.Method, OutcomeBusy)
		return nil, ErrApprovalInFlight
	}
	defer a.release(intent.OrderID)

	if payment, ok := a.unconfirmedPayment(intent.OrderID); ok {
		return a.confirm(ctx, intent, payment)
	}
	if a.atomic {
		return a.approveAtomic(ctx, intent)
	}
	return a.approveInSteps(ctx, intent)
}

// Resume confirms an order whose payment was recorded by an earlier
// approval that failed at the confirmation step.
func (a *Approver) Resume(ctx context.Context, orderID uint) (*Result, error) {
	payment, ok := a.unconfirmedPayment(orderID)
	if !ok {
		return nil, ErrNothingToResume
	}
	if !a.acquire(orderID) {
		return nil, ErrApprovalInFlight
	}
	defer a.release(orderID)

	intent := PaymentIntent{
		OrderID:    orderID,
		Mode:       modeOf(payment.Status),
		Method:     payment.Method,
		AmountPaid: payment.AmountPaid,
	}
	return a.confirm(ctx, intent, payment)
}

// Unconfirmed returns the IDs of orders that have a recorded payment but are
// still waiting for confirmation.
func (a *Approver) Unconfirmed() []uint {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]uint, 0, len(a.unconfirmed))
	for id := range a.unconfirmed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (a *Approver) approveAtomic(ctx context.Context, intent PaymentIntent) (*Result, error) {
	approval, err := a.gateway.ApproveOrder(ctx, intent.Request(), intent.IdempotencyKey)
	if err != nil {
		a.logger.Warn("order approval rejected",
			zap.Uint("order_id", intent.OrderID),
			zap.Error(err))
		a.observe(intent.Mode, intent.Method, OutcomeRejected)
		return nil, &ApprovalError{OrderID: intent.OrderID, Stage: StageApprove, Err: err}
	}
	a.logger.Info("order approved",
		zap.Uint("order_id", intent.OrderID),
		zap.String("mode", string(intent.Mode)),
		zap.String("method", string(intent.Method)),
		zap.Int64("amount_paid", int64(intent.AmountPaid)))
	a.observe(intent.Mode, intent.Method, OutcomeApproved)
	return &Result{Order: &approval.Order, Payment: approval.Payment}, nil
}

func (a *Approver) approveInSteps(ctx context.Context, intent PaymentIntent) (*Result, error) {
	payment, err := a.gateway.AddPayment(ctx, intent.Request(), intent.IdempotencyKey)
	if err != nil {
		a.logger.Warn("payment rejected",
			zap.Uint("order_id", intent.OrderID),
			zap.Error(err))
		a.observe(intent.Mode, intent.Method, OutcomeRejected)
		return nil, &ApprovalError{OrderID: intent.OrderID, Stage: StagePayment, Err: err}
	}

	a.mu.Lock()
	a.unconfirmed[intent.OrderID] = *payment
	a.mu.Unlock()

	return a.confirm(ctx, intent, *payment)
}

func (a *Approver) confirm(ctx context.Context, intent PaymentIntent, payment models.Payment) (*Result, error) {
	order, err := a.gateway.UpdateOrderStatus(ctx, intent.OrderID, models.OrderStatusConfirmed)
	if err != nil {
		a.logger.Error("payment recorded but order not confirmed",
			zap.Uint("order_id", intent.OrderID),
			zap.Uint("payment_id", payment.ID),
			zap.Error(err))
		a.observe(intent.Mode, intent.Method, OutcomeUnconfirmed)
		return nil, &ApprovalError{OrderID: intent.OrderID, Stage: StageConfirm, PaymentRecorded: true, Err: err}
	}

	a.mu.Lock()
	delete(a.unconfirmed, intent.OrderID)
	a.mu.Unlock()

	a.logger.Info("order approved",
		zap.Uint("order_id", intent.OrderID),
		zap.Uint("payment_id", payment.ID),
		zap.String("method", string(payment.Method)))
	a.observe(intent.Mode, intent.Method, OutcomeApproved)
	return &Result{Order: order, Payment: payment}, nil
}

func (a *Approver) unconfirmedPayment(orderID uint) (models.Payment, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.unconfirmed[orderID]
	return p, ok
}

func (a *Approver) acquire(orderID uint) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inFlight[orderID]; busy {
		return false
	}
	a.inFlight[orderID] = struct{}{}
	return true
}

func (a *Approver) release(orderID uint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, orderID)
}

func (a *Approver) observe(mode models.PaymentMode, method models.PaymentMethod, outcome string) {
	if a.observer != nil {
		a.observer.ApprovalFinished(mode, method, outcome)
	}
}

func modeOf(status models.PaymentStatus) models.PaymentMode {
	if status == models.PaymentStatusPartial {
		return models.PaymentModePartial
	}
	return models.PaymentModeFull
}
