package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/flowerhaven/internal/cart"
)

const (
	defaultGatewayTimeout = 15 * time.Second
	defaultOrderTimeout   = 10 * time.Second
)

// PaymentSession is an open payment with the gateway.
type PaymentSession struct {
	AccessCode       string          `json:"access_code"`
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorization_url,omitempty"`
	Email            string          `json:"email"`
	Amount           decimal.Decimal `json:"amount"`
}

// PaymentResult is the outcome the gateway reports once the shopper finishes paying.
// A nil Err means the payment succeeded under Reference.
type PaymentResult struct {
	Reference string
	Err       error
}

// Gateway is the payment provider.
type Gateway interface {
	InitializePayment(ctx context.Context, email string, amount decimal.Decimal) (*PaymentSession, error)
	// AwaitPayment blocks until the payment reaches a final outcome. An error means
	// the outcome is still unknown, not that the payment failed.
	AwaitPayment(ctx context.Context, session *PaymentSession) (PaymentResult, error)
}

// OrderRecord is what order storage returns for a stored order.
type OrderRecord struct {
	ID          string          `json:"id"`
	OrderNumber string          `json:"order_number"`
	Total       decimal.Decimal `json:"total_amount"`
	Reference   string          `json:"reference"`
	PlacedAt    time.Time       `json:"placed_at"`
}

// OrderService stores confirmed orders.
type OrderService interface {
	CreateOrder(ctx context.Context, payload *OrderPayload) (*OrderRecord, error)
}

// CartSource is the shopper's cart as seen by checkout.
type CartSource interface {
	Snapshot() cart.Snapshot
	Clear(ctx context.Context)
	Deduct(ctx context.Context, quantities map[string]int)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeouts bounds the gateway initialization and order submission calls.
func WithTimeouts(gateway, order time.Duration) Option {
	return func(o *Orchestrator) {
		o.gatewayTimeout = gateway
		o.orderTimeout = order
	}
}

// WithNotifier sets where user-visible notifications go. They are dropped by default.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithValidator replaces the validator built by NewValidator. It must carry the same rules.
func WithValidator(v *validatorv10.Validate) Option {
	return func(o *Orchestrator) { o.validate = v }
}

// WithClock sets the clock that decides which delivery dates are in the past.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator drives one shopper through payment and order submission.
//
// The cart is copied when the form is submitted; both the charged amount and the
// recorded order come from that copy, so later cart edits cannot make them diverge.
type Orchestrator struct {
	mu    sync.Mutex
	state State
	epoch int // bumped whenever an in-flight gateway init must be discarded

	cart     CartSource
	gateway  Gateway
	orders   OrderService
	notifier Notifier
	validate *validatorv10.Validate
	log      *zap.Logger
	now      func() time.Time

	gatewayTimeout time.Duration
	orderTimeout   time.Duration

	details  Details
	snapshot *cart.Snapshot
	session  *PaymentSession
	payload  *OrderPayload
	record   *OrderRecord
}

// New builds an idle orchestrator over the shopper's cart.
func New(c CartSource, gateway Gateway, orders OrderService, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		state:          StateIdle,
		cart:           c,
		gateway:        gateway,
		orders:         orders,
		notifier:       NotifierFunc(func(Notification) {}),
		log:            zap.NewNop(),
		now:            time.Now,
		gatewayTimeout: defaultGatewayTimeout,
		orderTimeout:   defaultOrderTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.validate == nil {
		o.validate = NewValidator()
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Session returns the open payment session, if any.
func (o *Orchestrator) Session() *PaymentSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	s := *o.session
	return &s
}

// Reference returns the gateway reference of the current attempt, if one was issued.
func (o *Orchestrator) Reference() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.referenceLocked()
}

func (o *Orchestrator) referenceLocked() string {
	switch {
	case o.payload != nil:
		return o.payload.Reference()
	case o.session != nil:
		return o.session.Reference
	}
	return ""
}

// Payload returns the order payload once payment has succeeded.
func (o *Orchestrator) Payload() *OrderPayload {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.payload
}

// Record returns the stored order after completion.
func (o *Orchestrator) Record() *OrderRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.record
}

// Submit validates the form, freezes the cart and opens a payment session for its total.
// Validation problems leave the state untouched.
func (o *Orchestrator) Submit(ctx context.Context, details Details) (*PaymentSession, error) {
	o.mu.Lock()
	if o.state == StateOrderSubmissionFailed {
		o.mu.Unlock()
		return nil, ErrReconciliationOpen
	}
	if !o.state.CanTransitionTo(StateAwaitingGatewayInit) {
		state := o.state
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: submit while %s", ErrIllegalTransition, state)
	}

	d := details.normalized()
	if err := validateDetails(o.validate, d, o.now()); err != nil {
		o.mu.Unlock()
		return nil, err
	}

	snap := o.cart.Snapshot()
	if snap.IsEmpty() {
		o.mu.Unlock()
		return nil, ErrEmptyCart
	}

	o.details = d
	o.snapshot = &snap
	o.session = nil
	o.payload = nil
	o.record = nil
	o.mustAdvanceLocked(StateAwaitingGatewayInit)
	o.epoch++
	epoch := o.epoch
	o.mu.Unlock()

	o.log.Info("initializing payment",
		zap.String("email", d.Email),
		zap.String("amount", snap.Total.StringFixed(2)),
		zap.Int("items", snap.ItemCount))

	initCtx, cancel := context.WithTimeout(ctx, o.gatewayTimeout)
	defer cancel()
	session, err := o.gateway.InitializePayment(initCtx, d.Email, snap.Total)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.epoch != epoch || o.state != StateAwaitingGatewayInit {
		return nil, ErrAbandoned
	}

	if err != nil {
		o.resetLocked()
		o.log.Warn("payment initialization failed", zap.Error(err))
		o.notifier.Notify(gatewayInitFailed())
		return nil, fmt.Errorf("%w: %w", ErrGatewayInit, err)
	}

	o.session = session
	o.mustAdvanceLocked(StateAwaitingPaymentConfirmation)
	s := *session
	return &s, nil
}

// Confirm consumes the gateway outcome. A failed payment returns to Idle; a successful
// one builds the order, submits it and clears the cart.
func (o *Orchestrator) Confirm(ctx context.Context, result PaymentResult) (*OrderRecord, error) {
	o.mu.Lock()
	if o.state != StateAwaitingPaymentConfirmation {
		state := o.state
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: confirm while %s", ErrIllegalTransition, state)
	}

	if result.Err != nil {
		ref := o.session.Reference
		o.resetLocked()
		o.mu.Unlock()
		o.log.Warn("payment failed", zap.String("reference", ref), zap.Error(result.Err))
		o.notifier.Notify(paymentFailed(ref))
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, result.Err)
	}

	if result.Reference == "" || (o.session.Reference != "" && result.Reference != o.session.Reference) {
		o.mu.Unlock()
		return nil, ErrReferenceMismatch
	}

	o.mustAdvanceLocked(StateBuildingOrder)
	payload, err := BuildPayload(o.validate, o.details, *o.snapshot, result.Reference)
	if err != nil {
		// The money is taken but there is nothing to resubmit; only Resolve leaves this.
		o.mustAdvanceLocked(StateOrderSubmissionFailed)
		o.mu.Unlock()
		return nil, o.reconciliationFailed(result.Reference, err)
	}
	o.payload = payload
	o.mustAdvanceLocked(StateSubmittingOrder)
	o.mu.Unlock()

	return o.submit(ctx, payload, false)
}

// Checkout runs the whole flow: Submit, wait for the gateway outcome, Confirm.
// If the outcome cannot be determined the attempt stays open for a later Confirm.
func (o *Orchestrator) Checkout(ctx context.Context, details Details) (*OrderRecord, error) {
	session, err := o.Submit(ctx, details)
	if err != nil {
		return nil, err
	}

	result, err := o.gateway.AwaitPayment(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("awaiting payment %s: %w", session.Reference, err)
	}

	return o.Confirm(ctx, result)
}

// RetrySubmission resends the stored payload after a failed order submission.
func (o *Orchestrator) RetrySubmission(ctx context.Context) (*OrderRecord, error) {
	o.mu.Lock()
	if o.state != StateOrderSubmissionFailed || o.payload == nil {
		state := o.state
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: retry while %s", ErrIllegalTransition, state)
	}
	payload := o.payload
	o.mustAdvanceLocked(StateSubmittingOrder)
	o.mu.Unlock()

	return o.submit(ctx, payload, true)
}

// Resolve closes a reconciliation that staff settled outside the shop, for example by
// entering the order by hand or refunding the payment. The cart is left as it is.
func (o *Orchestrator) Resolve() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateOrderSubmissionFailed {
		return fmt.Errorf("%w: resolve while %s", ErrIllegalTransition, o.state)
	}
	o.log.Info("reconciliation resolved by staff", zap.String("reference", o.referenceLocked()))
	o.mustAdvanceLocked(StateCompleted)
	o.snapshot = nil
	return nil
}

// Abandon drops the attempt. It is refused once the payment has been captured.
func (o *Orchestrator) Abandon() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateIdle {
		return nil
	}
	if !o.state.CanTransitionTo(StateIdle) {
		return ErrPaymentCaptured
	}
	o.resetLocked()
	return nil
}

// submit stores payload. A first submission clears the cart; a retry only removes the
// lines that were paid for, keeping whatever the shopper added in the meantime.
func (o *Orchestrator) submit(ctx context.Context, payload *OrderPayload, retry bool) (*OrderRecord, error) {
	submitCtx, cancel := context.WithTimeout(ctx, o.orderTimeout)
	defer cancel()

	record, err := o.orders.CreateOrder(submitCtx, payload)

	o.mu.Lock()
	if err != nil {
		o.mustAdvanceLocked(StateOrderSubmissionFailed)
		o.mu.Unlock()
		return nil, o.reconciliationFailed(payload.Reference(), err)
	}
	o.record = record
	o.mustAdvanceLocked(StateCompleted)
	o.snapshot = nil
	o.mu.Unlock()

	if retry {
		paid := make(map[string]int, len(payload.Items()))
		for _, item := range payload.Items() {
			paid[item.ProductID] += item.Quantity
		}
		o.cart.Deduct(ctx, paid)
	} else {
		o.cart.Clear(ctx)
	}
	o.log.Info("order placed",
		zap.String("order_id", record.ID),
		zap.String("reference", payload.Reference()),
		zap.String("total", payload.Total().StringFixed(2)))
	o.notifier.Notify(orderPlaced(payload.Reference(), record.ID))

	return record, nil
}

func (o *Orchestrator) reconciliationFailed(reference string, cause error) error {
	o.log.Error("payment captured but order not recorded",
		zap.String("reference", reference), zap.Error(cause))
	o.notifier.Notify(reconciliationRequired(reference))
	return &ReconciliationError{Reference: reference, Err: cause}
}

// mustAdvanceLocked moves to next. Callers check their preconditions first, so a move the
// transition table forbids is a programming error.
func (o *Orchestrator) mustAdvanceLocked(next State) {
	if !o.state.CanTransitionTo(next) {
		panic(fmt.Sprintf("checkout: illegal transition %s -> %s", o.state, next))
	}
	o.state = next
}

// resetLocked returns an unpaid or finished attempt to Idle.
func (o *Orchestrator) resetLocked() {
	if o.state != StateIdle {
		o.mustAdvanceLocked(StateIdle)
	}
	o.epoch++
	o.snapshot = nil
	o.session = nil
	o.payload = nil
	o.record = nil
}
