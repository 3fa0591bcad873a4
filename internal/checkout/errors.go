package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation          = errors.New("checkout details are invalid")
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrGatewayInit         = errors.New("payment initialization failed")
	ErrPaymentFailed       = errors.New("payment failed")
	ErrOrderNotRecorded    = errors.New("payment captured but order was not recorded")
	ErrIllegalTransition   = errors.New("illegal transition of checkout state")
	ErrReferenceMismatch   = errors.New("payment reference does not match the open payment session")
	ErrPaymentCaptured     = errors.New("payment already captured, checkout can no longer be abandoned")
	ErrReconciliationOpen  = errors.New("a captured payment is still waiting for its order to be recorded")
	ErrAbandoned           = errors.New("checkout was abandoned")
	ErrInvalidOrderPayload = errors.New("order payload is inconsistent")
)

// ValidationError lists the offending checkout fields and their problems.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s (%s)", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ReconciliationError is returned when the gateway captured a payment but the order
// could not be stored. Reference identifies the payment for a human to reconcile.
type ReconciliationError struct {
	Reference string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%s (reference %s): %v", ErrOrderNotRecorded, e.Reference, e.Err)
}

func (e *ReconciliationError) Unwrap() []error {
	return []error{ErrOrderNotRecorded, e.Err}
}
