package checkout

// State is the position of a checkout attempt in the payment-then-order sequence.
type State string

const (
	StateIdle                        State = "IDLE"
	StateAwaitingGatewayInit         State = "AWAITING_GATEWAY_INIT"
	StateAwaitingPaymentConfirmation State = "AWAITING_PAYMENT_CONFIRMATION"
	StateBuildingOrder               State = "BUILDING_ORDER"
	StateSubmittingOrder             State = "SUBMITTING_ORDER"
	StateCompleted                   State = "COMPLETED"
	StateOrderSubmissionFailed       State = "ORDER_SUBMISSION_FAILED"
)

// transitions is enforced by the orchestrator on every state change. Nothing past
// BuildingOrder leads back to Idle: once paid, an attempt ends Completed.
var transitions = map[State][]State{
	StateIdle:                        {StateAwaitingGatewayInit},
	StateAwaitingGatewayInit:         {StateAwaitingPaymentConfirmation, StateIdle},
	StateAwaitingPaymentConfirmation: {StateBuildingOrder, StateIdle},
	StateBuildingOrder:               {StateSubmittingOrder, StateOrderSubmissionFailed},
	StateSubmittingOrder:             {StateCompleted, StateOrderSubmissionFailed},
	StateOrderSubmissionFailed:       {StateSubmittingOrder, StateCompleted},
	StateCompleted:                   {StateAwaitingGatewayInit, StateIdle},
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentCaptured reports whether the gateway has already taken the shopper's money.
func (s State) PaymentCaptured() bool {
	switch s {
	case StateBuildingOrder, StateSubmittingOrder, StateCompleted, StateOrderSubmissionFailed:
		return true
	}
	return false
}

// String returns the state name.
func (s State) String() string {
	return string(s)
}
