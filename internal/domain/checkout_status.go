package domain

type CheckoutState string

const (
	CheckoutStateIdle          CheckoutState = "IDLE"
	CheckoutStateSubmitting    CheckoutState = "SUBMITTING"
	CheckoutStateRedirected    CheckoutState = "REDIRECTED"
	CheckoutStateFreeConfirmed CheckoutState = "FREE_CONFIRMED"
	CheckoutStateFailed        CheckoutState = "FAILED"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateIdle: {CheckoutStateSubmitting, CheckoutStateFailed},
	CheckoutStateSubmitting: {
		CheckoutStateRedirected,
		CheckoutStateFreeConfirmed,
		CheckoutStateFailed,
	},
	CheckoutStateRedirected:    {CheckoutStateIdle},
	CheckoutStateFreeConfirmed: {CheckoutStateIdle},
	CheckoutStateFailed:        {CheckoutStateIdle},
}

// CanTransitionTo reports whether the checkout machine may move from one state to the other.
func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateRedirected || s == CheckoutStateFreeConfirmed || s == CheckoutStateFailed
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}

// CheckoutAttempt is the durable part of a checkout: the latest attempt and whether its
// success return has already cleared the cart.
type CheckoutAttempt struct {
	ID            string `json:"attemptId"`
	ReturnHandled bool   `json:"returnHandled"`
}
