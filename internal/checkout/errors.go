package checkout

import "errors"

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrShippingIncomplete = errors.New("shipping address is incomplete")
	ErrNoRedirectTarget   = errors.New("payment session response has neither url nor id")
	ErrIllegalTransition  = errors.New("illegal transition of checkout state")
)

// User-visible messages.
const (
	msgEmptyCart      = "Your cart is empty."
	msgCreateFailed   = "Unable to create the payment session."
	msgRedirectFailed = "Redirect to the payment page failed."
	msgShipping       = "Shipping details are required for a free order: "
)
