package models

import (
	"errors"
	"fmt"
)

var (
	ErrConflictData = errors.New("data conflicts with existing data")

	ErrSignatureInvalid        = errors.New("signature invalid")
	ErrPayloadMalformed        = errors.New("payload malformed")
	ErrMissingOrderReference   = fmt.Errorf("%w: missing order reference", ErrPayloadMalformed)
	ErrOrderNotFound           = errors.New("order not found")
	ErrReferenceMismatch       = errors.New("payment reference does not match order")
	ErrTerminalStateConflict   = errors.New("order already in opposite terminal state")
	ErrPaymentInitiationFailed = errors.New("payment initiation failed")
	ErrUnknownProvider         = errors.New("unknown payment provider")
	ErrOrderNotPayable         = errors.New("order is not payable")

	ErrEmptyCart       = errors.New("cart is empty")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("invalid quantity")

	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenCreation = errors.New("error creating token")
)
