package orders

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrWrongState        = errors.New("wrong order state")
	ErrAlreadyProcessed  = errors.New("order already processed")
	ErrExpired           = errors.New("order payment deadline passed")
)
