package services

import "errors"

var (
	ErrDuplicateContent    = errors.New("source event with this content already exists")
	ErrSourceEventNotFound = errors.New("source event not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrLinkNotFound        = errors.New("link not found")
	ErrLinkExists          = errors.New("link already exists")
	ErrCardNotFound        = errors.New("card not found")
	ErrCardRequired        = errors.New("card_id is required")
	ErrAmountRequired      = errors.New("amount is required")
	ErrCurrencyRequired    = errors.New("currency is required")
	ErrInvalidSourceType   = errors.New("invalid source type")
	ErrEmptyContent        = errors.New("content is empty")
	ErrNoFile              = errors.New("source event has no stored file")
)
