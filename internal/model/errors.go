package model

import "errors"

var (
	ErrMarketNotFound      = errors.New("market not found")
	ErrNotYetResolved      = errors.New("market not yet resolved")
	ErrUnmappedOutcome     = errors.New("unmapped market outcome")
	ErrTransactionReverted = errors.New("transaction reverted")
)
