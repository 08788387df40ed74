package storage

import "errors"

// ErrNotFound is returned when a keyed lookup matches no record.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when an insert-if-absent finds an existing record.
var ErrAlreadyExists = errors.New("record already exists")

// ErrConditionFailed is returned when a conditional update matches zero records.
var ErrConditionFailed = errors.New("condition check failed")

// ErrBalanceCheckFailed is returned when a draw is cancelled because the relation is not active
// or does not have enough available credit.
var ErrBalanceCheckFailed = errors.New("relation balance or status check failed")

// ErrTokenCheckFailed is returned when a draw is cancelled because its QR token could not be consumed.
var ErrTokenCheckFailed = errors.New("qr token check failed")

// ErrVersionConflict is returned when an optimistic version lock on a relation fails.
var ErrVersionConflict = errors.New("relation version conflict")

// ErrTransactionSettled is returned when a repayment targets a transaction that is no longer open.
var ErrTransactionSettled = errors.New("transaction not in a payable state")
