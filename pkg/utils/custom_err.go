package utils

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Validation errors: rejected synchronously, never retried, no processor call
// has been made when these surface.
var (
	ErrCompanyNotFound      = errors.New("company not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrSeatsBelowUsage      = errors.New("seat count below active member usage")
	ErrAdminSeatRequired    = errors.New("at least one admin seat is required")
	ErrInvalidBillingPeriod = errors.New("invalid billing period")
	ErrNoSubscription       = errors.New("no active subscription")
	ErrAlreadySubscribed    = errors.New("subscription already active")
	ErrAddonAlreadyActive   = errors.New("add-on already active")
	ErrAddonNotActive       = errors.New("add-on not active")
	ErrNoSeatAvailable      = errors.New("no seat available for activation")
	ErrLastAdmin            = errors.New("cannot deactivate the last active admin")
	ErrEmailAlreadyExists   = errors.New("email already registered")
	ErrInviteInvalid        = errors.New("invitation token invalid or expired")
	ErrWebhookSignature     = errors.New("webhook signature verification failed")
	ErrDatabaseError        = errors.New("database error")
)

// Processor errors. ErrProcessorUnknownOutcome means the call timed out after
// the request may have reached the processor: the internal record was not
// touched and the true outcome needs the caller (or an operator) to re-check,
// it must not be treated as a plain failure.
var (
	ErrProcessor               = errors.New("payment provider error")
	ErrProcessorUnknownOutcome = errors.New("payment provider outcome unknown")
)

// ErrStateConflict is an optimistic-concurrency collision on the company row.
// The services retry it once; if it reaches a caller it is transient.
var ErrStateConflict = errors.New("subscription state changed concurrently, please retry")

// ReconciliationError records a processor mutation that succeeded while the
// internal write failed. Money and internal state have diverged; it is logged
// at error level and surfaced, never swallowed.
type ReconciliationError struct {
	CompanyID uuid.UUID
	Op        string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation required: %s succeeded at processor but internal update failed for company %s: %v",
		e.Op, e.CompanyID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
