package models

import "time"

// Priority levels for exception rows (spec §4.3, §7).
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// ExceptionStatusPending is the status every newly emitted exception row
// starts in; resolution happens out-of-band.
const ExceptionStatusPending = "pending"

// Exception type codes emitted by the domain steps.
const (
	ExceptionMissingCurrency       = "MISSING_CURRENCY"
	ExceptionInvalidCurrency       = "INVALID_CURRENCY"
	ExceptionFXRateMissing         = "FX_RATE_MISSING"
	ExceptionOldFXRate             = "OLD_FX_RATE"
	ExceptionMissingCustomer       = "MISSING_CUSTOMER"
	ExceptionInactiveCustomer      = "INACTIVE_CUSTOMER"
	ExceptionLowConfidenceID       = "LOW_CONFIDENCE_IDENTIFICATION"
	ExceptionCounterpartyNotFound  = "COUNTERPARTY_NOT_FOUND"
	ExceptionNoF14Rules            = "NO_F14_RULES"
	ExceptionNoRuleMatch           = "NO_RULE_MATCH"
)

// AuditLogRow mirrors an audit_log append (spec §3, §7). Audit emission is
// best-effort and must never fail the row it documents.
type AuditLogRow struct {
	ID            string
	TransactionID string
	StepName      string
	Action        string
	Details       string
	Timestamp     time.Time
	Status        string
}

// ExceptionRow mirrors an exception_queue append.
type ExceptionRow struct {
	ID              string
	TransactionID   string
	StatementID     string
	SourceType      SourceType
	ExceptionType   string
	Details         string
	Amount          string
	Currency        string
	TransactionDate time.Time
	Priority        string
	Status          string
	AssignedTo      string
	DueDate         time.Time
	ExceptionDate   time.Time
	// Context is a small bag of source-type-specific fields included to
	// aid human resolution (e.g. description, d_c, other-side name for
	// BANK; type, ticker, description for SECU).
	Context map[string]string
}

// dueDateOffsets and assignees implement the priority -> SLA table in
// spec §4.2.
var dueDateOffsets = map[string]time.Duration{
	PriorityCritical: 24 * time.Hour,
	PriorityHigh:     24 * time.Hour,
	PriorityMedium:   3 * 24 * time.Hour,
	PriorityLow:      7 * 24 * time.Hour,
}

// AssigneeFor returns the default queue a priority/FX-specific exception is
// routed to: critical/high go to a supervisor (or the FX specialist for
// FX-specific exception types), medium/low go to operations.
func AssigneeFor(priority string, fxSpecific bool) string {
	switch priority {
	case PriorityCritical, PriorityHigh:
		if fxSpecific {
			return "fx_specialist"
		}
		return "supervisor"
	default:
		return "operations"
	}
}

// DueDateFor returns the exception's due date given its priority and the
// moment it was raised.
func DueDateFor(priority string, raisedAt time.Time) time.Time {
	offset, ok := dueDateOffsets[priority]
	if !ok {
		offset = dueDateOffsets[PriorityLow]
	}
	return raisedAt.Add(offset)
}

// AmountPriority implements the amount-derived priority table in spec §4.3,
// used whenever a step has no fixed priority of its own.
func AmountPriority(absAmount float64) string {
	switch {
	case absAmount >= 1_000_000:
		return PriorityCritical
	case absAmount >= 100_000:
		return PriorityHigh
	case absAmount >= 10_000:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
