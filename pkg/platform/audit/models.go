package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryLedger covers balance-changing actions. Long retention.
	CategoryLedger EventCategory = "ledger"

	// CategoryVerification covers trust-profile outcomes and admin overrides.
	CategoryVerification EventCategory = "verification"

	// CategorySecurity covers rejected protocol calls and registry changes
	// that affect which instances receive pushed profiles.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity; can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// Subject is the aggregate the event is about (usually a company ID).
	Subject string
	// Principal is the caller on whose behalf the action ran, if any.
	Principal string
	// Counterparty is the other account for transfers.
	Counterparty string
	Amount       int64
	Decision     string
	Reason       string
	RequestID    string
	// ActorID tracks who performed the action when different from Principal,
	// e.g. "admin" or "scheduler".
	ActorID     string
	DeviceLabel string
}

type AuditEvent string

const (
	EventCompanyCreated   AuditEvent = "company_created"
	EventTokensBought     AuditEvent = "tokens_bought"
	EventTokensSold       AuditEvent = "tokens_sold"
	EventTransferExecuted AuditEvent = "transfer_executed"
	EventTransferRejected AuditEvent = "transfer_rejected"

	EventVerificationStarted    AuditEvent = "verification_started"
	EventVerificationCompleted  AuditEvent = "verification_completed"
	EventVerificationFailed     AuditEvent = "verification_failed"
	EventVerificationCancelled  AuditEvent = "verification_cancelled"
	EventVerificationOverridden AuditEvent = "verification_overridden"
	EventProfileReceived        AuditEvent = "profile_received"

	EventDependentRegistered   AuditEvent = "dependent_registered"
	EventDependentUnregistered AuditEvent = "dependent_unregistered"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCompanyCreated:   CategoryLedger,
	EventTokensBought:     CategoryLedger,
	EventTokensSold:       CategoryLedger,
	EventTransferExecuted: CategoryLedger,

	EventVerificationCompleted:  CategoryVerification,
	EventVerificationFailed:     CategoryVerification,
	EventVerificationOverridden: CategoryVerification,
	EventProfileReceived:        CategoryVerification,

	EventTransferRejected:      CategorySecurity,
	EventDependentRegistered:   CategorySecurity,
	EventDependentUnregistered: CategorySecurity,

	EventVerificationStarted:   CategoryOperations,
	EventVerificationCancelled: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// Sink receives a copy of every persisted event (e.g. a Kafka mirror).
// Sink failures never fail the emitting operation.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}
