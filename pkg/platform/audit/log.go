package audit

import (
	"context"
	"log/slog"

	"trustex/pkg/platform/attrs"
	"trustex/pkg/requestcontext"
)

// Emitter is the publishing side services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// LogAudit writes an audit line to the structured logger and emits an Event
// built from the same attributes. Recognized keys: company_id, principal,
// counterparty, amount, decision, reason, actor.
func LogAudit(ctx context.Context, logger *slog.Logger, emitter Emitter, event AuditEvent, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}
	args := append(attrList, "event", string(event), "log_type", "audit")
	if logger != nil {
		logger.InfoContext(ctx, string(event), args...)
	}
	if emitter == nil {
		return
	}

	principal := attrs.ExtractString(attrList, "principal")
	if principal == "" {
		principal = requestcontext.Principal(ctx).String()
	}
	err := emitter.Emit(ctx, Event{
		Category:     event.Category(),
		Timestamp:    requestcontext.Now(ctx),
		Action:       string(event),
		Subject:      attrs.ExtractString(attrList, "company_id"),
		Principal:    principal,
		Counterparty: attrs.ExtractString(attrList, "counterparty"),
		Amount:       attrs.ExtractInt64(attrList, "amount"),
		Decision:     attrs.ExtractString(attrList, "decision"),
		Reason:       attrs.ExtractString(attrList, "reason"),
		RequestID:    requestID,
		ActorID:      attrs.ExtractString(attrList, "actor"),
		DeviceLabel:  requestcontext.DeviceLabel(ctx),
	})
	if err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(event),
			"error", err,
		)
	}
}
