package eventing

import "context"

type contextKey string

const (
	contextKeyEnvelope    contextKey = "eventing.envelope"
	contextKeyBeneficiary contextKey = "eventing.beneficiary_id"
	contextKeyCorr        contextKey = "eventing.correlation_id"
	contextKeyEventID     contextKey = "eventing.event_id"
)

// WithEnvelope attaches envelope metadata to context.
func WithEnvelope(ctx context.Context, env Envelope) context.Context {
	return context.WithValue(ctx, contextKeyEnvelope, env)
}

// EnvelopeFromContext returns envelope metadata if available.
func EnvelopeFromContext(ctx context.Context) (Envelope, bool) {
	value := ctx.Value(contextKeyEnvelope)
	env, ok := value.(Envelope)
	return env, ok
}

// WithBeneficiaryID sets the beneficiary id in context.
func WithBeneficiaryID(ctx context.Context, beneficiaryID string) context.Context {
	return context.WithValue(ctx, contextKeyBeneficiary, beneficiaryID)
}

// WithCorrelationID sets correlation id in context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, contextKeyCorr, correlationID)
}

// WithEventID sets event id in context.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, contextKeyEventID, eventID)
}

// MetaFromContext builds metadata from context.
func MetaFromContext(ctx context.Context) Meta {
	meta := Meta{}
	if value := ctx.Value(contextKeyBeneficiary); value != nil {
		if beneficiaryID, ok := value.(string); ok {
			meta.BeneficiaryID = beneficiaryID
		}
	}
	if value := ctx.Value(contextKeyCorr); value != nil {
		if corr, ok := value.(string); ok {
			meta.CorrelationID = corr
		}
	}
	if value := ctx.Value(contextKeyEventID); value != nil {
		if id, ok := value.(string); ok {
			meta.EventID = id
		}
	}
	return meta
}
