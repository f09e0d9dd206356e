package middleware

import "context"

type contextKey string

const (
	ctxRecipientID   contextKey = "recipient_id"
	ctxActorIdentity contextKey = "actor_identity"
)

// RecipientIDFromContext returns the resolved actor registry id for the
// authenticated caller.
func RecipientIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRecipientID).(string); ok {
		return v
	}
	return ""
}

// ActorIdentityFromContext returns the identity the caller presented, either
// a GUID actor id or a legacy GLN.
func ActorIdentityFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorIdentity).(string); ok {
		return v
	}
	return ""
}

// WithRecipientID injects the resolved recipient id into the context.
func WithRecipientID(ctx context.Context, recipientID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRecipientID, recipientID)
}

// WithActorIdentity injects the presented actor identity into the context.
func WithActorIdentity(ctx context.Context, identity string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActorIdentity, identity)
}
