package appctx

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const clientIDKey ctxKey = "clientID"

// WithClientID добавляет clientID в контекст
func WithClientID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}

// ClientID извлекает clientID из контекста
func ClientID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(clientIDKey).(uuid.UUID)
	return id, ok
}
