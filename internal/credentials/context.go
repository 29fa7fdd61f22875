package credentials

import (
	"context"
	"errors"
)

type ctxKey int

const ctxCredentials ctxKey = iota

func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, ctxCredentials, c)
}

func FromContext(ctx context.Context) (Credentials, error) {
	if c, ok := ctx.Value(ctxCredentials).(Credentials); ok && !c.IsZero() {
		return c, nil
	}
	return Credentials{}, errors.New("credentials not in context")
}
