package instrument

import "context"

type correlationKey struct{}

// SetCorrelationID stores the correlation id used to tie logs, spans and
// broker messages of one request together.
func SetCorrelationID(ctx context.Context, cID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, cID)
}

// GetCorrelationID returns the correlation id from ctx, or "" when unset.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	cID, _ := ctx.Value(correlationKey{}).(string)
	return cID
}
