package instrument

import "context"

type correlationKey struct{}

// SetCorrelationID stores the request correlation id in ctx.
func SetCorrelationID(ctx context.Context, cID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, cID)
}

// GetCorrelationID returns the correlation id carried by ctx, or an empty string.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	cID, _ := ctx.Value(correlationKey{}).(string)
	return cID
}
