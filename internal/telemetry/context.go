package telemetry

import "context"

type clientKey struct{}

// WithClient attaches a Client to ctx for downstream stages to record against.
func WithClient(ctx context.Context, client Client) context.Context {
	return context.WithValue(ctx, clientKey{}, client)
}

// GetClient returns the Client attached to ctx, or a NoOpClient if none was set.
//
//nolint:ireturn // mirrors WithClient's interface-typed value
func GetClient(ctx context.Context) Client {
	if client, ok := ctx.Value(clientKey{}).(Client); ok {
		return client
	}
	return &NoOpClient{}
}
