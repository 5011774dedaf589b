package logging

import (
	"context"

	"github.com/google/uuid"
)

type debugKeyContext struct{}

// EnableDebugMode returns a context under which C* debug entries are logged at any logger level.
// Such entries carry debugKey in a "debug_key" field; an empty debugKey is replaced by a random one.
func EnableDebugMode(ctx context.Context, debugKey string) context.Context {
	if debugKey == "" {
		debugKey = uuid.NewString()[:8]
	}
	return context.WithValue(ctx, debugKeyContext{}, debugKey)
}

// IsDebugMode reports whether ctx came from EnableDebugMode.
func IsDebugMode(ctx context.Context) bool {
	return debugKey(ctx) != ""
}

func debugKey(ctx context.Context) string {
	key, _ := ctx.Value(debugKeyContext{}).(string)
	return key
}
