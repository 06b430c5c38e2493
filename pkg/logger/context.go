package logger

import (
	"context"
	"log/slog"
)

type attrsKey struct{}

// WithAttrs returns a context carrying attrs. Loggers built with ContextAttrs
// add them to every record logged with that context.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

// ContextAttrs extracts the attributes stored by WithAttrs as a single inline group.
func ContextAttrs() ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		attrs, ok := ctx.Value(attrsKey{}).([]slog.Attr)
		if !ok || len(attrs) == 0 {
			return slog.Attr{}, false
		}
		return slog.Attr{Key: "", Value: slog.GroupValue(attrs...)}, true
	}
}
