package safego

import (
	"context"
	"log/slog"
)

func logPanic(ctx context.Context, l *slog.Logger, info PanicInfo) {
	if l == nil {
		l = slog.Default()
	}
	attrs := make([]slog.Attr, 0, len(info.Attrs)+3)
	if info.Name != "" {
		attrs = append(attrs, slog.String("name", info.Name))
	}
	attrs = append(attrs, info.Attrs...)
	attrs = append(attrs, slog.Any("value", info.Value))
	if len(info.Stack) > 0 {
		attrs = append(attrs, slog.String("stack", string(info.Stack)))
	}
	l.LogAttrs(ctx, slog.LevelError, "safego: panic", attrs...)
}

func logError(ctx context.Context, l *slog.Logger, info ErrorInfo) {
	if l == nil {
		l = slog.Default()
	}
	attrs := make([]slog.Attr, 0, len(info.Attrs)+2)
	if info.Name != "" {
		attrs = append(attrs, slog.String("name", info.Name))
	}
	attrs = append(attrs, info.Attrs...)
	attrs = append(attrs, slog.Any("err", info.Err))
	l.LogAttrs(ctx, slog.LevelError, "safego: error", attrs...)
}

func cloneAttrs(attrs []slog.Attr) []slog.Attr {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]slog.Attr, len(attrs))
	copy(out, attrs)
	return out
}
