package logger

import (
	"log/slog"

	"github.com/yndnr/savekeep-go/internal/core/domain"
)

// expandError renders error-valued attributes as a group carrying the
// message and, for pipeline errors, the stable error code.
func expandError(a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	err, ok := a.Value.Any().(error)
	if !ok || err == nil {
		return a
	}
	code := domain.GetErrorCode(err)
	if code == "" {
		return slog.String(a.Key, err.Error())
	}
	return slog.Group(a.Key,
		slog.String("msg", err.Error()),
		slog.String("code", code),
	)
}
