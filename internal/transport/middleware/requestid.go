package middleware

import (
	"context"
	"net/http"

	"github.com/stempede/stempede-api/pkg/logger"

	"github.com/google/uuid"
)

const traceHeader = "X-Trace-ID"

type traceIDKey struct{}

// RequestID tags every request with a trace ID, honoring one supplied by the
// caller. The ID lands in the request context, the slog context, and the
// response header so clients can quote it when reporting a problem.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(traceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), traceIDKey{}, traceID)
		ctx = logger.With(ctx, "trace_id", traceID)

		w.Header().Set(traceHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TraceID returns the trace ID assigned by RequestID, or "" outside it.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}
