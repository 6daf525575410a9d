package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/marketcart/internal/notify"
)

const SessionHeader = "X-Session-ID"

type ctxKey int

const (
	sessionKey ctxKey = iota
	requestIDKey
	collectorKey
)

// SessionMiddleware scopes the request to the client instance named by the
// X-Session-ID header and collects the notifications raised while serving it.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := strings.TrimSpace(r.Header.Get(SessionHeader))
		if session == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing "+SessionHeader+" header")
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		ctx = notify.WithNamespace(ctx, session)
		ctx, collector := notify.Collect(ctx)
		ctx = context.WithValue(ctx, collectorKey, collector)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getSession(ctx context.Context) string {
	if session, ok := ctx.Value(sessionKey).(string); ok {
		return session
	}
	return ""
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// notifications returns what was raised so far in this request, never nil.
func notifications(ctx context.Context) []notify.Notification {
	if c, ok := ctx.Value(collectorKey).(*notify.Collector); ok {
		return c.Items()
	}
	return []notify.Notification{}
}
