package middleware

import (
	"log/slog"
	"net/http"

	"github.com/govreposcrape/govsearch/internal/events"
)

const protocolHeader = "X-MCP-Version"

// ProtocolVersion stamps the served protocol version on every response.
// A request announcing a different version is still served; the mismatch is
// reported as a warning event.
func ProtocolVersion(version string, emitter events.Emitter) func(http.Handler) http.Handler {
	emitter = events.OrNop(emitter)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(protocolHeader, version)

			if got := r.Header.Get(protocolHeader); got != "" && got != version {
				emitter.Emit(r.Context(), events.Event{
					Kind:      events.ProtocolMismatch,
					Level:     slog.LevelWarn,
					Component: "gateway",
					Message:   "client protocol version differs from server",
					Fields: map[string]any{
						"expected":   version,
						"received":   got,
						"request_id": GetRequestID(r.Context()),
						"path":       r.URL.Path,
					},
				})
			}
			next.ServeHTTP(w, r)
		})
	}
}
