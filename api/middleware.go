package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/warp/timetrack/attendance"
)

// ActorHeader carries the id of the authenticated user. Authentication
// itself happens in front of this service.
const ActorHeader = "X-User-ID"

type ctxKey int

const actorKey ctxKey = iota

// RequestLogger logs one line per request through log.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				entry := log.WithFields(logrus.Fields{
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     status,
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
					"request_id": middleware.GetReqID(r.Context()),
				})
				switch {
				case status >= 500:
					entry.Error("request failed")
				case status >= 400:
					entry.Info("request rejected")
				default:
					entry.Debug("request served")
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// RequireActor resolves the acting user from ActorHeader. Requests without
// the header get 401; unknown or inactive users get 403.
func (h *Handler) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(ActorHeader)
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error: "missing " + ActorHeader + " header",
				Code:  "unauthenticated",
			})
			return
		}
		actor, err := h.svc.Actor(r.Context(), id)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

func actorFrom(ctx context.Context) attendance.UserProfile {
	actor, _ := ctx.Value(actorKey).(attendance.UserProfile)
	return actor
}
