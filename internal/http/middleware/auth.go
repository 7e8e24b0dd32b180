package middleware

import (
	"context"
	"net/http"

	"github.com/rleiva/taxqual/internal/qualification"
)

type contextKey string

const ActorKey contextKey = "actor"

// ActorFromContext returns the operator identity stored by the session
// layer, if any.
func ActorFromContext(ctx context.Context) (qualification.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(qualification.Actor)
	return actor, ok && actor.ID != ""
}

// WithActor stores the operator identity on the request context.
func WithActor(ctx context.Context, actor qualification.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// RequireActor rejects requests with no operator identity. Authentication
// itself happens upstream; by the time a request gets here the identity
// proxy has populated the session.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFromContext(r.Context()); !ok {
			http.Error(w, "operator identity required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
