package authz

import (
	"log/slog"
	"net/http"
)

// Gate builds chi-compatible middleware from the evaluator. Handlers
// behind a gate can assume the actor holds the named role or privilege.
type Gate struct {
	evaluator *Evaluator
	logger    *slog.Logger
}

func NewGate(evaluator *Evaluator, logger *slog.Logger) *Gate {
	return &Gate{
		evaluator: evaluator,
		logger:    logger,
	}
}

func (g *Gate) check(next http.Handler, w http.ResponseWriter, r *http.Request, evaluate func(userID int64) (bool, error)) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		g.logger.Warn("authorization check failed: no actor in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	allowed, err := evaluate(actor.ID)
	if err != nil {
		g.logger.ErrorContext(r.Context(), "authorization check failed", "error", err, "user_id", actor.ID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if !allowed {
		g.logger.WarnContext(r.Context(), "access denied: insufficient privileges",
			"user_id", actor.ID,
			"roles", actor.Roles)
		http.Error(w, "Forbidden: insufficient privileges", http.StatusForbidden)
		return
	}

	next.ServeHTTP(w, r)
}

// RequirePrivilege allows the request through when the actor holds the
// privilege via any of their roles.
func (g *Gate) RequirePrivilege(privilege string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.check(next, w, r, func(userID int64) (bool, error) {
				return g.evaluator.UserHasPrivilege(r.Context(), userID, privilege)
			})
		})
	}
}

func (g *Gate) RequireAnyPrivilege(privileges ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.check(next, w, r, func(userID int64) (bool, error) {
				return g.evaluator.UserHasAnyPrivilege(r.Context(), userID, privileges)
			})
		})
	}
}

func (g *Gate) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.check(next, w, r, func(userID int64) (bool, error) {
				return g.evaluator.UserHasRole(r.Context(), userID, role)
			})
		})
	}
}

func (g *Gate) RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.check(next, w, r, func(userID int64) (bool, error) {
				return g.evaluator.UserHasAnyRole(r.Context(), userID, roles)
			})
		})
	}
}
