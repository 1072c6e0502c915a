package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/wardenhq/warden/internal"
	"github.com/wardenhq/warden/internal/authz"
	"github.com/wardenhq/warden/internal/transport"
	"github.com/wardenhq/warden/pkg/logger"
)

// ActorProviderAPI resolves a user ID from validated claims into the
// actor placed on the request context.
type ActorProviderAPI interface {
	ActorFor(ctx context.Context, userID int64) (*authz.Actor, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Actors  ActorProviderAPI
}

func NewHandler(svc ServiceAPI, actors ActorProviderAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Actors:      actors,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Authenticate(dto)
	if err != nil {
		h.Logger.Error("authentication failed", "error", err)

		switch {
		case errors.Is(err, internal.ErrInvalidCredentials):
			h.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, internal.ErrUserSuspended):
			h.WriteError(w, http.StatusForbidden, "account is suspended")
		default:
			h.WriteError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

// Logout revokes the presented token. Other tokens issued to the same
// user stay valid.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	claims, err := h.Service.ValidateAccessToken(token)
	if err != nil {
		h.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	if err := h.Service.Logout(claims.JTI()); err != nil {
		h.Logger.Error("logout failed", "error", err, "user_id", claims.UserID)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err)
			h.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		actor, err := h.Actors.ActorFor(r.Context(), claims.UserID)
		if err != nil {
			h.Logger.Error("auth middleware: failed to load actor", "user_id", claims.UserID, "error", err)
			h.WriteError(w, http.StatusUnauthorized, "user not found")
			return
		}

		ctx := authz.ContextWithActor(r.Context(), actor)
		ctx = internal.ContextWithUserID(ctx, actor.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
