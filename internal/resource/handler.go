package resource

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"github.com/wardenhq/warden/internal"
	"github.com/wardenhq/warden/internal/authz"
	"github.com/wardenhq/warden/internal/transport"
	"github.com/wardenhq/warden/pkg/logger"
)

const maxUploadMemory = 32 << 20 // 32 MiB

type Handler struct {
	*transport.BaseHandler
	Engine  *Engine
	PerPage int
}

func NewHandler(engine *Engine, perPage int) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Engine:      engine,
		PerPage:     perPage,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	roles, ok := h.callerRoles(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "resource")
	query := r.URL.Query()

	params := ListParams{
		Search:  query.Get("search"),
		Sort:    query.Get("sort"),
		Dir:     query.Get("dir"),
		Page:    1,
		PerPage: h.PerPage,
	}
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			params.Page = p
		}
	}

	result, err := h.Engine.List(r.Context(), key, roles, params)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	roles, ok := h.callerRoles(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "resource")
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	item, err := h.Engine.Get(r.Context(), key, roles, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	roles, ok := h.callerRoles(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "resource")

	payload, files, ok := h.decodePayload(w, r)
	if !ok {
		return
	}

	item, err := h.Engine.Create(r.Context(), key, roles, payload, files)
	if err != nil {
		h.writeMutationError(w, err, payload)
		return
	}

	h.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	roles, ok := h.callerRoles(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "resource")
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	payload, files, ok := h.decodePayload(w, r)
	if !ok {
		return
	}

	item, err := h.Engine.Update(r.Context(), key, roles, id, payload, files)
	if err != nil {
		h.writeMutationError(w, err, payload)
		return
	}

	h.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	roles, ok := h.callerRoles(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "resource")
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.Engine.Delete(r.Context(), key, roles, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	roles, ok := h.callerRoles(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "resource")

	options, err := h.Engine.Options(r.Context(), key, roles)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, options)
}

func (h *Handler) callerRoles(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return actor.Roles, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid record ID")
		return 0, false
	}
	return id, true
}

// decodePayload accepts JSON bodies and multipart forms. Multipart is
// how file-typed fields arrive, every non-file part becomes a payload
// value.
func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request) (map[string]interface{}, map[string]Upload, bool) {
	payload := map[string]interface{}{}
	files := map[string]Upload{}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid multipart form")
			return nil, nil, false
		}

		for key, values := range r.MultipartForm.Value {
			if arrayKey, isArray := strings.CutSuffix(key, "[]"); isArray {
				items := make([]interface{}, len(values))
				for i, v := range values {
					items[i] = v
				}
				payload[arrayKey] = items
			} else if len(values) > 0 {
				payload[key] = values[0]
			}
		}

		for key, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			f, err := headers[0].Open()
			if err != nil {
				h.WriteError(w, http.StatusBadRequest, "failed to read upload")
				return nil, nil, false
			}
			// closed when the request body is released
			files[key] = Upload{Filename: headers[0].Filename, Content: f}
		}
		return payload, files, true
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return nil, nil, false
	}
	return payload, files, true
}

// writeMutationError echoes the submitted input back with validation
// failures so a form can re-render with the user's values intact.
func (h *Handler) writeMutationError(w http.ResponseWriter, err error, payload map[string]interface{}) {
	if appErr, ok := internal.IsAppError(err); ok && appErr.Type == internal.ErrorTypeValidation {
		h.WriteJSON(w, appErr.StatusCode, map[string]interface{}{
			"error": appErr,
			"input": payload,
		})
		return
	}
	h.HandleServiceError(w, err)
}
