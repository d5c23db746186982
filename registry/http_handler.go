package registry

import (
	"encoding/json"
	"errors"
	"net/http"

	"scouter/pkg/apperror"
	"scouter/pkg/logger"
)

// HTTPHandler exposes the Registrar over the POST /profile and GET
// /profile routes; PATCH /profile/status is served by PatchStatusHandler
// mounted on a separate path.
type HTTPHandler struct {
	registrar *Registrar
}

// NewHTTPHandler builds an HTTPHandler around registrar.
func NewHTTPHandler(registrar *Registrar) *HTTPHandler {
	return &HTTPHandler{registrar: registrar}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.register(w, r)
	case http.MethodGet:
		h.get(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperror.New(apperror.CodeInvalidProfile, "malformed registration body"))
		return
	}

	p, err := h.registrar.Register(r.Context(), req)
	if err != nil {
		logger.Warn("registry: registration failed", "error", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *HTTPHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if uid := r.URL.Query().Get("uid"); uid != "" {
		p, err := h.registrar.Get(ctx, uid)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}
	if entityID := r.URL.Query().Get("entity_id"); entityID != "" {
		profiles, err := h.registrar.ListByEntity(ctx, entityID)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, profiles)
		return
	}
	writeError(w, http.StatusBadRequest, apperror.New(apperror.CodeInvalidArgument, "uid or entity_id query parameter is required"))
}

// patchStatusRequest is the body of PATCH /profile/status.
type patchStatusRequest struct {
	UID    string `json:"uid"`
	Active bool   `json:"active"`
}

// PatchStatusHandler serves PATCH /profile/status, toggling a profile's
// active flag.
func PatchStatusHandler(registrar *Registrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()

		var req patchStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, apperror.New(apperror.CodeInvalidArgument, "malformed status patch body"))
			return
		}
		if req.UID == "" {
			writeError(w, http.StatusBadRequest, apperror.New(apperror.CodeInvalidArgument, "uid is required"))
			return
		}

		p, err := registrar.SetActive(r.Context(), req.UID, req.Active)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type httpError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	var aerr *apperror.Error
	code := ""
	if errors.As(err, &aerr) {
		code = string(aerr.Code)
	}
	writeJSON(w, status, httpError{Error: err.Error(), Code: code})
}

func statusForError(err error) int {
	switch apperror.Code(err) {
	case apperror.CodeProfileConflict:
		return http.StatusConflict
	case apperror.CodeMissingEntity, apperror.CodeInvalidProfile, apperror.CodeInvalidDriftType,
		apperror.CodeInvalidArgument, apperror.CodeInvalidFeatureConfig:
		return http.StatusBadRequest
	case apperror.CodeNotFound, apperror.CodeEntityNotFound:
		return http.StatusNotFound
	case apperror.CodeWorkflowMismatch:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
