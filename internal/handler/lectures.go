package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/talk-lectures/internal/model"
	"github.com/Shivanand-hulikatti/talk-lectures/internal/service"
	"github.com/go-chi/chi/v5"
)

// LectureHandler serves lecture listings, registration and
// administrative changes.
type LectureHandler struct {
	svc *service.LectureService
}

// NewLectureHandler constructs a LectureHandler.
func NewLectureHandler(svc *service.LectureService) *LectureHandler {
	return &LectureHandler{svc: svc}
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type recordingBody struct {
	URL string `json:"url"`
}

// Create handles POST /lectures
func (h *LectureHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.CreateLectureInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	view, err := h.svc.Create(r.Context(), caller(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// List handles GET /lectures?when=upcoming|past
func (h *LectureHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.List(r.Context(), caller(r), r.URL.Query().Get("when"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, views)
}

// Get handles GET /lectures/{id}
func (h *LectureHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Get(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Register handles POST /lectures/{id}/register
// Performs a concurrency-safe registration for the calling member.
func (h *LectureHandler) Register(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Register(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Unregister handles DELETE /lectures/{id}/register
func (h *LectureHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Unregister(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Attendees handles GET /lectures/{id}/attendees
func (h *LectureHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.Attendees(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ids)
}

// SetStatus handles POST /lectures/{id}/status
func (h *LectureHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	view, err := h.svc.SetStatus(r.Context(), caller(r), chi.URLParam(r, "id"), body.Status, body.Message)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Cancel handles POST /lectures/{id}/cancel
func (h *LectureHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var body decisionBody
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	view, err := h.svc.Cancel(r.Context(), caller(r), chi.URLParam(r, "id"), body.Message)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// AttachRecording handles PUT /lectures/{id}/recording
func (h *LectureHandler) AttachRecording(w http.ResponseWriter, r *http.Request) {
	var body recordingBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	view, err := h.svc.AttachRecording(r.Context(), caller(r), chi.URLParam(r, "id"), body.URL)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}
