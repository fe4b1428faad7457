package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/talk-lectures/internal/model"
	"github.com/Shivanand-hulikatti/talk-lectures/internal/service"
	"github.com/go-chi/chi/v5"
)

// RequestHandler serves the talk request workflow.
type RequestHandler struct {
	svc *service.RequestService
}

// NewRequestHandler constructs a RequestHandler.
func NewRequestHandler(svc *service.RequestService) *RequestHandler {
	return &RequestHandler{svc: svc}
}

type decisionBody struct {
	Message string `json:"message"`
}

type approvalResponse struct {
	Request model.TalkRequest `json:"request"`
	Lecture model.Lecture     `json:"lecture"`
}

// Create handles POST /requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.TalkInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	req, err := h.svc.Create(r.Context(), caller(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

// List handles GET /requests?decision=
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.svc.List(r.Context(), caller(r), r.URL.Query().Get("decision"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if reqs == nil {
		reqs = []model.TalkRequest{}
	}

	writeJSON(w, http.StatusOK, reqs)
}

// Get handles GET /requests/{id}
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.Get(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// Approve handles POST /requests/{id}/approve
// The message body is optional.
func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var body decisionBody
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	req, lecture, err := h.svc.Approve(r.Context(), chi.URLParam(r, "id"), body.Message)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, approvalResponse{Request: req, Lecture: lecture})
}

// Reject handles POST /requests/{id}/reject
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var body decisionBody
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	req, err := h.svc.Reject(r.Context(), chi.URLParam(r, "id"), body.Message)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}
