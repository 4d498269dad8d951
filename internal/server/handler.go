package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/emrgen/communication/internal/service"
	"github.com/emrgen/communication/internal/store"
	"github.com/sirupsen/logrus"
)

// Handler exposes the communication service as a JSON REST API.
type Handler struct {
	service *service.CommunicationService
}

func NewHandler(svc *service.CommunicationService) *Handler {
	return &Handler{service: svc}
}

// Register mounts the API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/communications", h.create)
	mux.HandleFunc("GET /v1/communications", h.list)
	mux.HandleFunc("GET /v1/communications/{id}", h.get)
	mux.HandleFunc("PATCH /v1/communications/{id}", h.update)
	mux.HandleFunc("DELETE /v1/communications/{id}", h.delete)
	mux.HandleFunc("POST /v1/communications/{id}/links", h.addLink)
	mux.HandleFunc("DELETE /v1/communications/{id}/links", h.removeLink)
	mux.HandleFunc("POST /v1/communications/{id}/delivery-status", h.deliveryStatus)
	mux.HandleFunc("POST /v1/communications/{id}/seen", h.markSeen)
}

// sessionUser identifies the calling user. Token verification belongs to the
// gateway in front of this service.
func sessionUser(r *http.Request) string {
	return r.Header.Get("X-User")
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCommunicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.SessionUser = sessionUser(r)

	comm, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, comm)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	comm, err := h.service.Get(r.Context(), r.PathValue("id"), sessionUser(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comm)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	comms, total, err := h.service.List(r.Context(), &service.ListCommunicationsRequest{
		SessionUser:       sessionUser(r),
		ReferenceDoctype:  q.Get("reference_doctype"),
		ReferenceName:     q.Get("reference_name"),
		CommunicationType: q.Get("communication_type"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"communications": comms,
		"total":          total,
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateCommunicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.ID = r.PathValue("id")
	req.SessionUser = sessionUser(r)

	comm, err := h.service.Update(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comm)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id")})
}

type linkRequest struct {
	Doctype string `json:"doctype"`
	Name    string `json:"name"`
}

func (h *Handler) addLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	comm, err := h.service.AddTimelineLink(r.Context(), r.PathValue("id"), req.Doctype, req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comm)
}

func (h *Handler) removeLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	comm, err := h.service.RemoveTimelineLink(r.Context(), r.PathValue("id"), req.Doctype, req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comm)
}

func (h *Handler) deliveryStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.SetDeliveryStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"delivery_status": status})
}

func (h *Handler) markSeen(w http.ResponseWriter, r *http.Request) {
	if err := h.service.QueueEmailFlag(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id")})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrCommunicationNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, service.ErrCircularLinking),
		errors.Is(err, service.ErrInvalidSenderAddress):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, service.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("error encoding response: %v", err)
	}
}
