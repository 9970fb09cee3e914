package handlers

import (
	"net/http"
	"strconv"

	"github.com/bracketworks/arena/models"
	"github.com/bracketworks/arena/services"
)

type DisputeHandler struct {
	disputeService *services.DisputeService
}

func NewDisputeHandler(disputeService *services.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputeService: disputeService}
}

func (h *DisputeHandler) Open(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, _, err := actorFromContext(r)
	if err != nil {
		errorResponse(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	d, err := h.disputeService.Open(r.Context(), matchID, actorID, input.Reason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d, nil)
}

func (h *DisputeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	_, role, err := actorFromContext(r)
	if err != nil {
		errorResponse(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	d, err := h.disputeService.GetByID(r.Context(), id, role)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d, nil)
}

func (h *DisputeHandler) List(w http.ResponseWriter, r *http.Request) {
	_, role, err := actorFromContext(r)
	if err != nil {
		errorResponse(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	status := models.DisputeStatusOpen
	if v := r.URL.Query().Get("status"); v != "" {
		status = models.DisputeStatus(v)
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	disputes, err := h.disputeService.ListByStatus(r.Context(), status, limit, offset, role)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"disputes": disputes}, nil)
}

func (h *DisputeHandler) StartReview(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, role, err := actorFromContext(r)
	if err != nil {
		errorResponse(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	if err := h.disputeService.StartReview(r.Context(), id, actorID, role); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"status": models.DisputeStatusUnderReview}, nil)
}

func (h *DisputeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, role, err := actorFromContext(r)
	if err != nil {
		errorResponse(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	var input struct {
		Outcome models.DisputeStatus `json:"outcome"`
		Details *string              `json:"details,omitempty"`
		Score1  *int                 `json:"score1,omitempty"`
		Score2  *int                 `json:"score2,omitempty"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	d, err := h.disputeService.Resolve(r.Context(), id, actorID, role, input.Outcome, input.Details, input.Score1, input.Score2)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d, nil)
}
