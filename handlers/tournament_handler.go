package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/bracketworks/arena/middleware"
	"github.com/bracketworks/arena/models"
	"github.com/bracketworks/arena/repositories"
	"github.com/bracketworks/arena/services"
)

type TournamentHandler struct {
	tournamentService *services.TournamentService
	settlementService *services.SettlementService
}

func NewTournamentHandler(tournamentService *services.TournamentService, settlementService *services.SettlementService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: tournamentService,
		settlementService: settlementService,
	}
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, role, err := actorFromContext(r)
	if err != nil {
		errorResponse(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	var t models.Tournament
	if err := readJSON(w, r, &t); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.tournamentService.Create(r.Context(), actorID, role, &t); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t, nil)
}

func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	includeDetails := r.URL.Query().Get("details") == "true"

	t, err := h.tournamentService.GetByID(r.Context(), id, includeDetails)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t, nil)
}

func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repositories.ListTournamentsFilter{}
	q := r.URL.Query()

	if v := q.Get("game_id"); v != "" {
		if gameID, err := strconv.Atoi(v); err == nil {
			filter.GameID = &gameID
		}
	}
	if v := q.Get("organizer_id"); v != "" {
		if organizerID, err := strconv.Atoi(v); err == nil {
			filter.OrganizerID = &organizerID
		}
	}
	if v := q.Get("status"); v != "" {
		status := models.TournamentStatus(v)
		filter.Status = &status
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	tournaments, err := h.tournamentService.List(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil)
}

func (h *TournamentHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var t models.Tournament
	if err := readJSON(w, r, &t); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	t.ID = id
	if err := h.tournamentService.Update(r.Context(), actorID, role, &t); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t, nil)
}

func (h *TournamentHandler) OpenRegistration(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.tournamentService.OpenRegistration, models.TournamentStatusRegistrationOpen)
}

func (h *TournamentHandler) CloseRegistration(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.tournamentService.CloseRegistration, models.TournamentStatusRegistrationClosed)
}

func (h *TournamentHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.tournamentService.Start, models.TournamentStatusOngoing)
}

func (h *TournamentHandler) statusChange(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, tournamentID, actorID int, role models.UserRole) error, resulting models.TournamentStatus) {
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

	if err := op(r.Context(), id, actorID, role); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"status": resulting}, nil)
}

func (h *TournamentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
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
		Reason *string `json:"reason,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	if err := h.settlementService.Decide(r.Context(), id, actorID, role, services.DecisionCancel, input.Reason, nil); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"status": models.TournamentStatusCanceled}, nil)
}

func (h *TournamentHandler) Complete(w http.ResponseWriter, r *http.Request) {
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
		Awards []services.PrizeAward `json:"awards"`
	}
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	if err := h.settlementService.Decide(r.Context(), id, actorID, role, services.DecisionComplete, nil, input.Awards); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"status": models.TournamentStatusCompleted}, nil)
}

func actorFromContext(r *http.Request) (int, models.UserRole, error) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		return 0, "", err
	}
	role, err := middleware.GetUserRoleFromContext(r.Context())
	if err != nil {
		return 0, "", err
	}
	return userID, role, nil
}
