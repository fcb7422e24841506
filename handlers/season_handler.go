package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dosada05/mahjong-league/middleware"
	"github.com/Dosada05/mahjong-league/models"
	"github.com/Dosada05/mahjong-league/services"
)

type SeasonHandler struct {
	seasonService services.SeasonService
	ledgerService services.LedgerService
}

func NewSeasonHandler(seasonService services.SeasonService, ledgerService services.LedgerService) *SeasonHandler {
	return &SeasonHandler{
		seasonService: seasonService,
		ledgerService: ledgerService,
	}
}

func (h *SeasonHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	groupID, err := urlParamInt(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Code  string          `json:"code"`
		Name  string          `json:"name"`
		Rules *models.RuleSet `json:"rules"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Rules == nil {
		badRequestResponse(w, r, errors.New("rules are required"))
		return
	}

	season, err := h.seasonService.CreateSeason(r.Context(), actorID, services.CreateSeasonInput{
		GroupID: groupID,
		Code:    input.Code,
		Name:    input.Name,
		Rules:   input.Rules,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"season": season}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeasonHandler) List(w http.ResponseWriter, r *http.Request) {
	groupID, err := urlParamInt(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	seasons, err := h.seasonService.ListSeasons(r.Context(), groupID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"seasons": seasons}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeasonHandler) Get(w http.ResponseWriter, r *http.Request) {
	seasonID, err := urlParamInt(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	season, err := h.seasonService.GetSeason(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"season": season}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeasonHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.seasonService.StartSeason)
}

func (h *SeasonHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.seasonService.FinishSeason)
}

func (h *SeasonHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.seasonService.RemoveSeason)
}

func (h *SeasonHandler) Standings(w http.ResponseWriter, r *http.Request) {
	seasonID, err := urlParamInt(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	standings, err := h.seasonService.Standings(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeasonHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	seasonID, err := urlParamInt(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	dashboard, err := h.seasonService.Dashboard(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"dashboard": dashboard}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SetPlayerPoints overwrites one player's season total. The adjustment is
// recorded in the change log like any game settlement.
func (h *SeasonHandler) SetPlayerPoints(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	seasonID, err := urlParamInt(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := urlParamInt(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Points *int `json:"points"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Points == nil {
		badRequestResponse(w, r, errors.New("points is required"))
		return
	}

	if err := h.seasonService.ManualPointChange(r.Context(), seasonID, userID, *input.Points, actorID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SeasonHandler) ResetPlayerPoints(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	seasonID, err := urlParamInt(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := urlParamInt(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.seasonService.ResetUserPoints(r.Context(), seasonID, userID, actorID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SeasonHandler) ListPlayerChanges(w http.ResponseWriter, r *http.Request) {
	seasonID, err := urlParamInt(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := urlParamInt(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	changes, err := h.ledgerService.ListChanges(r.Context(), seasonID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"changes": changes}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeasonHandler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, seasonID, actorID int) error) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	seasonID, err := urlParamInt(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := op(r.Context(), seasonID, actorID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
