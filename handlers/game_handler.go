package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/mahjong-league/middleware"
	"github.com/Dosada05/mahjong-league/models"
	"github.com/Dosada05/mahjong-league/services"
)

type GameHandler struct {
	gameService services.GameService
}

func NewGameHandler(gameService services.GameService) *GameHandler {
	return &GameHandler{gameService: gameService}
}

func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
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
		Variant string  `json:"variant"`
		Comment *string `json:"comment"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var variant models.GameVariant
	if input.Variant != "" {
		variant, err = models.ParseGameVariant(input.Variant)
		if err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	game, err := h.gameService.NewGame(r.Context(), services.NewGameInput{
		GroupID:    groupID,
		PromoterID: actorID,
		Variant:    variant,
		Comment:    input.Comment,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	groupID, err := urlParamInt(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	code, err := urlParamInt(r, "code")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	game, err := h.gameService.GetGame(r.Context(), groupID, code)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecordScore writes one seat's chip count. The player records their own
// score; an admin can record for anyone via the optional player_id field.
func (h *GameHandler) RecordScore(w http.ResponseWriter, r *http.Request) {
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
	code, err := urlParamInt(r, "code")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		PlayerID *int    `json:"player_id"`
		Chips    *int    `json:"chips"`
		Wind     *string `json:"wind"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Chips == nil {
		badRequestResponse(w, r, errors.New("chips is required"))
		return
	}

	playerID := actorID
	if input.PlayerID != nil {
		playerID = *input.PlayerID
	}
	var wind *models.SeatWind
	if input.Wind != nil {
		parsed, err := models.ParseSeatWind(*input.Wind)
		if err != nil {
			badRequestResponse(w, r, err)
			return
		}
		wind = &parsed
	}

	game, err := h.gameService.RecordScore(r.Context(), groupID, code, actorID, services.RecordScoreInput{
		PlayerID: playerID,
		Chips:    *input.Chips,
		Wind:     wind,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *GameHandler) UndoScore(w http.ResponseWriter, r *http.Request) {
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
	code, err := urlParamInt(r, "code")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := urlParamInt(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	game, err := h.gameService.UndoScore(r.Context(), groupID, code, playerID, actorID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	code, err := urlParamInt(r, "code")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.gameService.DeleteGame(r.Context(), groupID, code, actorID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateProgress sets or clears the round and honba markers. Clearing both
// on a full table triggers the deferred settlement.
func (h *GameHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
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
	code, err := urlParamInt(r, "code")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Round *int `json:"round"`
		Honba *int `json:"honba"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	game, err := h.gameService.UpdateProgress(r.Context(), groupID, code, actorID, input.Round, input.Honba)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *GameHandler) SetComment(w http.ResponseWriter, r *http.Request) {
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
	code, err := urlParamInt(r, "code")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Comment string `json:"comment"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	game, err := h.gameService.SetComment(r.Context(), groupID, code, actorID, input.Comment)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
