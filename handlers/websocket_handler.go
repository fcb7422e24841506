package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/mahjong-league/live"
	"github.com/Dosada05/mahjong-league/services"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: ограничить Origin доверенными доменами перед продакшеном.
		return true
	},
}

type WebSocketHandler struct {
	hub           *live.Hub
	seasonService services.SeasonService
	logger        *slog.Logger
}

func NewWebSocketHandler(hub *live.Hub, seasonService services.SeasonService, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		seasonService: seasonService,
		logger:        logger,
	}
}

// ServeSeason subscribes the connection to live updates of one season.
// Клиент подключается к /ws/seasons/{seasonID}.
func (h *WebSocketHandler) ServeSeason(w http.ResponseWriter, r *http.Request) {
	seasonID, err := urlParamInt(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if _, err := h.seasonService.GetSeason(r.Context(), seasonID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту.
		h.logger.Warn("failed to upgrade websocket connection",
			slog.Int("season_id", seasonID), slog.Any("error", err))
		return
	}

	client := live.NewClient(h.hub, conn, seasonID)
	go client.WritePump()
	go client.ReadPump()
}
