package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/vortexplay/arena-server/live"
	"github.com/vortexplay/arena-server/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS layer on the HTTP side.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WebSocketHandler struct {
	hub    *live.Hub
	auth   services.AuthService
	logger *slog.Logger
}

func NewWebSocketHandler(hub *live.Hub, auth services.AuthService, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, auth: auth, logger: logger}
}

// SubscribeMatch joins the caller's session to one match group.
func (h *WebSocketHandler) SubscribeMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.subscribe(w, r, live.MatchRoom(matchID), matchID)
}

// SubscribeTournament joins the caller's session to one tournament group.
func (h *WebSocketHandler) SubscribeTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.subscribe(w, r, live.TournamentRoom(tournamentID), 0)
}

// subscribe upgrades the connection and registers the session in room. A
// token query parameter optionally identifies the user; anonymous spectators
// are allowed, they just carry no identity in presence events.
func (h *WebSocketHandler) subscribe(w http.ResponseWriter, r *http.Request, room string, matchID int) {
	userID := 0
	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := h.auth.ParseToken(token)
		if err != nil {
			unauthorizedResponse(w, r, "invalid or expired token")
			return
		}
		userID = claims.UserID
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := live.NewClient(h.hub, conn, room, userID)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	if userID != 0 && matchID != 0 {
		h.hub.BroadcastToRoom(room, live.Event{
			Type:    live.EventUserJoinedMatch,
			Payload: live.MatchPresencePayload{MatchID: matchID, UserID: userID},
		})
	}
}
