package httpapi

import (
	"net/http"

	"github.com/DoyleJ11/spot-battle-backend/internal/hub"
	"github.com/DoyleJ11/spot-battle-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Deps struct {
	Hub     *hub.Hub
	WS      ws.Options
	History MatchHistory
	Logger  *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Hub, d.WS))
	r.Route("/rooms", func(r chi.Router) {
		r.Post("/", CreateRoom(d.Hub, d.Logger))
		r.Get("/", ListRooms(d.Hub))
		r.Get("/{room}/matches", RoomMatches(d.History, d.Logger))
	})
	return r
}
