package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/DoyleJ11/spot-battle-backend/internal/hub"
	"github.com/DoyleJ11/spot-battle-backend/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxCodeAttempts = 16

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// MatchHistory serves archived results. It is nil when no store is configured.
type MatchHistory interface {
	RecentMatches(ctx context.Context, room string, limit int) ([]store.Match, error)
}

type matchJSON struct {
	Room    string    `json:"room"`
	Winner  string    `json:"winner,omitempty"`
	Draw    bool      `json:"draw,omitempty"`
	Players []string  `json:"players"`
	Rounds  int       `json:"rounds"`
	EndedAt time.Time `json:"endedAt"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// CreateRoom hands out a code that no live room is using. The room itself is
// created by the first connection that joins it.
func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for range maxCodeAttempts {
			c, err := GenerateCode()
			if err != nil {
				log.Error("generate room code", zap.Error(err))
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			if h.Lookup(r.Context(), c) == nil {
				writeJSON(w, http.StatusCreated, struct {
					Code string `json:"code"`
				}{Code: c})
				return
			}
			log.Debug("collision on room code, regenerating", zap.String("code", c))
		}
		http.Error(w, "failed to generate code", http.StatusServiceUnavailable)
	}
}

func ListRooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := h.List(r.Context())
		if rooms == nil {
			rooms = []hub.RoomInfo{}
		}
		writeJSON(w, http.StatusOK, struct {
			Rooms []hub.RoomInfo `json:"rooms"`
		}{Rooms: rooms})
	}
}

func RoomMatches(history MatchHistory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if history == nil {
			http.Error(w, "match history disabled", http.StatusNotFound)
			return
		}
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 100 {
				http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
				return
			}
			limit = n
		}

		room := chi.URLParam(r, "room")
		matches, err := history.RecentMatches(r.Context(), room, limit)
		if err != nil {
			log.Warn("load match history", zap.String("room", room), zap.Error(err))
			http.Error(w, "failed to load matches", http.StatusInternalServerError)
			return
		}
		out := make([]matchJSON, 0, len(matches))
		for _, m := range matches {
			out = append(out, matchJSON(m))
		}
		writeJSON(w, http.StatusOK, struct {
			Matches []matchJSON `json:"matches"`
		}{Matches: out})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
