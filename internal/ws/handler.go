package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/DoyleJ11/spot-battle-backend/internal/hub"
	"github.com/DoyleJ11/spot-battle-backend/internal/room"
	"github.com/DoyleJ11/spot-battle-backend/pkg/types"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultRoom = "room-1"
	DefaultName = "Guest"
)

type Options struct {
	OriginPatterns []string
	OutboxSize     int
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	Logger         *zap.Logger
}

type closeRequest struct {
	code   websocket.StatusCode
	reason string
}

// Params are the connection parameters read from the upgrade request.
type Params struct {
	Room     string
	Name     string
	ClientID string
}

func ParseParams(r *http.Request) Params {
	q := r.URL.Query()
	return Params{
		Room:     clean(q.Get("room"), DefaultRoom),
		Name:     clean(q.Get("name"), DefaultName),
		ClientID: strings.TrimSpace(q.Get("cid")),
	}
}

func clean(s, fallback string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	if s == "" {
		return fallback
	}
	return s
}

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = 32
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		p := ParseParams(r)
		connID := uuid.NewString()
		log := opts.Logger.With(zap.String("room", p.Room), zap.String("name", p.Name), zap.String("conn", connID))

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()

		rm, ok := h.Acquire(ctx, p.Room)
		if !ok {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
		defer h.Release(p.Room)

		out := make(chan []byte, opts.OutboxSize)
		kicked := make(chan closeRequest, 1)
		reply := make(chan room.Admission, 1)
		join := room.Join{
			ConnID:   connID,
			Name:     p.Name,
			ClientID: p.ClientID,
			Outbox:   out,
			Kick: func(code int, reason string) {
				select {
				case kicked <- closeRequest{code: websocket.StatusCode(code), reason: reason}:
				default:
				}
			},
			Reply: reply,
		}
		if !rm.Send(join) {
			conn.Close(websocket.StatusGoingAway, "room closed")
			return
		}

		var adm room.Admission
		select {
		case adm = <-reply:
		case <-rm.Done():
			conn.Close(websocket.StatusGoingAway, "room closed")
			return
		}
		if !adm.OK {
			log.Info("join rejected", zap.String("reason", adm.Reason))
			wctx, cancel := context.WithTimeout(ctx, opts.WriteTimeout)
			_ = conn.Write(wctx, websocket.MessageText, adm.Payload)
			cancel()
			conn.Close(websocket.StatusCode(adm.Code), adm.Reason)
			return
		}
		defer rm.Send(room.Leave{ConnID: connID})
		log.Info("connected", zap.String("client_id", p.ClientID))

		go writeLoop(ctx, conn, out, kicked, opts.WriteTimeout, log)

		for {
			rctx, cancel := context.WithTimeout(ctx, opts.IdleTimeout)
			_, data, err := conn.Read(rctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					log.Info("disconnected")
				default:
					log.Debug("read ended", zap.Error(err))
				}
				return
			}

			msg, err := types.Decode(data)
			if err != nil {
				log.Debug("malformed frame", zap.Error(err))
				wctx, cancel := context.WithTimeout(ctx, opts.WriteTimeout)
				err = wsjson.Write(wctx, conn, types.NewError(err.Error()))
				cancel()
				if err != nil {
					return
				}
				continue
			}
			if !rm.Send(room.FromClient{ConnID: connID, Msg: msg}) {
				return
			}
		}
	}
}

// writeLoop drains the room outbox until the room closes it, then closes the
// socket with the eviction code if one was requested.
func writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan []byte, kicked <-chan closeRequest, timeout time.Duration, log *zap.Logger) {
	for frame := range out {
		wctx, cancel := context.WithTimeout(ctx, timeout)
		err := conn.Write(wctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Debug("write failed", zap.Error(err))
			}
			conn.CloseNow()
			for range out {
			}
			return
		}
	}

	select {
	case req := <-kicked:
		conn.Close(req.code, req.reason)
	default:
		conn.Close(websocket.StatusGoingAway, "room closed")
	}
}
