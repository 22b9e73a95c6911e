package hub

import (
	"context"
	"slices"
	"strings"

	"github.com/DoyleJ11/spot-battle-backend/internal/room"
	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

// AcquireRoom returns the named room, creating it if needed, and counts the
// caller as a holder until a matching ReleaseRoom.
type AcquireRoom struct {
	Name  string
	Reply chan *room.Room
}

type ReleaseRoom struct {
	Name string
}

type GetRoom struct {
	Name  string
	Reply chan *room.Room // nil when the room is not live
}

type ListRooms struct {
	Reply chan []RoomInfo
}

type ShutdownHub struct{}

func (AcquireRoom) isHubMsg() {}
func (ReleaseRoom) isHubMsg() {}
func (GetRoom) isHubMsg()     {}
func (ListRooms) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

type RoomInfo struct {
	Name        string `json:"name"`
	Connections int    `json:"connections"`
}

type entry struct {
	room *room.Room
	refs int
}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*entry
	opts   room.Options
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub starts the hub actor. Rooms it creates share opts and stop with ctx.
func NewHub(parent context.Context, opts room.Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	// rooms run concurrently and must not share one rng
	opts.Rand = nil
	log := opts.Logger.Named("hub")
	opts.Logger = opts.Logger.Named("room")
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*entry),
		opts:   opts,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case AcquireRoom:
				e := h.rooms[msg.Name]
				if e == nil {
					e = &entry{room: room.New(h.ctx, msg.Name, h.opts)}
					h.rooms[msg.Name] = e
					h.log.Info("room created", zap.String("room", msg.Name))
				}
				e.refs++
				msg.Reply <- e.room

			case ReleaseRoom:
				e := h.rooms[msg.Name]
				if e == nil {
					break
				}
				e.refs--
				if e.refs <= 0 {
					delete(h.rooms, msg.Name)
					e.room.Close()
					h.log.Info("room closed", zap.String("room", msg.Name))
				}

			case GetRoom:
				if e := h.rooms[msg.Name]; e != nil {
					msg.Reply <- e.room
				} else {
					msg.Reply <- nil
				}

			case ListRooms:
				out := make([]RoomInfo, 0, len(h.rooms))
				for name, e := range h.rooms {
					out = append(out, RoomInfo{Name: name, Connections: e.refs})
				}
				slices.SortFunc(out, func(a, b RoomInfo) int { return strings.Compare(a.Name, b.Name) })
				msg.Reply <- out

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, e := range h.rooms {
		e.room.Close()
	}
	clear(h.rooms)
}

// Acquire asks the hub for a room. It returns false once the hub has stopped.
func (h *Hub) Acquire(ctx context.Context, name string) (*room.Room, bool) {
	reply := make(chan *room.Room, 1)
	if !h.send(ctx, AcquireRoom{Name: name, Reply: reply}) {
		return nil, false
	}
	select {
	case rm := <-reply:
		return rm, true
	case <-h.ctx.Done():
		return nil, false
	case <-ctx.Done():
		// the hub still counts this holder
		go func() {
			select {
			case <-reply:
				h.Release(name)
			case <-h.ctx.Done():
			}
		}()
		return nil, false
	}
}

func (h *Hub) Release(name string) {
	h.send(context.Background(), ReleaseRoom{Name: name})
}

// Lookup reports the live room with name, or nil.
func (h *Hub) Lookup(ctx context.Context, name string) *room.Room {
	reply := make(chan *room.Room, 1)
	if !h.send(ctx, GetRoom{Name: name, Reply: reply}) {
		return nil
	}
	select {
	case rm := <-reply:
		return rm
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (h *Hub) List(ctx context.Context) []RoomInfo {
	reply := make(chan []RoomInfo, 1)
	if !h.send(ctx, ListRooms{Reply: reply}) {
		return nil
	}
	select {
	case out := <-reply:
		return out
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (h *Hub) Shutdown() {
	h.send(context.Background(), ShutdownHub{})
}

func (h *Hub) send(ctx context.Context, m HubMsg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	}
}
