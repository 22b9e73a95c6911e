package lobby

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/DoyleJ11/spot-battle-backend/internal/places"
	"github.com/DoyleJ11/spot-battle-backend/pkg/types"
	"go.uber.org/zap"
)

var ErrNotHost = errors.New("only the host can start the game")
var ErrStartPending = errors.New("game start is already in progress")
var ErrMissingLocation = errors.New("start requires lat and lng")
var ErrNotEnoughMembers = errors.New("at least 2 members are required to start")

const MinMembers = 2

// Coordinator is what the lobby needs from the room that owns it. Every call
// except Defer happens on the room's own goroutine.
type Coordinator interface {
	Unicast(name string, msg any)
	Broadcast(msg any)
	Members() []string
	HostClientID() string
	// Defer schedules fn to run on the room goroutine. Safe from any goroutine.
	Defer(fn func())
	// Promote switches the room into the game phase and deals the first game.
	Promote() error
}

type Finder interface {
	Nearby(ctx context.Context, lat, lng float64) ([]places.Place, error)
}

// Sender identifies the connection a message came from.
type Sender struct {
	Name     string
	ClientID string
}

type Options struct {
	RoomName      string
	Finder        Finder
	LookupTimeout time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
}

// Controller handles pre-game traffic for one room.
type Controller struct {
	roomName string
	finder   Finder
	timeout  time.Duration
	log      *zap.Logger
	now      func() time.Time
	starting bool
	// abandoned is set when the owning room resets under a pending start.
	abandoned bool
}

func New(opts Options) *Controller {
	c := &Controller{
		roomName: opts.RoomName,
		finder:   opts.Finder,
		timeout:  opts.LookupTimeout,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Abandon makes any pending start finish without touching the room.
func (c *Controller) Abandon() { c.abandoned = true }

// Starting reports whether a start request is waiting on the nearby search.
func (c *Controller) Starting() bool { return c.starting }

func (c *Controller) at() int64 { return c.now().UnixMilli() }

// OnConnect acknowledges a new member and announces them to the room.
func (c *Controller) OnConnect(co Coordinator, name string) {
	co.Unicast(name, types.Joined{
		Type:         types.TypeJoined,
		RoomID:       c.roomName,
		At:           c.at(),
		Members:      co.Members(),
		HostClientID: co.HostClientID(),
	})
	co.Broadcast(types.NewMembers(co.Members(), co.HostClientID()))
	co.Broadcast(types.NewSystem(fmt.Sprintf("🔔 %s joined %s", name, c.roomName), c.at()))
}

func (c *Controller) Handle(ctx context.Context, co Coordinator, from Sender, msg types.Inbound) {
	switch m := msg.(type) {
	case types.Chat:
		c.Chat(co, from, m.Text)
	case types.Ping:
		c.Ping(co, from)
	case types.Join:
		// acknowledged at connect time
	case types.Start:
		c.start(ctx, co, from, m)
	default:
		co.Unicast(from.Name, types.NewError(fmt.Sprintf("unknown message type %q", msg.Kind())))
	}
}

func (c *Controller) Chat(co Coordinator, from Sender, text string) {
	co.Broadcast(types.ChatMessage{Type: types.TypeChat, From: from.Name, Text: text, At: c.at()})
}

func (c *Controller) Ping(co Coordinator, from Sender) {
	co.Unicast(from.Name, types.Pong{Type: types.TypePong, At: c.at()})
}

func (c *Controller) start(ctx context.Context, co Coordinator, from Sender, m types.Start) {
	switch {
	case from.ClientID == "" || from.ClientID != co.HostClientID():
		co.Unicast(from.Name, types.NewError(ErrNotHost.Error()))
		return
	case c.starting:
		co.Unicast(from.Name, types.NewError(ErrStartPending.Error()))
		return
	case m.Lat == nil || m.Lng == nil:
		co.Unicast(from.Name, types.NewError(ErrMissingLocation.Error()))
		return
	case len(co.Members()) < MinMembers:
		co.Unicast(from.Name, types.NewError(ErrNotEnoughMembers.Error()))
		return
	}

	c.starting = true
	lat, lng := *m.Lat, *m.Lng
	go func() {
		lctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		var spots []places.Place
		err := places.ErrMissingAPIKey
		if c.finder != nil {
			spots, err = c.finder.Nearby(lctx, lat, lng)
		}
		co.Defer(func() { c.finishStart(co, from, spots, err) })
	}()
}

// finishStart resumes a start request once the nearby search has settled.
// Search failures only cost the spot payloads.
func (c *Controller) finishStart(co Coordinator, from Sender, spots []places.Place, err error) {
	c.starting = false
	if c.abandoned {
		return
	}
	if err != nil {
		c.log.Warn("nearby search unavailable, starting without spots",
			zap.String("room", c.roomName),
			zap.Error(err),
		)
	}

	if from.ClientID != co.HostClientID() {
		co.Unicast(from.Name, types.NewError(ErrNotHost.Error()))
		return
	}
	members := co.Members()
	if len(members) < MinMembers {
		co.Unicast(from.Name, types.NewError(ErrNotEnoughMembers.Error()))
		return
	}

	if len(spots) > 0 {
		for _, name := range members {
			p := spots[rand.IntN(len(spots))]
			co.Unicast(name, types.SpotChoice{
				Type: types.TypeSpotChoice,
				Spot: types.Spot{Name: p.Name, PlaceID: p.PlaceID},
			})
		}
	}

	co.Broadcast(types.NewPhaseChanged(types.PhaseGame))
	if err := co.Promote(); err != nil {
		co.Unicast(from.Name, types.NewError(err.Error()))
	}
}
