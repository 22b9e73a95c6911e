package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/DoyleJ11/spot-battle-backend/internal/engine"
	"github.com/DoyleJ11/spot-battle-backend/internal/lobby"
	"github.com/DoyleJ11/spot-battle-backend/internal/store"
	"github.com/DoyleJ11/spot-battle-backend/pkg/types"
	"go.uber.org/zap"
)

var ErrHostTaken = errors.New("a host is already assigned")
var ErrNoClientID = errors.New("announce a client id before claiming host")
var ErrGameInProgress = errors.New("a game is already in progress")

// Close codes sent to rejected or evicted connections.
const (
	CloseRoomFull      = 4000
	CloseDuplicateName = 4101
)

const DefaultMaxMembers = 6

type Phase string

const (
	PhaseLobby Phase = types.PhaseLobby
	PhaseGame  Phase = types.PhaseGame
)

type Msg interface{ isRoomMsg() }

// Join registers a connection. Outbox receives pre-serialized frames and is
// closed by the room once the connection is removed. Kick must not block; it
// is called before the outbox of an evicted connection is closed.
type Join struct {
	ConnID   string
	Name     string
	ClientID string
	Outbox   chan []byte
	Kick     func(code int, reason string)
	Reply    chan Admission
}

func (Join) isRoomMsg() {}

type Leave struct{ ConnID string }

func (Leave) isRoomMsg() {}

type FromClient struct {
	ConnID string
	Msg    types.Inbound
}

func (FromClient) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type continuation struct{ fn func() }

func (continuation) isRoomMsg() {}

// Admission answers a Join. Rejected joins carry the close code and the error
// frame to send before closing.
type Admission struct {
	OK      bool
	Code    int
	Reason  string
	Payload []byte
}

type View struct {
	Phase           Phase
	Members         []string
	HostClientID    string
	PreferredHostID string
	Starting        bool
	Game            engine.Snapshot
	Hands           map[string][]int
}

type Options struct {
	MaxMembers    int
	Finder        lobby.Finder
	LookupTimeout time.Duration
	Recorder      store.Recorder
	StoreTimeout  time.Duration
	Logger        *zap.Logger
	// Rand seeds deck shuffles; nil uses a time-seeded source. A *rand.Rand is
	// not safe for concurrent use, so set it only for a single room.
	Rand *rand.Rand
}

type conn struct {
	id       string
	name     string
	clientID string
	out      chan []byte
	kick     func(code int, reason string)
}

type Room struct {
	name   string
	opts   Options
	log    *zap.Logger
	inbox  chan Msg
	ctx    context.Context
	cancel context.CancelFunc

	phase           Phase
	conns           map[string]*conn
	order           []string // conn ids in join order
	preferredHostID string
	hostClientID    string

	lobby  *lobby.Controller
	game   *engine.Game
	lineup []string
}

func New(parent context.Context, name string, opts Options) *Room {
	ctx, cancel := context.WithCancel(parent)
	if opts.MaxMembers <= 0 {
		opts.MaxMembers = DefaultMaxMembers
	}
	if opts.Recorder == nil {
		opts.Recorder = store.Nop{}
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.With(zap.String("room", name))

	r := &Room{
		name:   name,
		opts:   opts,
		log:    log,
		inbox:  make(chan Msg, 64),
		ctx:    ctx,
		cancel: cancel,
		phase:  PhaseLobby,
		conns:  make(map[string]*conn),
		game:   engine.NewGame(opts.Rand),
	}
	r.lobby = r.newLobby()

	go r.loop()
	return r
}

func (r *Room) newLobby() *lobby.Controller {
	return lobby.New(lobby.Options{
		RoomName:      r.name,
		Finder:        r.opts.Finder,
		LookupTimeout: r.opts.LookupTimeout,
		Logger:        r.log,
	})
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Send queues m unless the room has already shut down.
func (r *Room) Send(m Msg) bool {
	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) Name() string { return r.name }

// Close stops the room and closes every connection outbox.
func (r *Room) Close() { r.cancel() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- r.connect(msg)

			case Leave:
				r.disconnect(msg.ConnID)

			case FromClient:
				r.dispatch(msg)

			case continuation:
				msg.fn()

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- r.view()
			}
		}
	}
}

func (r *Room) shutdown() {
	for id, c := range r.conns {
		close(c.out)
		delete(r.conns, id)
	}
	r.order = nil
	r.cancel()
}

func (r *Room) view() View {
	hands := make(map[string][]int, len(r.lineup))
	for _, p := range r.lineup {
		hands[p] = r.game.Hand(p)
	}
	return View{
		Phase:           r.phase,
		Members:         r.Members(),
		HostClientID:    r.hostClientID,
		PreferredHostID: r.preferredHostID,
		Starting:        r.lobby.Starting(),
		Game:            r.game.Snapshot(),
		Hands:           hands,
	}
}

func (r *Room) connect(j Join) Admission {
	existing := r.connByName(j.Name)

	active := len(r.conns)
	if existing != nil {
		active--
	}
	if r.phase == PhaseLobby && active >= r.opts.MaxMembers {
		r.log.Info("room full, rejecting join", zap.String("name", j.Name), zap.Int("members", active))
		payload, _ := json.Marshal(types.ErrorMessage{
			Type: types.TypeError,
			Code: types.CodeRoomFull,
			Text: fmt.Sprintf("room is full (%d members max)", r.opts.MaxMembers),
		})
		return Admission{Code: CloseRoomFull, Reason: types.CodeRoomFull, Payload: payload}
	}

	if existing != nil {
		r.log.Info("evicting duplicate name", zap.String("name", j.Name), zap.String("conn", existing.id))
		existing.kick(CloseDuplicateName, "DUPLICATE_NAME")
		r.remove(existing)
	}

	c := &conn{id: j.ConnID, name: j.Name, out: j.Outbox, kick: j.Kick}
	r.conns[c.id] = c
	r.order = append(r.order, c.id)
	r.bindClientID(c, j.ClientID)

	if r.phase == PhaseLobby {
		r.lobby.OnConnect(r, c.name)
	} else {
		r.Unicast(c.name, types.NewPhaseChanged(types.PhaseGame))
		r.applyGame(c, engine.Command{Type: engine.CmdSync, Player: c.name})
		r.broadcastMembers()
	}
	return Admission{OK: true}
}

// bindClientID records a connection's durable identity and returns the host
// role to it when it is the preferred host.
func (r *Room) bindClientID(c *conn, clientID string) {
	if clientID == "" {
		return
	}
	old := c.clientID
	c.clientID = clientID
	if old != "" && old != clientID && old == r.hostClientID && !r.clientIDConnected(old) {
		r.hostClientID = ""
		r.log.Info("host released by rebind", zap.String("client_id", old))
		r.broadcastMembers()
	}
	if r.preferredHostID == "" {
		r.preferredHostID = clientID
	}
	if clientID == r.preferredHostID && r.hostClientID != clientID {
		r.hostClientID = clientID
		r.log.Info("host assigned", zap.String("client_id", clientID))
		r.broadcastMembers()
	}
}

func (r *Room) remove(c *conn) {
	delete(r.conns, c.id)
	if i := slices.Index(r.order, c.id); i != -1 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	close(c.out)
	if c.clientID != "" && c.clientID == r.hostClientID && !r.clientIDConnected(c.clientID) {
		r.hostClientID = ""
	}
}

func (r *Room) disconnect(connID string) {
	c, ok := r.conns[connID]
	if !ok {
		return
	}
	r.remove(c)

	r.Broadcast(types.NewSystem(fmt.Sprintf("👋 %s left", c.name), now()))
	r.broadcastMembers()

	if len(r.conns) == 0 {
		r.reset()
	}
}

// reset returns an empty room to its initial lobby state. The preferred host
// survives so the same identity reclaims host when it comes back.
func (r *Room) reset() {
	r.phase = PhaseLobby
	r.game = engine.NewGame(r.opts.Rand)
	r.lineup = nil
	r.lobby.Abandon()
	r.lobby = r.newLobby()
	r.hostClientID = ""
	r.log.Info("room reset")
}

func (r *Room) dispatch(m FromClient) {
	c, ok := r.conns[m.ConnID]
	if !ok {
		return
	}

	switch msg := m.Msg.(type) {
	case types.Join:
		r.bindClientID(c, msg.ClientID)
		return
	case types.ClaimHost:
		r.claimHost(c)
		return
	}

	from := lobby.Sender{Name: c.name, ClientID: c.clientID}
	if r.phase == PhaseLobby {
		r.lobby.Handle(r.ctx, r, from, m.Msg)
		return
	}

	switch msg := m.Msg.(type) {
	case types.Chat:
		r.lobby.Chat(r, from, msg.Text)
	case types.Ping:
		r.lobby.Ping(r, from)
	case types.Play:
		r.applyGame(c, engine.Command{Type: engine.CmdPlay, Player: c.name, CardID: msg.CardID, Target: msg.Target})
	case types.EndTurn:
		r.applyGame(c, engine.Command{Type: engine.CmdEndTurn, Player: c.name})
	case types.Mulligan:
		r.applyGame(c, engine.Command{Type: engine.CmdMulligan, Player: c.name})
	case types.Sync:
		r.applyGame(c, engine.Command{Type: engine.CmdSync, Player: c.name})
	case types.Start:
		r.Unicast(c.name, types.NewError(ErrGameInProgress.Error()))
	default:
		r.Unicast(c.name, types.NewError(fmt.Sprintf("unknown message type %q", m.Msg.Kind())))
	}
}

func (r *Room) claimHost(c *conn) {
	switch {
	case c.clientID == "":
		r.Unicast(c.name, types.NewError(ErrNoClientID.Error()))
	case r.hostClientID != "":
		r.Unicast(c.name, types.NewError(ErrHostTaken.Error()))
	default:
		r.preferredHostID = c.clientID
		r.hostClientID = c.clientID
		r.log.Info("host claimed", zap.String("client_id", c.clientID), zap.String("name", c.name))
		r.broadcastMembers()
	}
}

func (r *Room) applyGame(c *conn, cmd engine.Command) {
	events, err := r.game.Apply(cmd)
	if err != nil {
		r.Unicast(c.name, types.NewError(err.Error()))
		return
	}
	r.emit(events)
	if engine.ContainsEvent(events, engine.EvtGameOver) {
		r.endGame(events)
	}
}

// Promote moves the room into the game phase and deals a new game for the
// current members.
func (r *Room) Promote() error {
	if r.phase == PhaseGame {
		return nil
	}
	events, err := r.game.Start(r.Members())
	if err != nil {
		return err
	}
	r.phase = PhaseGame
	r.lineup = r.Members()
	r.log.Info("game started", zap.Strings("players", r.lineup))
	r.emit(events)
	return nil
}

func (r *Room) endGame(events []engine.Event) {
	snap := r.game.Snapshot()
	match := store.Match{Room: r.name, Players: r.lineup, Rounds: snap.Round, EndedAt: time.Now()}
	for _, e := range events {
		if e.Type == engine.EvtGameOver {
			match.Winner, match.Draw = e.Winner, e.Draw
		}
	}
	r.log.Info("game over", zap.String("winner", match.Winner), zap.Bool("draw", match.Draw))

	r.phase = PhaseLobby
	r.game = engine.NewGame(r.opts.Rand)
	r.lineup = nil
	r.Broadcast(types.NewPhaseChanged(types.PhaseLobby))
	r.archive(match)
}

func (r *Room) archive(m store.Match) {
	rec, timeout, log := r.opts.Recorder, r.opts.StoreTimeout, r.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := rec.RecordMatch(ctx, m); err != nil {
			log.Warn("archive match failed", zap.Error(err))
		}
	}()
}

// Members lists connected display names in join order.
func (r *Room) Members() []string {
	names := make([]string, 0, len(r.order))
	for _, id := range r.order {
		names = append(names, r.conns[id].name)
	}
	return names
}

func (r *Room) HostClientID() string { return r.hostClientID }

// Defer runs fn on the room goroutine. It is dropped if the room has shut down.
func (r *Room) Defer(fn func()) {
	r.Send(continuation{fn: fn})
}

// Broadcast serializes msg once and offers it to every connection. A full
// outbox skips that frame rather than blocking the room.
func (r *Room) Broadcast(msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal broadcast", zap.Error(err))
		return
	}
	for _, id := range r.order {
		r.deliver(r.conns[id], payload)
	}
}

// Unicast sends msg to the live connection holding name, if any.
func (r *Room) Unicast(name string, msg any) {
	c := r.connByName(name)
	if c == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal unicast", zap.Error(err))
		return
	}
	r.deliver(c, payload)
}

func (r *Room) deliver(c *conn, payload []byte) {
	select {
	case c.out <- payload:
	default:
		r.log.Warn("outbox full, dropping frame", zap.String("name", c.name), zap.String("conn", c.id))
	}
}

func (r *Room) broadcastMembers() {
	r.Broadcast(types.NewMembers(r.Members(), r.hostClientID))
}

func (r *Room) connByName(name string) *conn {
	for _, id := range r.order {
		if c := r.conns[id]; c.name == name {
			return c
		}
	}
	return nil
}

func (r *Room) clientIDConnected(clientID string) bool {
	for _, c := range r.conns {
		if c.clientID == clientID {
			return true
		}
	}
	return false
}

func now() int64 { return time.Now().UnixMilli() }
