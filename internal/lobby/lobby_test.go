package lobby

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DoyleJ11/spot-battle-backend/internal/places"
	"github.com/DoyleJ11/spot-battle-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to  string // empty for broadcast
	msg any
}

type fakeRoom struct {
	members  []string
	host     string
	out      []sent
	deferred chan func()
	promoted int
	promoErr error
}

func newFakeRoom(members ...string) *fakeRoom {
	return &fakeRoom{members: members, host: "host-id", deferred: make(chan func(), 1)}
}

func (f *fakeRoom) Unicast(name string, msg any) { f.out = append(f.out, sent{to: name, msg: msg}) }
func (f *fakeRoom) Broadcast(msg any)            { f.out = append(f.out, sent{msg: msg}) }
func (f *fakeRoom) Members() []string            { return f.members }
func (f *fakeRoom) HostClientID() string         { return f.host }
func (f *fakeRoom) Defer(fn func())              { f.deferred <- fn }
func (f *fakeRoom) Promote() error {
	f.promoted++
	return f.promoErr
}

// runDeferred waits for the start continuation and runs it as the room would.
func (f *fakeRoom) runDeferred(t *testing.T) {
	t.Helper()
	select {
	case fn := <-f.deferred:
		fn()
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for deferred continuation")
	}
}

type fakeFinder struct {
	spots []places.Place
	err   error
	block chan struct{}
}

func (f *fakeFinder) Nearby(ctx context.Context, lat, lng float64) ([]places.Place, error) {
	if f.block != nil {
		<-f.block
	}
	return f.spots, f.err
}

func fixedNow() time.Time { return time.UnixMilli(1_700_000_000_000) }

func ptr(v float64) *float64 { return &v }

func newController(f Finder) *Controller {
	return New(Options{RoomName: "room-1", Finder: f, Now: fixedNow})
}

func errorText(t *testing.T, s sent) string {
	t.Helper()
	e, ok := s.msg.(types.ErrorMessage)
	require.True(t, ok, "expected error message, got %T", s.msg)
	return e.Text
}

func TestOnConnect(t *testing.T) {
	co := newFakeRoom("A", "B")
	c := newController(nil)

	c.OnConnect(co, "B")
	require.Len(t, co.out, 3)

	joined, ok := co.out[0].msg.(types.Joined)
	require.True(t, ok)
	assert.Equal(t, "B", co.out[0].to)
	assert.Equal(t, "room-1", joined.RoomID)
	assert.Equal(t, []string{"A", "B"}, joined.Members)
	assert.Equal(t, "host-id", joined.HostClientID)

	members, ok := co.out[1].msg.(types.Members)
	require.True(t, ok)
	assert.Empty(t, co.out[1].to)
	assert.Equal(t, []string{"A", "B"}, members.Members)

	_, ok = co.out[2].msg.(types.System)
	assert.True(t, ok)
}

func TestChatAndPing(t *testing.T) {
	co := newFakeRoom("A")
	c := newController(nil)
	from := Sender{Name: "A"}

	c.Handle(context.Background(), co, from, types.Chat{Text: "hi"})
	c.Handle(context.Background(), co, from, types.Ping{})
	c.Handle(context.Background(), co, from, types.Join{ClientID: "x"})

	require.Len(t, co.out, 2)
	assert.Equal(t, sent{msg: types.ChatMessage{Type: "chat", From: "A", Text: "hi", At: 1_700_000_000_000}}, co.out[0])
	assert.Equal(t, sent{to: "A", msg: types.Pong{Type: "pong", At: 1_700_000_000_000}}, co.out[1])
}

func TestUnknownType(t *testing.T) {
	co := newFakeRoom("A")
	c := newController(nil)

	c.Handle(context.Background(), co, Sender{Name: "A"}, types.Unknown{Type: "dance"})
	c.Handle(context.Background(), co, Sender{Name: "A"}, types.Play{CardID: 101})

	require.Len(t, co.out, 2)
	assert.Contains(t, errorText(t, co.out[0]), "dance")
	assert.Contains(t, errorText(t, co.out[1]), "play")
}

func TestStartRejections(t *testing.T) {
	cases := []struct {
		name    string
		from    Sender
		members []string
		msg     types.Start
		want    error
	}{
		{name: "non host", from: Sender{Name: "B", ClientID: "other"}, members: []string{"A", "B"}, msg: types.Start{Lat: ptr(1), Lng: ptr(2)}, want: ErrNotHost},
		{name: "no client id", from: Sender{Name: "B"}, members: []string{"A", "B"}, msg: types.Start{Lat: ptr(1), Lng: ptr(2)}, want: ErrNotHost},
		{name: "missing location", from: Sender{Name: "A", ClientID: "host-id"}, members: []string{"A", "B"}, msg: types.Start{Lat: ptr(1)}, want: ErrMissingLocation},
		{name: "alone", from: Sender{Name: "A", ClientID: "host-id"}, members: []string{"A"}, msg: types.Start{Lat: ptr(1), Lng: ptr(2)}, want: ErrNotEnoughMembers},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			co := newFakeRoom(tc.members...)
			c := newController(&fakeFinder{})

			c.Handle(context.Background(), co, tc.from, tc.msg)
			require.Len(t, co.out, 1)
			assert.Equal(t, tc.from.Name, co.out[0].to)
			assert.Equal(t, tc.want.Error(), errorText(t, co.out[0]))
			assert.False(t, c.Starting())
			assert.Zero(t, co.promoted)
		})
	}
}

func TestStartWithSpots(t *testing.T) {
	co := newFakeRoom("A", "B")
	spots := []places.Place{{Name: "Shrine", PlaceID: "p1"}}
	c := newController(&fakeFinder{spots: spots})
	host := Sender{Name: "A", ClientID: "host-id"}

	c.Handle(context.Background(), co, host, types.Start{Lat: ptr(35.6), Lng: ptr(139.7)})
	assert.True(t, c.Starting())
	assert.Empty(t, co.out)

	co.runDeferred(t)
	assert.False(t, c.Starting())
	require.Len(t, co.out, 3)
	for i, name := range []string{"A", "B"} {
		assert.Equal(t, name, co.out[i].to)
		assert.Equal(t, types.SpotChoice{Type: "spot_choice", Spot: types.Spot{Name: "Shrine", PlaceID: "p1"}}, co.out[i].msg)
	}
	assert.Equal(t, types.NewPhaseChanged("game"), co.out[2].msg)
	assert.Equal(t, 1, co.promoted)
}

func TestStartToleratesLookupFailure(t *testing.T) {
	co := newFakeRoom("A", "B")
	c := newController(&fakeFinder{err: errors.New("boom")})

	c.Handle(context.Background(), co, Sender{Name: "A", ClientID: "host-id"}, types.Start{Lat: ptr(1), Lng: ptr(2)})
	co.runDeferred(t)

	require.Len(t, co.out, 1)
	assert.Equal(t, types.NewPhaseChanged("game"), co.out[0].msg)
	assert.Equal(t, 1, co.promoted)
}

func TestStartWithoutFinder(t *testing.T) {
	co := newFakeRoom("A", "B")
	c := newController(nil)

	c.Handle(context.Background(), co, Sender{Name: "A", ClientID: "host-id"}, types.Start{Lat: ptr(1), Lng: ptr(2)})
	co.runDeferred(t)
	assert.Equal(t, 1, co.promoted)
}

func TestStartIsSerialized(t *testing.T) {
	co := newFakeRoom("A", "B")
	finder := &fakeFinder{block: make(chan struct{})}
	c := newController(finder)
	host := Sender{Name: "A", ClientID: "host-id"}
	start := types.Start{Lat: ptr(1), Lng: ptr(2)}

	c.Handle(context.Background(), co, host, start)
	c.Handle(context.Background(), co, host, start)
	require.Len(t, co.out, 1)
	assert.Equal(t, ErrStartPending.Error(), errorText(t, co.out[0]))

	close(finder.block)
	co.runDeferred(t)
	assert.Equal(t, 1, co.promoted)
}

func TestStartAbortsWhenMembersLeft(t *testing.T) {
	co := newFakeRoom("A", "B")
	finder := &fakeFinder{block: make(chan struct{})}
	c := newController(finder)

	c.Handle(context.Background(), co, Sender{Name: "A", ClientID: "host-id"}, types.Start{Lat: ptr(1), Lng: ptr(2)})
	co.members = []string{"A"}
	close(finder.block)
	co.runDeferred(t)

	require.Len(t, co.out, 1)
	assert.Equal(t, ErrNotEnoughMembers.Error(), errorText(t, co.out[0]))
	assert.Zero(t, co.promoted)
	assert.False(t, c.Starting())
}

func TestStartAbortsWhenHostLeft(t *testing.T) {
	co := newFakeRoom("A", "B", "C")
	finder := &fakeFinder{block: make(chan struct{})}
	c := newController(finder)

	c.Handle(context.Background(), co, Sender{Name: "A", ClientID: "host-id"}, types.Start{Lat: ptr(1), Lng: ptr(2)})
	co.members = []string{"B", "C"}
	co.host = ""
	close(finder.block)
	co.runDeferred(t)

	require.Len(t, co.out, 1)
	assert.Equal(t, ErrNotHost.Error(), errorText(t, co.out[0]))
	assert.Zero(t, co.promoted)
	assert.False(t, c.Starting())
}
