package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Inbound
	}{
		{name: "join", in: `{"type":"join","clientId":"c1"}`, want: Join{ClientID: "c1"}},
		{name: "join without id", in: `{"type":"join"}`, want: Join{}},
		{name: "chat", in: `{"type":"chat","text":"hi"}`, want: Chat{Text: "hi"}},
		{name: "ping", in: `{"type":"ping"}`, want: Ping{}},
		{name: "start", in: `{"type":"start","lat":35.6,"lng":139.7}`, want: Start{Lat: f64(35.6), Lng: f64(139.7)}},
		{name: "start at origin", in: `{"type":"start","lat":0,"lng":0}`, want: Start{Lat: f64(0), Lng: f64(0)}},
		{name: "start missing lng", in: `{"type":"start","lat":1}`, want: Start{Lat: f64(1)}},
		{name: "start missing both", in: `{"type":"start"}`, want: Start{}},
		{name: "play", in: `{"type":"play","cardId":101,"target":"B"}`, want: Play{CardID: 101, Target: "B"}},
		{name: "play without target", in: `{"type":"play","cardId":301}`, want: Play{CardID: 301}},
		{name: "end turn", in: `{"type":"end_turn"}`, want: EndTurn{}},
		{name: "mulligan", in: `{"type":"mulligan"}`, want: Mulligan{}},
		{name: "sync", in: `{"type":"sync"}`, want: Sync{}},
		{name: "claim host", in: `{"type":"claim_host"}`, want: ClaimHost{}},
		{name: "unknown", in: `{"type":"dance"}`, want: Unknown{Type: "dance"}},
		{name: "missing type", in: `{}`, want: Unknown{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.in))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeKinds(t *testing.T) {
	got, err := Decode([]byte(`{"type":"dance"}`))
	require.NoError(t, err)
	assert.Equal(t, "dance", got.Kind())

	got, err = Decode([]byte(`{"type":"end_turn"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeEndTurn, got.Kind())
}

func TestDecodeMalformed(t *testing.T) {
	for _, in := range []string{`{not json`, `"chat"`, `{"type":"play","cardId":"x"}`} {
		_, err := Decode([]byte(in))
		require.ErrorIs(t, err, ErrMalformed, in)
	}
}
