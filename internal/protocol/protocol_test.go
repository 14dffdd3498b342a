package protocol

import (
	"encoding/json"
	"testing"

	"github.com/sharetube/whiteboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWireFormat(t *testing.T) {
	data, err := Encode(Draw{X: 1.5, Y: 2, Color: "#ff0000", BrushSize: 4, RoomKey: "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"draw","payload":{"x":1.5,"y":2,"color":"#ff0000","brushSize":4,"isEraser":false,"roomKey":"abc"}}`, string(data))

	data, err = Encode(LoadWhiteboardRequest{SnapshotID: "s1", RoomKey: "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"loadWhiteboardRequest","payload":{"snapshotId":"s1","roomKey":"abc"}}`, string(data))
}

func TestDecode(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"whiteboardSaved","payload":{"snapshotId":"snap-1"}}`))
	require.NoError(t, err)
	assert.Equal(t, WhiteboardSaved{SnapshotID: "snap-1"}, ev)

	ev, err = Decode([]byte(`{"type":"joinRoom","payload":{"roomKey":"abc","participantName":"Ann","participantContact":"a@b.c","resumeParticipantId":"p"}}`))
	require.NoError(t, err)
	assert.Equal(t, JoinRoom{RoomKey: "abc", ParticipantName: "Ann", ParticipantContact: "a@b.c", ResumeParticipantID: "p"}, ev)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"type":"loadWhiteboard","payload":{}}`))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedMessage)

	_, err = Decode([]byte(`{"type":"draw"}`))
	assert.ErrorIs(t, err, ErrMalformedMessage)

	_, err = Decode([]byte(`{"type":"draw","payload":{"x":"left"}}`))
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestEveryKindDecodes(t *testing.T) {
	events := []Event{
		JoinRoom{RoomKey: "abc"},
		UserCreated{ParticipantID: "p"},
		Draw{RoomKey: "abc", BrushSize: 1},
		EndStroke{RoomKey: "abc"},
		ClearWhiteboard{RoomKey: "abc"},
		SaveWhiteboard{RoomKey: "abc", Name: "n"},
		WhiteboardSaved{SnapshotID: "s"},
		WhiteboardSaveError{Error: "e"},
		LoadWhiteboardRequest{SnapshotID: "s"},
		LoadWhiteboardDelivery{SnapshotID: "s"},
		LoadWhiteboardError{SnapshotID: "s"},
		Error{Message: "m"},
	}

	for _, ev := range events {
		data, err := Encode(ev)
		require.NoError(t, err)

		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		assert.Equal(t, ev.Kind(), env.Type)

		got, err := DecodeEnvelope(env)
		require.NoError(t, err, ev.Kind())
		assert.IsType(t, ev, got)
	}
}

func TestDrawStrokeEvent(t *testing.T) {
	ev := domain.StrokeEvent{Point: domain.Point{X: 3, Y: 4}, Color: "#123456", BrushSize: 5, IsEraser: true, RoomKey: "abc"}
	d := NewDraw(ev)
	assert.Empty(t, d.ParticipantID)
	assert.Equal(t, ev, d.StrokeEvent())
}
