package session

import (
	"context"
	"image"
	"image/color"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sharetube/whiteboard/internal/client"
	"github.com/sharetube/whiteboard/internal/domain"
	"github.com/sharetube/whiteboard/internal/protocol"
	"github.com/sharetube/whiteboard/internal/snapshot"
	"github.com/sharetube/whiteboard/internal/stroke"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu       sync.Mutex
	handlers map[protocol.Kind][]client.Handler
	sent     []protocol.Event
	closes   int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[protocol.Kind][]client.Handler)}
}

func (f *fakeChannel) Send(ev protocol.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeChannel) On(kind protocol.Kind, h client.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[kind] = append(f.handlers[kind], h)
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeChannel) deliver(ev protocol.Event) {
	f.mu.Lock()
	hs := slices.Clone(f.handlers[ev.Kind()])
	f.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

func (f *fakeChannel) sentEvents() []protocol.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sent)
}

func newSession(t *testing.T, ttl time.Duration) (*Session, *fakeChannel) {
	t.Helper()

	ch := newFakeChannel()
	s, err := New(ch, Config{
		RoomKey:   "abc",
		Name:      "Ann",
		Contact:   "ann@example.com",
		Width:     40,
		Height:    30,
		StatusTTL: ttl,
	})
	require.NoError(t, err)

	return s, ch
}

func TestNewRequiresRoomKey(t *testing.T) {
	_, err := New(newFakeChannel(), Config{})
	assert.ErrorIs(t, err, domain.ErrEmptyRoomKey)
}

func TestJoin(t *testing.T) {
	s, ch := newSession(t, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.WaitJoined(ctx)
	assert.ErrorIs(t, err, ErrJoinTimeout)

	require.NoError(t, s.Join())
	assert.ErrorIs(t, s.Join(), ErrAlreadyJoined)
	assert.Equal(t, []protocol.Event{protocol.JoinRoom{
		RoomKey:            "abc",
		ParticipantName:    "Ann",
		ParticipantContact: "ann@example.com",
	}}, ch.sentEvents())

	ch.deliver(protocol.UserCreated{ParticipantID: "p-1"})

	id, err := s.WaitJoined(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p-1", id)
	assert.Equal(t, "p-1", s.ParticipantID())
}

func TestLocalStrokeIsEchoedAndSent(t *testing.T) {
	s, ch := newSession(t, time.Second)
	ch.deliver(protocol.UserCreated{ParticipantID: "p-1"})
	require.NoError(t, s.SetBrush(domain.Brush{Color: "#ff0000", Size: 4}))

	require.NoError(t, s.PointerMove(domain.Point{X: 1, Y: 1}))
	assert.Empty(t, ch.sentEvents(), "moves while idle are ignored")

	require.NoError(t, s.PointerDown(domain.Point{X: 10, Y: 10}))
	require.NoError(t, s.PointerMove(domain.Point{X: 20, Y: 10}))
	require.NoError(t, s.PointerUp())
	require.NoError(t, s.PointerLeave())

	assert.Equal(t, []protocol.Event{
		protocol.Draw{X: 10, Y: 10, Color: "#ff0000", BrushSize: 4, RoomKey: "abc", ParticipantID: "p-1"},
		protocol.Draw{X: 20, Y: 10, Color: "#ff0000", BrushSize: 4, RoomKey: "abc", ParticipantID: "p-1"},
		protocol.EndStroke{RoomKey: "abc", ParticipantID: "p-1"},
	}, ch.sentEvents())

	img := s.Image()
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, img.NRGBAAt(15, 10))
	assert.Zero(t, img.NRGBAAt(15, 20).A)
}

func TestRemoteDrawAndRoomMismatch(t *testing.T) {
	s, ch := newSession(t, time.Second)

	ch.deliver(protocol.Draw{X: 5, Y: 5, Color: "#0000ff", BrushSize: 4, RoomKey: "other", ParticipantID: "p-2"})
	assert.Zero(t, s.Image().NRGBAAt(5, 5).A, "draws for another room are ignored")

	ch.deliver(protocol.Draw{X: 5, Y: 5, Color: "#0000ff", BrushSize: 4, RoomKey: "abc", ParticipantID: "p-2"})
	ch.deliver(protocol.Draw{X: 25, Y: 5, Color: "#0000ff", BrushSize: 4, RoomKey: "abc", ParticipantID: "p-2"})
	img := s.Image()
	assert.Equal(t, color.NRGBA{B: 0xff, A: 0xff}, img.NRGBAAt(15, 5), "consecutive samples are joined")

	ch.deliver(protocol.EndStroke{RoomKey: "abc", ParticipantID: "p-2"})
	ch.deliver(protocol.Draw{X: 5, Y: 25, Color: "#0000ff", BrushSize: 4, RoomKey: "abc", ParticipantID: "p-2"})
	img = s.Image()
	assert.Zero(t, img.NRGBAAt(15, 15).A, "end of stroke breaks the line")
	assert.Equal(t, uint8(0xff), img.NRGBAAt(5, 25).A)

	ch.deliver(protocol.ClearWhiteboard{RoomKey: "other"})
	assert.Equal(t, uint8(0xff), s.Image().NRGBAAt(5, 25).A)
	ch.deliver(protocol.ClearWhiteboard{RoomKey: "abc"})
	assert.Zero(t, s.Image().NRGBAAt(5, 25).A)
}

func TestClearSendsBroadcast(t *testing.T) {
	s, ch := newSession(t, time.Second)

	require.NoError(t, s.PointerDown(domain.Point{X: 5, Y: 5}))
	require.NoError(t, s.Clear())

	sent := ch.sentEvents()
	assert.Equal(t, protocol.ClearWhiteboard{RoomKey: "abc"}, sent[len(sent)-1])
	assert.Zero(t, s.Image().NRGBAAt(5, 5).A)
}

func TestSaveAcknowledged(t *testing.T) {
	ttl := 200 * time.Millisecond
	s, ch := newSession(t, ttl)
	require.NoError(t, s.PointerDown(domain.Point{X: 5, Y: 5}))
	require.NoError(t, s.PointerUp())
	before := s.Image()

	var mu sync.Mutex
	var results []SaveResult
	var statuses []string
	s.OnSaveResult(func(r SaveResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	})
	s.OnStatus(func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, msg)
	})

	require.NoError(t, s.Save("demo"))
	assert.Equal(t, StatusSaving, s.Status())

	sent := ch.sentEvents()
	save, ok := sent[len(sent)-1].(protocol.SaveWhiteboard)
	require.True(t, ok)
	assert.Equal(t, "demo", save.Name)
	assert.Equal(t, "abc", save.RoomKey)

	decoded, err := snapshot.Decode(save.EncodedImage, 40, 30)
	require.NoError(t, err)
	assert.Equal(t, before.Pix, decoded.Pix)

	ch.deliver(protocol.WhiteboardSaved{SnapshotID: "snap-1"})
	assert.Equal(t, StatusSaved, s.Status())
	assert.Equal(t, before.Pix, s.Image().Pix, "saving never changes pixels")

	require.Eventually(t, func() bool { return s.Status() == "" }, 3*ttl+time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []SaveResult{{Name: "demo", SnapshotID: "snap-1"}}, results)
	assert.Equal(t, []string{StatusSaving, StatusSaved, ""}, statuses)
}

func TestSaveRejected(t *testing.T) {
	s, ch := newSession(t, time.Second)

	var got SaveResult
	s.OnSaveResult(func(r SaveResult) { got = r })

	assert.ErrorIs(t, s.Save(""), ErrEmptyName)
	require.NoError(t, s.Save("demo"))
	ch.deliver(protocol.WhiteboardSaveError{Error: "disk full"})

	var saveErr *SaveError
	require.ErrorAs(t, got.Err, &saveErr)
	assert.Equal(t, "disk full", saveErr.Description)
	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, StatusSaveFailed, s.Status())
}

func TestLoadDeliveryFromOtherParticipant(t *testing.T) {
	author, _ := newSession(t, time.Second)
	require.NoError(t, author.SetBrush(domain.Brush{Color: "#00ff00", Size: 6}))
	require.NoError(t, author.PointerDown(domain.Point{X: 10, Y: 10}))
	require.NoError(t, author.PointerMove(domain.Point{X: 30, Y: 20}))
	encoded, err := snapshot.Encode(author.Image())
	require.NoError(t, err)

	s, ch := newSession(t, time.Second)
	var got []LoadResult
	s.OnLoad(func(r LoadResult) { got = append(got, r) })

	ch.deliver(protocol.LoadWhiteboardDelivery{RoomKey: "other", SnapshotID: "snap-1", EncodedImage: encoded})
	assert.Empty(t, got, "deliveries for another room are ignored")

	ch.deliver(protocol.LoadWhiteboardDelivery{RoomKey: "abc", SnapshotID: "snap-1", EncodedImage: encoded})
	require.Len(t, got, 1)
	assert.Equal(t, LoadResult{SnapshotID: "snap-1"}, got[0])
	assert.Equal(t, author.Image().Pix, s.Image().Pix)

	require.NoError(t, s.Load("snap-1"))
	assert.Equal(t, protocol.LoadWhiteboardRequest{SnapshotID: "snap-1", RoomKey: "abc"}, ch.sentEvents()[0])
	ch.deliver(protocol.LoadWhiteboardDelivery{RoomKey: "abc", SnapshotID: "snap-1", EncodedImage: encoded})
	require.Len(t, got, 2)
	assert.True(t, got[1].Requested)
}

func TestLoadFailureLeavesSurface(t *testing.T) {
	s, ch := newSession(t, time.Second)
	require.NoError(t, s.PointerDown(domain.Point{X: 5, Y: 5}))
	before := s.Image()

	var got LoadResult
	s.OnLoad(func(r LoadResult) { got = r })

	ch.deliver(protocol.LoadWhiteboardDelivery{RoomKey: "abc", SnapshotID: "bad", EncodedImage: "data:image/png;base64,AAAA"})
	assert.ErrorIs(t, got.Err, ErrLoadFailed)
	assert.ErrorIs(t, got.Err, snapshot.ErrDecode)
	assert.Equal(t, StatusLoadFailed, s.Status())
	assert.Equal(t, before.Pix, s.Image().Pix)

	require.NoError(t, s.Load("missing"))
	ch.deliver(protocol.LoadWhiteboardError{SnapshotID: "missing", Error: "not found"})
	assert.ErrorIs(t, got.Err, ErrLoadFailed)
	assert.True(t, got.Requested)
}

func TestCloseIsIdempotent(t *testing.T) {
	s, ch := newSession(t, time.Second)
	require.NoError(t, s.Save("demo"))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, ch.closes)

	ch.deliver(protocol.WhiteboardSaved{SnapshotID: "late"})
	assert.Equal(t, StatusSaving, s.Status(), "late responses are dropped")
	assert.ErrorIs(t, s.PointerDown(domain.Point{X: 1, Y: 1}), ErrClosed)
	assert.ErrorIs(t, s.Join(), ErrClosed)
}

func TestImportScalesWithoutSending(t *testing.T) {
	s, ch := newSession(t, time.Second)

	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+3] = 0xff, 0xff
	}
	require.NoError(t, s.Import(src))

	img := s.Image()
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
	px := img.NRGBAAt(20, 15)
	assert.GreaterOrEqual(t, px.R, uint8(0xfe))
	assert.GreaterOrEqual(t, px.A, uint8(0xfe))
	assert.LessOrEqual(t, px.G, uint8(1))
	assert.Empty(t, ch.sentEvents())

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Import(src), ErrClosed)
}

func TestPointerInputGoesThroughViewport(t *testing.T) {
	s, ch := newSession(t, time.Second)
	s.SetViewport(stroke.Viewport{OffsetX: 10, OffsetY: 10, PixelRatio: 2})

	require.NoError(t, s.PointerDown(domain.Point{X: 15, Y: 15}))
	require.NoError(t, s.PointerMove(domain.Point{X: 20, Y: 15}))

	sent := ch.sentEvents()
	require.Len(t, sent, 2)
	down, move := sent[0].(protocol.Draw), sent[1].(protocol.Draw)
	assert.Equal(t, domain.Point{X: 10, Y: 10}, domain.Point{X: down.X, Y: down.Y})
	assert.Equal(t, domain.Point{X: 20, Y: 10}, domain.Point{X: move.X, Y: move.Y})
	assert.NotZero(t, s.Image().NRGBAAt(15, 10).A)
}
