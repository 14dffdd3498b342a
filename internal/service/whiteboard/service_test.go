package whiteboard

import (
	"context"
	"image"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/whiteboard/internal/domain"
	"github.com/sharetube/whiteboard/internal/repository/connection/inmemory"
	imageRedis "github.com/sharetube/whiteboard/internal/repository/image/redis"
	whiteboardRedis "github.com/sharetube/whiteboard/internal/repository/whiteboard/redis"
	"github.com/sharetube/whiteboard/internal/snapshot"
	"github.com/sharetube/whiteboard/pkg/wsutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *service {
	t.Helper()

	s, _ := newTestServiceWithRedis(t)
	return s
}

func newTestServiceWithRedis(t *testing.T) (*service, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.Default()
	return NewService(
		whiteboardRedis.NewRepo(rc, time.Minute, logger),
		imageRedis.NewRepo(rc, logger),
		inmemory.NewRepo(logger),
		Config{MaxSnapshotBytes: 1 << 20, MaxSnapshotSide: 64, ListLimit: 10},
		logger,
	), mr
}

func join(t *testing.T, s *service, conn *wsutils.ThreadSafeWriter, roomKey, resumeID string) JoinRoomResponse {
	t.Helper()

	resp, err := s.JoinRoom(context.Background(), &JoinRoomParams{
		Conn:                conn,
		RoomKey:             roomKey,
		Name:                "Ann",
		Contact:             "ann@example.com",
		ResumeParticipantID: resumeID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ParticipantID)

	return resp
}

func encodedImage(t *testing.T, w, h int) string {
	t.Helper()

	encoded, err := snapshot.Encode(image.NewNRGBA(image.Rect(0, 0, w, h)))
	require.NoError(t, err)

	return encoded
}

func TestJoinAndRelay(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	c1, c2, c3 := &wsutils.ThreadSafeWriter{}, &wsutils.ThreadSafeWriter{}, &wsutils.ThreadSafeWriter{}
	p1 := join(t, s, c1, "abc", "")
	join(t, s, c2, "abc", "")
	join(t, s, c3, "xyz", "")

	stroke := domain.NewStrokeEvent(domain.Point{X: 1, Y: 2}, domain.DefaultBrush(), "abc")
	resp, err := s.Draw(ctx, &DrawParams{SenderID: p1.ParticipantID, JoinedRoomKey: "abc", Stroke: stroke})
	require.NoError(t, err)
	assert.Equal(t, []*wsutils.ThreadSafeWriter{c2}, resp.Conns, "relayed to the other members only")

	stroke.RoomKey = "xyz"
	_, err = s.Draw(ctx, &DrawParams{SenderID: p1.ParticipantID, JoinedRoomKey: "abc", Stroke: stroke})
	assert.ErrorIs(t, err, ErrRoomMismatch)

	_, err = s.Draw(ctx, &DrawParams{SenderID: p1.ParticipantID, JoinedRoomKey: "abc", Stroke: domain.StrokeEvent{RoomKey: "abc"}})
	assert.ErrorIs(t, err, ErrInvalidStroke)

	resp, err = s.ClearWhiteboard(ctx, &ClearWhiteboardParams{SenderID: p1.ParticipantID, JoinedRoomKey: "abc", RoomKey: "abc"})
	require.NoError(t, err)
	assert.Equal(t, []*wsutils.ThreadSafeWriter{c2}, resp.Conns)

	resp, err = s.EndStroke(ctx, &EndStrokeParams{SenderID: p1.ParticipantID, JoinedRoomKey: "abc", RoomKey: "abc"})
	require.NoError(t, err)
	assert.Len(t, resp.Conns, 1)

	assert.ElementsMatch(t, []*wsutils.ThreadSafeWriter{c1, c2, c3}, s.Conns())
	assert.Equal(t, 3, s.ParticipantCount())
	require.NoError(t, s.Disconnect(ctx, &DisconnectParams{Conn: c3, RoomKey: "xyz"}))
	assert.Equal(t, 2, s.ParticipantCount())
}

func TestMembershipOutlivesParticipantExpiry(t *testing.T) {
	s, mr := newTestServiceWithRedis(t)
	ctx := context.Background()

	c1, c2 := &wsutils.ThreadSafeWriter{}, &wsutils.ThreadSafeWriter{}
	p1 := join(t, s, c1, "abc", "")
	p2 := join(t, s, c2, "abc", "")

	mr.FastForward(2 * time.Minute)

	stroke := domain.NewStrokeEvent(domain.Point{X: 1, Y: 2}, domain.DefaultBrush(), "abc")
	resp, err := s.Draw(ctx, &DrawParams{SenderID: p1.ParticipantID, JoinedRoomKey: "abc", Stroke: stroke})
	require.NoError(t, err)
	assert.Equal(t, []*wsutils.ThreadSafeWriter{c2}, resp.Conns, "connected members keep receiving relays")

	require.NoError(t, s.Disconnect(ctx, &DisconnectParams{Conn: c2, RoomKey: "abc"}))
	mr.FastForward(2 * time.Minute)

	again := join(t, s, &wsutils.ThreadSafeWriter{}, "abc", p2.ParticipantID)
	assert.False(t, again.Resumed, "a disconnected participant expires")
}

func TestResume(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	c1 := &wsutils.ThreadSafeWriter{}
	first := join(t, s, c1, "abc", "")

	again := join(t, s, &wsutils.ThreadSafeWriter{}, "abc", first.ParticipantID)
	assert.False(t, again.Resumed, "a connected id is never handed out twice")
	assert.NotEqual(t, first.ParticipantID, again.ParticipantID)

	require.NoError(t, s.Disconnect(ctx, &DisconnectParams{Conn: c1, RoomKey: "abc"}))
	require.NoError(t, s.Disconnect(ctx, &DisconnectParams{Conn: c1, RoomKey: "abc"}), "second disconnect is a no-op")

	other := join(t, s, &wsutils.ThreadSafeWriter{}, "xyz", first.ParticipantID)
	assert.False(t, other.Resumed, "ids do not move between rooms")

	resumed := join(t, s, &wsutils.ThreadSafeWriter{}, "abc", first.ParticipantID)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, first.ParticipantID, resumed.ParticipantID)
}

func TestSaveLoadAndList(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	c1, c2 := &wsutils.ThreadSafeWriter{}, &wsutils.ThreadSafeWriter{}
	p1 := join(t, s, c1, "abc", "")
	join(t, s, c2, "abc", "")

	encoded := encodedImage(t, 8, 8)
	saved, err := s.SaveWhiteboard(ctx, &SaveWhiteboardParams{
		SenderID:      p1.ParticipantID,
		JoinedRoomKey: "abc",
		RoomKey:       "abc",
		Name:          " demo ",
		EncodedImage:  encoded,
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.SnapshotID)

	infos, err := s.ListSnapshots(ctx, &ListSnapshotsParams{RoomKey: "abc"})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, saved.SnapshotID, infos[0].ID)
	assert.Equal(t, "demo", infos[0].Name)
	assert.WithinDuration(t, time.Now(), infos[0].CreatedAt, time.Minute)

	loaded, err := s.LoadWhiteboard(ctx, &LoadWhiteboardParams{
		SenderID:      p1.ParticipantID,
		JoinedRoomKey: "abc",
		RoomKey:       "abc",
		SnapshotID:    saved.SnapshotID,
	})
	require.NoError(t, err)
	assert.Equal(t, encoded, loaded.EncodedImage)
	assert.ElementsMatch(t, []*wsutils.ThreadSafeWriter{c1, c2}, loaded.Conns, "delivered to the requester too")

	_, err = s.LoadWhiteboard(ctx, &LoadWhiteboardParams{JoinedRoomKey: "abc", RoomKey: "abc", SnapshotID: "missing"})
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	infos, err = s.ListSnapshots(ctx, &ListSnapshotsParams{RoomKey: "empty"})
	require.NoError(t, err)
	assert.NotNil(t, infos)
	assert.Empty(t, infos)
}

func TestSaveRejectsBadInput(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	params := func(name, encoded string) *SaveWhiteboardParams {
		return &SaveWhiteboardParams{JoinedRoomKey: "abc", RoomKey: "abc", Name: name, EncodedImage: encoded}
	}

	_, err := s.SaveWhiteboard(ctx, params("  ", encodedImage(t, 4, 4)))
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = s.SaveWhiteboard(ctx, params("demo", "data:image/png;base64,AAAA"))
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	_, err = s.SaveWhiteboard(ctx, params("demo", encodedImage(t, 65, 4)))
	assert.ErrorIs(t, err, ErrSnapshotTooLarge)

	big := params("demo", encodedImage(t, 4, 4))
	big.EncodedImage += string(make([]byte, 1<<20))
	_, err = s.SaveWhiteboard(ctx, big)
	assert.ErrorIs(t, err, ErrSnapshotTooLarge)

	mismatch := params("demo", encodedImage(t, 4, 4))
	mismatch.RoomKey = "xyz"
	_, err = s.SaveWhiteboard(ctx, mismatch)
	assert.ErrorIs(t, err, ErrRoomMismatch)

	infos, err := s.ListSnapshots(ctx, &ListSnapshotsParams{})
	require.NoError(t, err)
	assert.Empty(t, infos, "nothing stored on failure")
}
