package session

import (
	"fmt"
	"slices"
	"time"

	"github.com/sharetube/whiteboard/internal/canvas"
	"github.com/sharetube/whiteboard/internal/protocol"
	"github.com/sharetube/whiteboard/internal/snapshot"
)

// handle runs on the channel's read goroutine. Callbacks are invoked after
// the session lock is released.
func (s *Session) handle(ev protocol.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("dropping event after close", "kind", ev.Kind())
		return
	}

	var after func()
	switch ev := ev.(type) {
	case protocol.UserCreated:
		s.onUserCreated(ev)
	case protocol.Draw:
		s.onDraw(ev)
	case protocol.EndStroke:
		s.onEndStroke(ev)
	case protocol.ClearWhiteboard:
		s.onClear(ev)
	case protocol.WhiteboardSaved:
		after = s.onSaved(ev)
	case protocol.WhiteboardSaveError:
		after = s.onSaveError(ev)
	case protocol.LoadWhiteboardDelivery:
		after = s.onLoadDelivery(ev)
	case protocol.LoadWhiteboardError:
		after = s.onLoadError(ev)
	case protocol.Error:
		s.logger.Warn("server reported an error", "message", ev.Message)
	default:
		s.logger.Debug("ignoring event", "kind", ev.Kind())
	}
	s.mu.Unlock()

	if after != nil {
		after()
	}
}

func (s *Session) sameRoom(kind protocol.Kind, roomKey string) bool {
	if roomKey == s.roomKey {
		return true
	}
	s.logger.Debug("ignoring event for another room", "kind", kind, "event_room_key", roomKey)

	return false
}

func (s *Session) onUserCreated(ev protocol.UserCreated) {
	select {
	case <-s.joined:
		s.logger.Warn("participant id reassigned", "old", s.participantID, "new", ev.ParticipantID)
	default:
		close(s.joined)
	}
	s.participantID = ev.ParticipantID
	s.logger.Info("joined room", "participant_id", ev.ParticipantID)
}

func (s *Session) onDraw(ev protocol.Draw) {
	if !s.sameRoom(ev.Kind(), ev.RoomKey) {
		return
	}

	if !s.surface.Apply(canvas.PeerOrigin(ev.ParticipantID), ev.StrokeEvent()) {
		s.logger.Debug("dropped invalid draw", "participant_id", ev.ParticipantID)
	}
}

func (s *Session) onEndStroke(ev protocol.EndStroke) {
	if !s.sameRoom(ev.Kind(), ev.RoomKey) {
		return
	}
	s.surface.EndStroke(canvas.PeerOrigin(ev.ParticipantID))
}

func (s *Session) onClear(ev protocol.ClearWhiteboard) {
	if !s.sameRoom(ev.Kind(), ev.RoomKey) {
		return
	}
	s.surface.Clear()
}

func (s *Session) popSave() string {
	if len(s.pendingSaves) == 0 {
		return ""
	}
	name := s.pendingSaves[0]
	s.pendingSaves = s.pendingSaves[1:]

	return name
}

func (s *Session) onSaved(ev protocol.WhiteboardSaved) func() {
	res := SaveResult{Name: s.popSave(), SnapshotID: ev.SnapshotID}
	notify := s.setStatusLocked(StatusSaved)
	fns := slices.Clone(s.onSave)

	return func() {
		notify()
		for _, fn := range fns {
			fn(res)
		}
	}
}

func (s *Session) onSaveError(ev protocol.WhiteboardSaveError) func() {
	res := SaveResult{Name: s.popSave(), Err: &SaveError{Description: ev.Error}}
	s.logger.Warn("save failed", "name", res.Name, "error", ev.Error)
	notify := s.setStatusLocked(StatusSaveFailed)
	fns := slices.Clone(s.onSave)

	return func() {
		notify()
		for _, fn := range fns {
			fn(res)
		}
	}
}

func (s *Session) takeLoad(id string) bool {
	n, ok := s.pendingLoads[id]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(s.pendingLoads, id)
	} else {
		s.pendingLoads[id] = n - 1
	}

	return true
}

func (s *Session) onLoadDelivery(ev protocol.LoadWhiteboardDelivery) func() {
	if !s.sameRoom(ev.Kind(), ev.RoomKey) {
		return nil
	}

	res := LoadResult{SnapshotID: ev.SnapshotID, Requested: s.takeLoad(ev.SnapshotID)}
	notify := func() {}

	bounds := s.surface.Bounds()
	img, err := snapshot.Decode(ev.EncodedImage, bounds.Dx(), bounds.Dy())
	if err == nil {
		err = s.surface.Replace(img)
	}
	if err != nil {
		s.logger.Warn("failed to apply snapshot", "snapshot_id", ev.SnapshotID, "error", err)
		res.Err = fmt.Errorf("%w: %w", ErrLoadFailed, err)
		notify = s.setStatusLocked(StatusLoadFailed)
	}
	fns := slices.Clone(s.onLoad)

	return func() {
		notify()
		for _, fn := range fns {
			fn(res)
		}
	}
}

func (s *Session) onLoadError(ev protocol.LoadWhiteboardError) func() {
	res := LoadResult{
		SnapshotID: ev.SnapshotID,
		Requested:  s.takeLoad(ev.SnapshotID),
		Err:        fmt.Errorf("%w: %s", ErrLoadFailed, ev.Error),
	}
	notify := s.setStatusLocked(StatusLoadFailed)
	fns := slices.Clone(s.onLoad)

	return func() {
		notify()
		for _, fn := range fns {
			fn(res)
		}
	}
}

// setStatusLocked replaces the status and schedules its dismissal. The
// returned func notifies listeners and must be called without the lock.
func (s *Session) setStatusLocked(msg string) func() {
	s.statusGen++
	gen := s.statusGen
	s.status = msg

	if s.statusTimer != nil {
		s.statusTimer.Stop()
	}
	s.statusTimer = time.AfterFunc(s.statusTTL, func() { s.dismissStatus(gen) })

	fns := slices.Clone(s.onStatus)

	return func() {
		for _, fn := range fns {
			fn(msg)
		}
	}
}

func (s *Session) dismissStatus(gen uint64) {
	s.mu.Lock()
	if s.closed || s.statusGen != gen {
		s.mu.Unlock()
		return
	}
	s.status = ""
	fns := slices.Clone(s.onStatus)
	s.mu.Unlock()

	for _, fn := range fns {
		fn("")
	}
}
