// Package session ties a participant's surface and pen to an event channel:
// it joins a room, echoes local strokes, applies remote ones and runs the
// save and load round trips.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/sharetube/whiteboard/internal/canvas"
	"github.com/sharetube/whiteboard/internal/client"
	"github.com/sharetube/whiteboard/internal/domain"
	"github.com/sharetube/whiteboard/internal/protocol"
	"github.com/sharetube/whiteboard/internal/snapshot"
	"github.com/sharetube/whiteboard/internal/stroke"
)

const (
	StatusSaving     = "Saving whiteboard..."
	StatusSaved      = "Whiteboard saved successfully!"
	StatusSaveFailed = "Failed to save whiteboard. Please try again."
	StatusLoadFailed = "Failed to load whiteboard."

	DefaultStatusTTL = 3 * time.Second
	DefaultWidth     = 800
	DefaultHeight    = 600
)

var (
	ErrJoinTimeout   = errors.New("no participant id assigned before deadline")
	ErrAlreadyJoined = errors.New("join already sent")
	ErrClosed        = errors.New("session closed")
	ErrEmptyName     = errors.New("snapshot name is empty")
	ErrEmptyID       = errors.New("snapshot id is empty")
	ErrLoadFailed    = errors.New("failed to load whiteboard")
)

// SaveError is a save failure reported by the server. The save may be retried.
type SaveError struct {
	Description string
}

func (e *SaveError) Error() string {
	return "failed to save whiteboard: " + e.Description
}

// Channel is the part of client.Channel a session needs.
type Channel interface {
	Send(ev protocol.Event) error
	On(kind protocol.Kind, h client.Handler)
	Close() error
}

type Config struct {
	RoomKey             string
	Name                string
	Contact             string
	ResumeParticipantID string
	Width               int
	Height              int
	// maps pointer coordinates to surface pixels; the zero value is identity
	Viewport            stroke.Viewport
	Brush               domain.Brush
	StatusTTL           time.Duration
	Logger              *slog.Logger
}

type SaveResult struct {
	Name       string
	SnapshotID string
	Err        error
}

type LoadResult struct {
	SnapshotID string
	// Requested is false when another participant triggered the load.
	Requested bool
	Err       error
}

type Session struct {
	ch        Channel
	roomKey   string
	name      string
	contact   string
	resumeID  string
	statusTTL time.Duration
	logger    *slog.Logger

	mu            sync.Mutex
	surface       *canvas.Surface
	encoder       *stroke.Encoder
	viewport      stroke.Viewport
	participantID string
	joinSent      bool
	joined        chan struct{}
	closed        bool
	pendingSaves  []string
	pendingLoads  map[string]int
	status        string
	statusGen     uint64
	statusTimer   *time.Timer
	onSave        []func(SaveResult)
	onLoad        []func(LoadResult)
	onStatus      []func(string)

	closeOnce sync.Once
}

// New binds a session to ch and registers its handlers. It does not send
// anything; call Join.
func New(ch Channel, cfg Config) (*Session, error) {
	if cfg.RoomKey == "" {
		return nil, domain.ErrEmptyRoomKey
	}

	brush := cfg.Brush
	if brush == (domain.Brush{}) {
		brush = domain.DefaultBrush()
	}
	if err := brush.Validate(); err != nil {
		return nil, err
	}

	width, height := cfg.Width, cfg.Height
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}

	ttl := cfg.StatusTTL
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		ch:           ch,
		roomKey:      cfg.RoomKey,
		name:         cfg.Name,
		contact:      cfg.Contact,
		resumeID:     cfg.ResumeParticipantID,
		statusTTL:    ttl,
		logger:       logger.With("room_key", cfg.RoomKey),
		surface:      canvas.New(cfg.RoomKey, width, height),
		encoder:      stroke.NewEncoder(cfg.RoomKey, brush),
		viewport:     cfg.Viewport,
		joined:       make(chan struct{}),
		pendingLoads: make(map[string]int),
	}

	ch.On(protocol.KindUserCreated, s.handle)
	ch.On(protocol.KindDraw, s.handle)
	ch.On(protocol.KindEndStroke, s.handle)
	ch.On(protocol.KindClearWhiteboard, s.handle)
	ch.On(protocol.KindWhiteboardSaved, s.handle)
	ch.On(protocol.KindWhiteboardSaveError, s.handle)
	ch.On(protocol.KindLoadWhiteboardDelivery, s.handle)
	ch.On(protocol.KindLoadWhiteboardError, s.handle)
	ch.On(protocol.KindError, s.handle)

	return s, nil
}

func (s *Session) RoomKey() string {
	return s.roomKey
}

// ParticipantID is empty until the server has assigned one.
func (s *Session) ParticipantID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.participantID
}

func (s *Session) Bounds() image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.surface.Bounds()
}

// Image returns a copy of the surface.
func (s *Session) Image() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.surface.Image()
}

func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

func (s *Session) Brush() domain.Brush {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.encoder.Brush()
}

func (s *Session) SetBrush(b domain.Brush) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.encoder.SetBrush(b)
}

// OnSaveResult registers fn for save outcomes, in the order saves were sent.
func (s *Session) OnSaveResult(fn func(SaveResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onSave = append(s.onSave, fn)
}

func (s *Session) OnLoad(fn func(LoadResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onLoad = append(s.onLoad, fn)
}

// OnStatus registers fn for status changes. An empty string means the status
// was dismissed.
func (s *Session) OnStatus(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onStatus = append(s.onStatus, fn)
}

// Join sends the join handshake once.
func (s *Session) Join() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.joinSent {
		return ErrAlreadyJoined
	}

	if err := s.ch.Send(protocol.JoinRoom{
		RoomKey:             s.roomKey,
		ParticipantName:     s.name,
		ParticipantContact:  s.contact,
		ResumeParticipantID: s.resumeID,
	}); err != nil {
		return fmt.Errorf("failed to send join: %w", err)
	}
	s.joinSent = true

	return nil
}

// WaitJoined blocks until the server assigns a participant id or ctx ends.
func (s *Session) WaitJoined(ctx context.Context) (string, error) {
	select {
	case <-s.joined:
		return s.ParticipantID(), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrJoinTimeout, ctx.Err())
	}
}

// SetViewport changes the pointer mapping, for example after the surface moved
// on screen or the pixel ratio changed.
func (s *Session) SetViewport(v stroke.Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewport = v
}

// PointerDown starts a stroke at p, in pointer coordinates.
func (s *Session) PointerDown(p domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	return s.drawLocked(s.encoder.Down(s.viewport.ToSurface(p.X, p.Y)))
}

// PointerMove extends the current stroke. Moves while idle are ignored.
func (s *Session) PointerMove(p domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	ev, ok := s.encoder.Move(s.viewport.ToSurface(p.X, p.Y))
	if !ok {
		return nil
	}

	return s.drawLocked(ev)
}

func (s *Session) PointerUp() error {
	return s.endStroke()
}

// PointerLeave ends the stroke like PointerUp.
func (s *Session) PointerLeave() error {
	return s.endStroke()
}

func (s *Session) endStroke() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.encoder.Up() {
		return nil
	}
	s.surface.EndStroke(canvas.LocalOrigin)

	return s.ch.Send(protocol.EndStroke{
		RoomKey:       s.roomKey,
		ParticipantID: s.participantID,
	})
}

func (s *Session) drawLocked(ev domain.StrokeEvent) error {
	s.surface.Apply(canvas.LocalOrigin, ev)

	d := protocol.NewDraw(ev)
	d.ParticipantID = s.participantID

	return s.ch.Send(d)
}

// Clear wipes the local surface and tells the room to do the same.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.surface.Clear()

	return s.ch.Send(protocol.ClearWhiteboard{RoomKey: s.roomKey})
}

// Resize reallocates the surface. Content is cleared.
func (s *Session) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.surface.Resize(width, height)
}

// Import replaces the local surface with img, scaled to fit. Nothing is sent;
// peers see it only once it is saved and loaded.
func (s *Session) Import(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	b := s.surface.Bounds()

	return s.surface.Replace(snapshot.Fit(img, b.Dx(), b.Dy()))
}

// Save encodes the surface and sends it under name. The outcome arrives via
// OnSaveResult and the status line.
func (s *Session) Save(name string) error {
	if name == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	encoded, err := snapshot.Encode(s.surface.Image())
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if err := s.ch.Send(protocol.SaveWhiteboard{
		RoomKey:       s.roomKey,
		EncodedImage:  encoded,
		Name:          name,
		ParticipantID: s.participantID,
	}); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to send save: %w", err)
	}
	s.pendingSaves = append(s.pendingSaves, name)
	notify := s.setStatusLocked(StatusSaving)
	s.mu.Unlock()

	notify()

	return nil
}

// Load asks the server to deliver snapshot id to everyone in the room.
func (s *Session) Load(id string) error {
	if id == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.ch.Send(protocol.LoadWhiteboardRequest{
		SnapshotID: id,
		RoomKey:    s.roomKey,
	}); err != nil {
		return fmt.Errorf("failed to send load request: %w", err)
	}
	s.pendingLoads[id]++

	return nil
}

// Close closes the channel once. Later calls return nil.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		if s.statusTimer != nil {
			s.statusTimer.Stop()
		}
		s.mu.Unlock()

		err = s.ch.Close()
	})

	return err
}
