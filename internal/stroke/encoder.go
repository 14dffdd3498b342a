// Package stroke turns local pointer input into stroke events.
package stroke

import (
	"github.com/sharetube/whiteboard/internal/domain"
)

type State int

const (
	Idle State = iota
	Stroking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Stroking:
		return "STROKING"
	default:
		return "UNKNOWN"
	}
}

// Viewport maps client coordinates to surface-local pixels. OffsetX/OffsetY is
// the surface origin in client coordinates; PixelRatio is device pixels per
// client unit.
type Viewport struct {
	OffsetX    float64
	OffsetY    float64
	PixelRatio float64
}

func (v Viewport) ToSurface(clientX, clientY float64) domain.Point {
	ratio := v.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}

	return domain.Point{
		X: (clientX - v.OffsetX) * ratio,
		Y: (clientY - v.OffsetY) * ratio,
	}
}

// Encoder is the local pen state machine. It is not safe for concurrent use.
type Encoder struct {
	roomKey string
	brush   domain.Brush
	state   State
	anchor  domain.Point
}

func NewEncoder(roomKey string, brush domain.Brush) *Encoder {
	return &Encoder{
		roomKey: roomKey,
		brush:   brush,
	}
}

func (e *Encoder) State() State {
	return e.state
}

func (e *Encoder) Brush() domain.Brush {
	return e.brush
}

// SetBrush changes the brush for the following samples.
func (e *Encoder) SetBrush(b domain.Brush) error {
	if err := b.Validate(); err != nil {
		return err
	}
	e.brush = b

	return nil
}

// Anchor returns the point where the current stroke started.
func (e *Encoder) Anchor() (domain.Point, bool) {
	return e.anchor, e.state == Stroking
}

// Down starts a stroke. The returned event is a visible single point.
func (e *Encoder) Down(p domain.Point) domain.StrokeEvent {
	e.state = Stroking
	e.anchor = p

	return domain.NewStrokeEvent(p, e.brush, e.roomKey)
}

// Move emits a sample for p while stroking.
func (e *Encoder) Move(p domain.Point) (domain.StrokeEvent, bool) {
	if e.state != Stroking {
		return domain.StrokeEvent{}, false
	}

	return domain.NewStrokeEvent(p, e.brush, e.roomKey), true
}

// Up ends the stroke and reports whether one was in progress. Pointer-leave is
// handled the same way.
func (e *Encoder) Up() bool {
	if e.state != Stroking {
		return false
	}
	e.state = Idle

	return true
}
