package domain

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	ErrInvalidColor     = errors.New("invalid color")
	ErrInvalidBrushSize = errors.New("brush size must be greater than 0")
	ErrEmptyRoomKey     = errors.New("room key is empty")
)

const (
	DefaultColor     = "#000000"
	DefaultBrushSize = 2
)

// Point is a position in surface-local pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Brush struct {
	Color    string
	Size     float64
	IsEraser bool
}

func DefaultBrush() Brush {
	return Brush{
		Color: DefaultColor,
		Size:  DefaultBrushSize,
	}
}

func (b Brush) Validate() error {
	if b.Size <= 0 {
		return ErrInvalidBrushSize
	}

	if b.IsEraser {
		return nil
	}

	if _, err := ParseColor(b.Color); err != nil {
		return err
	}

	return nil
}

// StrokeEvent is one point sample of a stroke. It carries no previous point;
// continuity is rebuilt by the receiver.
type StrokeEvent struct {
	Point
	Color     string
	BrushSize float64
	IsEraser  bool
	RoomKey   string
}

func NewStrokeEvent(p Point, b Brush, roomKey string) StrokeEvent {
	return StrokeEvent{
		Point:     p,
		Color:     b.Color,
		BrushSize: b.Size,
		IsEraser:  b.IsEraser,
		RoomKey:   roomKey,
	}
}

func (e StrokeEvent) Validate() error {
	if e.RoomKey == "" {
		return ErrEmptyRoomKey
	}

	return Brush{Color: e.Color, Size: e.BrushSize, IsEraser: e.IsEraser}.Validate()
}

// ParseColor parses "#RRGGBB" (or "#RGB") into an opaque color.
func ParseColor(s string) (color.NRGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w %q: %w", ErrInvalidColor, s, err)
	}

	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}
