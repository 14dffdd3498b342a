package domain

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0x80, A: 0xff}, c)

	c, err = ParseColor("#fff")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, c)

	for _, s := range []string{"", "red", "#12345", "ff0000"} {
		_, err := ParseColor(s)
		assert.ErrorIs(t, err, ErrInvalidColor, s)
	}
}

func TestBrushValidate(t *testing.T) {
	assert.NoError(t, DefaultBrush().Validate())
	assert.ErrorIs(t, Brush{Color: "#000000"}.Validate(), ErrInvalidBrushSize)
	assert.ErrorIs(t, Brush{Color: "nope", Size: 2}.Validate(), ErrInvalidColor)
	assert.NoError(t, Brush{Size: 10, IsEraser: true}.Validate(), "erasers need no color")
}

func TestStrokeEventValidate(t *testing.T) {
	ev := NewStrokeEvent(Point{X: 1, Y: 2}, DefaultBrush(), "abc")
	assert.Equal(t, StrokeEvent{Point: Point{X: 1, Y: 2}, Color: DefaultColor, BrushSize: DefaultBrushSize, RoomKey: "abc"}, ev)
	assert.NoError(t, ev.Validate())

	ev.RoomKey = ""
	assert.ErrorIs(t, ev.Validate(), ErrEmptyRoomKey)
}
