// Package canvas is the per-client raster surface that stroke events are
// composited onto.
//
// Pen continuity is tracked per origin: each origin (the local pointer or a
// remote participant) has its own last applied point, so two peers drawing at
// the same time never connect their strokes to each other.
package canvas

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/sharetube/whiteboard/internal/domain"
)

var ErrSizeMismatch = errors.New("image size does not match surface")

// Origin identifies an independent pen.
type Origin string

const LocalOrigin Origin = "local"

func PeerOrigin(participantID string) Origin {
	return Origin("peer:" + participantID)
}

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

type Surface struct {
	roomKey string
	img     *image.NRGBA
	mask    *image.Alpha
	r       *vector.Rasterizer
	origin  image.Point
	pens    map[Origin]domain.Point
}

func New(roomKey string, width, height int) *Surface {
	s := &Surface{
		roomKey: roomKey,
		pens:    make(map[Origin]domain.Point),
	}
	s.alloc(width, height)

	return s
}

func (s *Surface) alloc(width, height int) {
	width, height = max(width, 1), max(height, 1)
	rect := image.Rect(0, 0, width, height)
	s.img = image.NewNRGBA(rect)
	s.mask = image.NewAlpha(rect)
	s.r = vector.NewRasterizer(0, 0)
}

func (s *Surface) RoomKey() string {
	return s.roomKey
}

func (s *Surface) Bounds() image.Rectangle {
	return s.img.Bounds()
}

// Apply composites ev onto the surface. Events for another room are ignored
// and reported as not applied.
func (s *Surface) Apply(origin Origin, ev domain.StrokeEvent) bool {
	if ev.RoomKey != s.roomKey || ev.BrushSize <= 0 || !finite(ev.X, ev.Y, ev.BrushSize) {
		return false
	}

	var src color.NRGBA
	if !ev.IsEraser {
		c, err := domain.ParseColor(ev.Color)
		if err != nil {
			return false
		}
		src = c
	}

	radius := ev.BrushSize / 2
	last, ok := s.pens[origin]
	if !ok {
		last = ev.Point
	}

	area := image.Rect(
		int(math.Floor(math.Min(last.X, ev.X)-radius))-1,
		int(math.Floor(math.Min(last.Y, ev.Y)-radius))-1,
		int(math.Ceil(math.Max(last.X, ev.X)+radius))+1,
		int(math.Ceil(math.Max(last.Y, ev.Y)+radius))+1,
	).Intersect(s.Bounds())

	if !area.Empty() {
		// the rasterizer covers only area; its origin is area.Min
		s.origin = area.Min
		s.r.Reset(area.Dx(), area.Dy())
		s.r.DrawOp = draw.Src
		if last == ev.Point {
			s.addDot(ev.Point, radius)
		} else {
			s.addSegment(last, ev.Point, radius)
		}
		s.r.Draw(s.mask, area, image.Opaque, image.Point{})

		if ev.IsEraser {
			s.erase(area)
		} else {
			s.paint(area, src)
		}
	}

	s.pens[origin] = ev.Point
	return true
}

// EndStroke forgets the last point of origin so its next event starts a dot.
func (s *Surface) EndStroke(origin Origin) {
	delete(s.pens, origin)
}

// Clear wipes every pixel back to transparent and drops all pen positions.
func (s *Surface) Clear() {
	clear(s.img.Pix)
	clear(s.pens)
}

// Resize reallocates the pixel buffer. Content is discarded when the size
// changes.
func (s *Surface) Resize(width, height int) {
	width, height = max(width, 1), max(height, 1)
	if b := s.Bounds(); b.Dx() == width && b.Dy() == height {
		return
	}

	s.alloc(width, height)
	clear(s.pens)
}

// Replace swaps in fully decoded pixels. The surface is untouched on error.
func (s *Surface) Replace(img *image.NRGBA) error {
	if img == nil || img.Bounds().Size() != s.Bounds().Size() {
		return ErrSizeMismatch
	}

	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		si := img.PixOffset(b.Min.X, b.Min.Y+y)
		di := s.img.PixOffset(0, y)
		copy(s.img.Pix[di:di+4*b.Dx()], img.Pix[si:si+4*b.Dx()])
	}
	clear(s.pens)

	return nil
}

func (s *Surface) Image() *image.NRGBA {
	out := image.NewNRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)

	return out
}

func (s *Surface) paint(area image.Rectangle, src color.NRGBA) {
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			a := uint32(s.mask.Pix[s.mask.PixOffset(x, y)])
			if a == 0 {
				continue
			}

			i := s.img.PixOffset(x, y)
			px := s.img.Pix[i : i+4 : i+4]
			if a == 0xff {
				px[0], px[1], px[2], px[3] = src.R, src.G, src.B, 0xff
				continue
			}

			da := uint32(px[3])
			outA := a + da*(0xff-a)/0xff
			if outA == 0 {
				continue
			}

			blend := func(sc, dc uint8) uint8 {
				return uint8((uint32(sc)*a*0xff + uint32(dc)*da*(0xff-a)) / (outA * 0xff))
			}
			px[0] = blend(src.R, px[0])
			px[1] = blend(src.G, px[1])
			px[2] = blend(src.B, px[2])
			px[3] = uint8(outA)
		}
	}
}

// erase removes coverage only; color channels are left as they are.
func (s *Surface) erase(area image.Rectangle) {
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			a := uint32(s.mask.Pix[s.mask.PixOffset(x, y)])
			if a == 0 {
				continue
			}

			i := s.img.PixOffset(x, y) + 3
			s.img.Pix[i] = uint8(uint32(s.img.Pix[i]) * (0xff - a) / 0xff)
		}
	}
}

func (s *Surface) addDot(c domain.Point, radius float64) {
	right := vec{radius, 0}
	down := vec{0, radius}

	s.moveTo(c, right)
	s.arc(c, right, down)
	s.arc(c, down, right.neg())
	s.arc(c, right.neg(), down.neg())
	s.arc(c, down.neg(), right)
	s.r.ClosePath()
}

// addSegment adds a round-capped line of width 2*radius from a to b.
func (s *Surface) addSegment(a, b domain.Point, radius float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	d := vec{dx / l * radius, dy / l * radius}
	n := vec{-d.y, d.x}

	s.moveTo(a, n)
	s.lineTo(b, n)
	s.arc(b, n, d)
	s.arc(b, d, n.neg())
	s.lineTo(a, n.neg())
	s.arc(a, n.neg(), d.neg())
	s.arc(a, d.neg(), n)
	s.r.ClosePath()
}

type vec struct{ x, y float64 }

func (v vec) neg() vec { return vec{-v.x, -v.y} }

func (s *Surface) moveTo(c domain.Point, v vec) {
	s.r.MoveTo(s.local(c.X+v.x, c.Y+v.y))
}

func (s *Surface) lineTo(c domain.Point, v vec) {
	s.r.LineTo(s.local(c.X+v.x, c.Y+v.y))
}

// local converts surface coordinates to rasterizer coordinates.
func (s *Surface) local(x, y float64) (float32, float32) {
	return float32(x - float64(s.origin.X)), float32(y - float64(s.origin.Y))
}

// arc adds the quarter circle around c from c+u to c+v; u and v are
// perpendicular and of equal length.
func (s *Surface) arc(c domain.Point, u, v vec) {
	bx, by := s.local(c.X+u.x+kappa*v.x, c.Y+u.y+kappa*v.y)
	cx, cy := s.local(c.X+v.x+kappa*u.x, c.Y+v.y+kappa*u.y)
	dx, dy := s.local(c.X+v.x, c.Y+v.y)
	s.r.CubeTo(bx, by, cx, cy, dx, dy)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}
