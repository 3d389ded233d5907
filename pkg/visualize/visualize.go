// Package visualize renders an animated GIF of the bridge deck bending
// under the measured stress.
package visualize

import (
	"errors"
	"image/gif"
	"io"
	"math"
	"slices"
	"time"

	"github.com/hed1ad/bridgeguard/pkg/sensor"
)

// gridPoints is the number of interpolated deck points per line.
const gridPoints = 100

type renderer struct {
	frames      int
	width       int
	height      int
	delay       time.Duration
	zLimit      float64
	stressScale float64
	depthLines  int
}

// Option configures the animation.
type Option func(*renderer)

// WithFrames sets the number of animation frames; one frame per degree of
// the bending cycle by default.
func WithFrames(n int) Option {
	return func(r *renderer) {
		r.frames = n
	}
}

// WithSize sets the image size in pixels.
func WithSize(width, height int) Option {
	return func(r *renderer) {
		r.width = width
		r.height = height
	}
}

// WithDelay sets the time each frame is shown. GIF stores it in 10ms units.
func WithDelay(d time.Duration) Option {
	return func(r *renderer) {
		r.delay = d
	}
}

// WithZLimit sets the bending value drawn at the top and bottom edge.
func WithZLimit(z float64) Option {
	return func(r *renderer) {
		r.zLimit = z
	}
}

// WithStressScale sets the stress to bending factor.
func WithStressScale(s float64) Option {
	return func(r *renderer) {
		r.stressScale = s
	}
}

// RenderGIF writes an animation built from position_x, position_y and stress.
// The deck is drawn in an oblique projection: x runs right, y recedes up
// and to the right, bending is vertical.
func RenderGIF(w io.Writer, readings []sensor.Reading, opts ...Option) error {
	r := &renderer{
		frames:      360,
		width:       480,
		height:      240,
		delay:       20 * time.Millisecond,
		zLimit:      10,
		stressScale: 0.1,
		depthLines:  8,
	}
	for _, opt := range opts {
		opt(r)
	}

	if len(readings) == 0 {
		return errors.New("visualize: no readings")
	}
	if r.frames < 1 || r.width < 16 || r.height < 16 || r.zLimit <= 0 {
		return errors.New("visualize: invalid animation options")
	}

	deck := newDeck(readings, r.stressScale)
	cmap := newColorMap(r.zLimit)
	pal := gifPalette(cmap)

	anim := &gif.GIF{LoopCount: 0}
	delay := max(int(r.delay/(10*time.Millisecond)), 1)
	for frame := range r.frames {
		amplitude := math.Sin(float64(frame) * math.Pi / 180)
		anim.Image = append(anim.Image, r.drawFrame(deck, amplitude, cmap, pal))
		anim.Delay = append(anim.Delay, delay)
	}

	return gif.EncodeAll(w, anim)
}

// deck is the interpolated bending surface.
type deck struct {
	xs         []float64
	bend       []float64
	minY, maxY float64
	minX, maxX float64
}

// newDeck averages the scaled stress per sensor position and interpolates
// it linearly on an even grid along the deck.
func newDeck(readings []sensor.Reading, scale float64) deck {
	sums := make(map[float64]float64)
	counts := make(map[float64]int)
	d := deck{
		minY: readings[0].PositionY, maxY: readings[0].PositionY,
	}
	for _, rd := range readings {
		sums[rd.PositionX] += rd.Stress * scale
		counts[rd.PositionX]++
		d.minY = math.Min(d.minY, rd.PositionY)
		d.maxY = math.Max(d.maxY, rd.PositionY)
	}

	xp := make([]float64, 0, len(sums))
	for x := range sums {
		xp = append(xp, x)
	}
	slices.Sort(xp)
	fp := make([]float64, len(xp))
	for i, x := range xp {
		fp[i] = sums[x] / float64(counts[x])
	}

	d.minX, d.maxX = xp[0], xp[len(xp)-1]
	d.xs = make([]float64, gridPoints)
	d.bend = make([]float64, gridPoints)
	for i := range gridPoints {
		x := d.minX + (d.maxX-d.minX)*float64(i)/float64(gridPoints-1)
		d.xs[i] = x
		d.bend[i] = interp(x, xp, fp)
	}
	return d
}

// interp is piecewise linear interpolation over sorted xp, clamped at the ends.
func interp(x float64, xp, fp []float64) float64 {
	if x <= xp[0] {
		return fp[0]
	}
	if x >= xp[len(xp)-1] {
		return fp[len(fp)-1]
	}
	i, _ := slices.BinarySearch(xp, x)
	x0, x1 := xp[i-1], xp[i]
	t := (x - x0) / (x1 - x0)
	return fp[i-1] + t*(fp[i]-fp[i-1])
}
