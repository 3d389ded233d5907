package visualize

import (
	"image"
	"image/color"
	imgdraw "image/draw"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Oblique projection: the far edge of the deck is shifted right by
// depthShiftX of the deck length and up by depthShiftZ of the z limit.
const (
	depthShiftX = 0.2
	depthShiftZ = 0.6
)

// deckPlotter draws one frame of the deck as a plot.Plotter.
type deckPlotter struct {
	deck      deck
	amplitude float64
	lines     int
	zLimit    float64
	cmap      palette.ColorMap
}

var (
	_ plot.Plotter    = deckPlotter{}
	_ plot.DataRanger = deckPlotter{}
)

func (d deckPlotter) length() float64 {
	if d.deck.maxX > d.deck.minX {
		return d.deck.maxX - d.deck.minX
	}
	return 1
}

// project maps a deck point on depth line i to data coordinates.
func (d deckPlotter) project(x float64, i int, z float64) (float64, float64) {
	f := 0.0
	if d.lines > 1 {
		f = float64(i) / float64(d.lines-1)
	}
	return x + f*depthShiftX*d.length(), z + f*depthShiftZ*d.zLimit
}

// DataRange implements plot.DataRanger.
func (d deckPlotter) DataRange() (xmin, xmax, ymin, ymax float64) {
	return d.deck.minX, d.deck.minX + (1+depthShiftX)*d.length(), -d.zLimit, (1 + depthShiftZ) * d.zLimit
}

// Plot implements plot.Plotter.
func (d deckPlotter) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)

	reference := draw.LineStyle{Color: axisColor, Width: vg.Points(1)}
	for _, i := range []int{0, d.lines - 1} {
		x0, y0 := d.project(d.deck.minX, i, 0)
		x1, y1 := d.project(d.deck.maxX, i, 0)
		c.StrokeLine2(reference, trX(x0), trY(y0), trX(x1), trY(y1))
	}

	// Back to front so the near edge is drawn last.
	for i := d.lines - 1; i >= 0; i-- {
		for k := 1; k < len(d.deck.xs); k++ {
			z0 := d.deck.bend[k-1] * d.amplitude
			z1 := d.deck.bend[k] * d.amplitude
			x0, y0 := d.project(d.deck.xs[k-1], i, z0)
			x1, y1 := d.project(d.deck.xs[k], i, z1)
			style := draw.LineStyle{Color: deckColor(d.cmap, (z0+z1)/2), Width: vg.Points(2)}
			c.StrokeLine2(style, trX(x0), trY(y0), trX(x1), trY(y1))
		}
	}
}

// drawFrame renders the deck bent by amplitude and converts it to pal.
func (r *renderer) drawFrame(d deck, amplitude float64, cmap palette.ColorMap, pal color.Palette) *image.Paletted {
	lines := r.depthLines
	if d.minY == d.maxY {
		lines = 1
	}
	dp := deckPlotter{deck: d, amplitude: amplitude, lines: lines, zLimit: r.zLimit, cmap: cmap}

	p := plot.New()
	p.HideAxes()
	p.BackgroundColor = pal[backgroundIndex]
	p.Add(dp)
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = dp.DataRange()

	// At 72 dpi one point is one pixel.
	canvas := vgimg.NewWith(
		vgimg.UseWH(vg.Length(r.width), vg.Length(r.height)),
		vgimg.UseDPI(72),
		vgimg.UseBackgroundColor(pal[backgroundIndex]),
	)
	p.Draw(draw.New(canvas))

	return frameImage(canvas.Image(), pal)
}

// frameImage maps a rendered RGBA frame onto the animation palette.
func frameImage(src image.Image, pal color.Palette) *image.Paletted {
	dst := image.NewPaletted(src.Bounds(), pal)
	imgdraw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, imgdraw.Src)
	return dst
}
