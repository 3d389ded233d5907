package visualize

import (
	"image/color"
	"math"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

const (
	backgroundIndex = 0
	rampSize        = 254
)

var axisColor = color.RGBA{160, 160, 160, 255}

// newColorMap returns a diverging blue-red map over [-zLimit, zLimit].
func newColorMap(zLimit float64) palette.ColorMap {
	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(-zLimit)
	cmap.SetMax(zLimit)
	return cmap
}

// gifPalette holds the background, the reference axis colour and a ramp
// sampled from cmap.
func gifPalette(cmap palette.ColorMap) color.Palette {
	pal := color.Palette{color.White, axisColor}
	return append(pal, cmap.Palette(rampSize).Colors()...)
}

// deckColor returns the colour of bend z, clamped to the map's range.
func deckColor(cmap palette.ColorMap, z float64) color.Color {
	z = math.Max(cmap.Min(), math.Min(cmap.Max(), z))
	c, err := cmap.At(z)
	if err != nil {
		return axisColor
	}
	return c
}
