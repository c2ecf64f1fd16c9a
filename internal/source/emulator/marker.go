package emulator

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// markerSVG is drawn at every active point: a ring with a dot at the
// exact position.
const markerSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 32 32">
<circle cx="16" cy="16" r="13" fill="none" stroke="currentColor" stroke-width="3"/>
<circle cx="16" cy="16" r="3" fill="currentColor"/>
</svg>`

var (
	colorGrabbed = color.RGBA{0x4c, 0xd1, 0x6b, 0xff}
	colorFree    = color.RGBA{0xf5, 0xa6, 0x23, 0xff}
)

// renderMarker rasterizes the point marker at size x size in c.
func renderMarker(size int, c color.Color) *image.RGBA {
	r, g, b, _ := c.RGBA()
	svg := strings.ReplaceAll(markerSVG, "currentColor", fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.Transparent}, image.Point{}, draw.Src)

	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		logger.Errorf("parsing marker: %v", err)
		return img
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)
	return img
}
