package extract

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/omerfdemir/docvalidator/internal/entity"
)

// inkThreshold is the 8-bit luminance below which a pixel counts as ink.
const inkThreshold = 128

// regionsFromImageFile decodes a page image and measures ink density in
// each hinted zone (or the whole page when no hints apply).
func regionsFromImageFile(path string, pageNumber int, hints []entity.RegionHint) ([]entity.Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return regionsFromImage(img, pageNumber, hints), nil
}

func regionsFromImage(img image.Image, pageNumber int, hints []entity.RegionHint) []entity.Region {
	var regions []entity.Region
	for _, h := range hints {
		if h.Page != 0 && h.Page != pageNumber {
			continue
		}
		regions = append(regions, entity.Region{
			X: h.X, Y: h.Y, Width: h.Width, Height: h.Height,
			InkRatio: inkRatio(img, h.X, h.Y, h.Width, h.Height),
		})
	}
	if len(regions) == 0 {
		regions = []entity.Region{{
			X: 0, Y: 0, Width: 1, Height: 1,
			InkRatio: inkRatio(img, 0, 0, 1, 1),
		}}
	}
	return regions
}

// inkRatio is the fraction of dark pixels inside a fractional rectangle.
// Sampling every other pixel keeps large scans cheap without moving the
// ratio meaningfully.
func inkRatio(img image.Image, fx, fy, fw, fh float64) float64 {
	b := img.Bounds()
	x0 := b.Min.X + int(fx*float64(b.Dx()))
	y0 := b.Min.Y + int(fy*float64(b.Dy()))
	x1 := x0 + int(fw*float64(b.Dx()))
	y1 := y0 + int(fh*float64(b.Dy()))
	if x1 > b.Max.X {
		x1 = b.Max.X
	}
	if y1 > b.Max.Y {
		y1 = b.Max.Y
	}
	if x1 <= x0 || y1 <= y0 {
		return 0
	}

	var dark, total int
	for y := y0; y < y1; y += 2 {
		for x := x0; x < x1; x += 2 {
			r, g, bl, _ := img.At(x, y).RGBA()
			// ITU-R 601 luma, 16-bit channels scaled to 8 bits.
			luma := (299*r + 587*g + 114*bl) / 1000 >> 8
			if luma < inkThreshold {
				dark++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(dark) / float64(total)
}
