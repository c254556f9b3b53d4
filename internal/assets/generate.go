// Package assets generates the site icons and fingerprints static files.
package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"path/filepath"

	"github.com/xianyu564/tobacco-notes/internal/storage"
)

// Palette of the site theme.
var (
	BrandColor = color.RGBA{0xff, 0x4d, 0x6d, 0xff}
	BGColor    = color.RGBA{0x0f, 0x11, 0x15, 0xff}
	CardColor  = color.RGBA{0x15, 0x19, 0x24, 0xff}
	TextColor  = color.RGBA{0xe6, 0xe9, 0xef, 0xff}
)

// Icon is a square icon output.
type Icon struct {
	Name string
	Size int
}

// Icons lists every generated icon.
var Icons = []Icon{
	{"favicon-16x16.png", 16},
	{"favicon-32x32.png", 32},
	{"apple-touch-icon.png", 180},
	{"icon-192.png", 192},
	{"icon-512.png", 512},
}

// OG image dimensions.
const (
	OGName   = "og-image.png"
	OGWidth  = 1200
	OGHeight = 630
)

// Generate writes all icons and the OG image into dir and returns their paths.
func Generate(dir string) ([]string, error) {
	var written []string
	for _, ic := range Icons {
		path := filepath.Join(dir, ic.Name)
		if err := writePNG(path, RenderIcon(ic.Size)); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	path := filepath.Join(dir, OGName)
	if err := writePNG(path, RenderOG(OGWidth, OGHeight)); err != nil {
		return written, err
	}
	return append(written, path), nil
}

func writePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return storage.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// RenderIcon draws the brand disc with a "TN" monogram on the dark background.
func RenderIcon(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(BGColor), image.Point{}, draw.Src)

	pad := float64(size) * 0.1
	c := float64(size) / 2
	r := c - pad
	for y := range size {
		for x := range size {
			dx, dy := float64(x)+0.5-c, float64(y)+0.5-c
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, BrandColor)
			}
		}
	}
	drawMonogram(img, size)
	return img
}

// glyphs are 3x5 bitmaps.
var glyphs = map[rune][5]string{
	'T': {"###", ".#.", ".#.", ".#.", ".#."},
	'N': {"#.#", "###", "###", "#.#", "#.#"},
}

func drawMonogram(img *image.RGBA, size int) {
	// two 3-wide glyphs with a 1-cell gap, centred in the middle 60%
	cell := max(1, size*6/10/7)
	w, h := 7*cell, 5*cell
	ox, oy := (size-w)/2, (size-h)/2
	for gi, ch := range "TN" {
		g := glyphs[ch]
		for row, line := range g {
			for col, px := range line {
				if px != '#' {
					continue
				}
				x0 := ox + (gi*4+col)*cell
				y0 := oy + row*cell
				draw.Draw(img, image.Rect(x0, y0, x0+cell, y0+cell), image.NewUniform(TextColor), image.Point{}, draw.Src)
			}
		}
	}
}

// RenderOG draws the social preview card.
func RenderOG(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(BGColor), image.Point{}, draw.Src)
	const pad = 40
	card := image.Rect(pad, pad, width-pad, height-pad)
	draw.Draw(img, card, image.NewUniform(CardColor), image.Point{}, draw.Src)
	accent := image.Rect(card.Min.X, card.Min.Y, card.Max.X, card.Min.Y+12)
	draw.Draw(img, accent, image.NewUniform(BrandColor), image.Point{}, draw.Src)

	iconSize := height / 3
	icon := RenderIcon(iconSize)
	at := image.Pt((width-iconSize)/2, (height-iconSize)/2)
	draw.Draw(img, icon.Bounds().Add(at), icon, image.Point{}, draw.Src)
	return img
}
