package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/vector"

	"f2phelper/internal/uri"
)

// starPoints outline the star in its 24x24 viewBox, before the group
// transform below is applied.
var starPoints = [][2]float32{
	{12, 1.1}, {14.474, 8.712}, {22.026, 8.712}, {15.878, 13.186}, {18.165, 21.022},
	{12, 16.362}, {5.835, 21.022}, {8.122, 13.186}, {2, 8.712}, {9.552, 8.712},
}

const (
	starScale = 1.19844
	starDX    = -2.39688
	starDY    = -1.25597
)

// StarSVG renders the shortcut star filled with fill.
func StarSVG(fill string) string {
	path := ""
	for i, p := range starPoints {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		path += fmt.Sprintf("%s%g,%g", cmd, p[0], p[1])
	}
	return `<svg width="100%" height="100%" viewBox="0 0 24 24" version="1.1" xmlns="http://www.w3.org/2000/svg" ` +
		`style="fill-rule:evenodd;clip-rule:evenodd;stroke-linejoin:round;stroke-miterlimit:2;">` +
		fmt.Sprintf(`<g transform="matrix(%g,0,0,%g,%g,%g)">`, starScale, starScale, starDX, starDY) +
		`<path d="` + path + `Z" fill="` + fill + `"/></g></svg>`
}

// StarDataURI returns StarSVG as a CSS url() payload.
func StarDataURI(fill string) string {
	return "data:image/svg+xml," + uri.EncodeComponent(StarSVG(fill))
}

// StarPNG rasterizes the star at size x size pixels.
func StarPNG(size int, fill color.Color) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("star png: invalid size %d", size)
	}
	scale := float32(size) / 24
	r := vector.NewRasterizer(size, size)
	for i, p := range starPoints {
		x := (p[0]*starScale + starDX) * scale
		y := (p[1]*starScale + starDY) * scale
		if i == 0 {
			r.MoveTo(x, y)
		} else {
			r.LineTo(x, y)
		}
	}
	r.ClosePath()

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	r.Draw(dst, dst.Bounds(), image.NewUniform(fill), image.Point{})

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MenuIconColor is the star fill used on the personal menu.
var MenuIconColor = color.RGBA{R: 0xcb, G: 0xd9, B: 0xf4, A: 0xff}
