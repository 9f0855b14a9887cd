package chain

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	// LUT image formats. PNG and JPEG from the standard library, BMP and
	// TIFF via x/image.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	preset "github.com/glemu/glvideo/preset"
)

// StaticTexture is an immutable lookup texture loaded once from a
// preset-referenced image file. Filter, wrap and mipmap settings are baked at
// creation and never change for the chain's lifetime.
type StaticTexture struct {
	id      string
	texture Texture
}

func loadLUT(lut preset.LUT) (*StaticTexture, error) {
	f, err := os.Open(lut.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open LUT %q: %w", lut.ID, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode LUT %q: %w", lut.ID, err)
	}

	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, image.Point{}, draw.Src)

	width := rgba.Rect.Dx()
	height := rgba.Rect.Dy()

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8,
		int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))

	mipFilter := preset.FilterUnspec
	if lut.Mipmap {
		mipFilter = lut.Filter
		gl.GenerateMipmap(gl.TEXTURE_2D)
	} else {
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, 0)
	}

	t := Texture{
		Image:     tex,
		Width:     width,
		Height:    height,
		Filter:    lut.Filter,
		MipFilter: mipFilter,
		Wrap:      lut.Wrap,
	}
	applySampler(t)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	return &StaticTexture{id: lut.ID, texture: t}, nil
}

func (s *StaticTexture) destroy() {
	if s.texture.Image != 0 {
		gl.DeleteTextures(1, &s.texture.Image)
		s.texture.Image = 0
	}
}
