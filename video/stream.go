package video

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"

	chain "github.com/glemu/glvideo/chain"
	preset "github.com/glemu/glvideo/preset"
)

// numStreamedTextures is the input upload ring depth. Rotating the target
// image each frame keeps the driver from stalling on a texture the GPU is
// still sampling for a previous frame.
const numStreamedTextures = 4

// streamedTexture receives the emulated frame each call and hands out the
// freshest slot as the chain's input.
type streamedTexture struct {
	images [numStreamedTextures]uint32
	sizes  [numStreamedTextures]chain.Size
	index  int
	rgb32  bool
}

func newStreamedTexture(rgb32 bool) *streamedTexture {
	s := &streamedTexture{rgb32: rgb32}
	gl.GenTextures(numStreamedTextures, &s.images[0])
	for _, img := range s.images {
		gl.BindTexture(gl.TEXTURE_2D, img)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return s
}

func (s *streamedTexture) bytesPerPixel() int {
	if s.rgb32 {
		return 4
	}
	return 2
}

// upload streams one frame into the next ring slot and returns its texture.
// A nil pixel pointer repeats the previous frame without an upload.
func (s *streamedTexture) upload(pixels []byte, width, height, pitch int) chain.Texture {
	if pixels == nil {
		return s.current()
	}

	s.index = (s.index + 1) % numStreamedTextures
	size := chain.Size{Width: width, Height: height}

	gl.BindTexture(gl.TEXTURE_2D, s.images[s.index])
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 2)
	if rowLength := pitch / s.bytesPerPixel(); rowLength != width {
		gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(rowLength))
		defer gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	}

	if s.rgb32 {
		if s.sizes[s.index] != size {
			gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0,
				gl.BGRA, gl.UNSIGNED_INT_8_8_8_8_REV, nil)
		}
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(width), int32(height),
			gl.BGRA, gl.UNSIGNED_INT_8_8_8_8_REV, gl.Ptr(pixels))
	} else {
		if s.sizes[s.index] != size {
			gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGB565, int32(width), int32(height), 0,
				gl.RGB, gl.UNSIGNED_SHORT_5_6_5, nil)
		}
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(width), int32(height),
			gl.RGB, gl.UNSIGNED_SHORT_5_6_5, gl.Ptr(pixels))
	}
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 4)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	s.sizes[s.index] = size
	return s.current()
}

// current returns the most recently uploaded slot.
func (s *streamedTexture) current() chain.Texture {
	size := s.sizes[s.index]
	return chain.Texture{
		Image:  s.images[s.index],
		Width:  size.Width,
		Height: size.Height,
		Filter: preset.FilterNearest,
		Wrap:   preset.WrapClampToEdge,
	}
}

func (s *streamedTexture) destroy() {
	gl.DeleteTextures(numStreamedTextures, &s.images[0])
	s.images = [numStreamedTextures]uint32{}
}
