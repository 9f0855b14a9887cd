package chain

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"

	preset "github.com/glemu/glvideo/preset"
)

// Size is a render-target size in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) empty() bool {
	return s.Width == 0 || s.Height == 0
}

// Viewport is the destination rectangle for the terminal pass.
type Viewport struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Texture is a value handle to GPU texture content plus the sampler state it
// should be sampled with. It does not own the underlying image; the owning
// Framebuffer or StaticTexture does.
type Texture struct {
	Image     uint32
	Width     int
	Height    int
	Filter    preset.Filter
	MipFilter preset.Filter
	Wrap      preset.Wrap
}

func (t Texture) size() Size {
	return Size{Width: t.Width, Height: t.Height}
}

// applySampler sets the filter and wrap parameters on the currently-bound
// 2D texture.
func applySampler(t Texture) {
	minFilter, magFilter := filterToGL(t.Filter, t.MipFilter)
	wrap := wrapToGL(t.Wrap)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrap)
}

func wrapToGL(w preset.Wrap) int32 {
	switch w {
	case preset.WrapClampToBorder:
		return gl.CLAMP_TO_BORDER
	case preset.WrapRepeat:
		return gl.REPEAT
	case preset.WrapMirroredRepeat:
		return gl.MIRRORED_REPEAT
	default:
		return gl.CLAMP_TO_EDGE
	}
}

// filterToGL converts filter plus mip filter to GL minification and
// magnification filters. A mip filter of FilterUnspec means the texture has
// no mip chain.
func filterToGL(filter, mipFilter preset.Filter) (minFilter, magFilter int32) {
	linear := filter != preset.FilterNearest
	switch {
	case mipFilter == preset.FilterUnspec:
		if linear {
			return gl.LINEAR, gl.LINEAR
		}
		return gl.NEAREST, gl.NEAREST
	case mipFilter == preset.FilterLinear && linear:
		return gl.LINEAR_MIPMAP_LINEAR, gl.LINEAR
	case mipFilter == preset.FilterLinear:
		return gl.NEAREST_MIPMAP_LINEAR, gl.NEAREST
	case linear:
		return gl.LINEAR_MIPMAP_NEAREST, gl.LINEAR
	default:
		return gl.NEAREST_MIPMAP_NEAREST, gl.NEAREST
	}
}

// numMipLevels returns the length of a full mip chain for the given size.
func numMipLevels(width, height int) int {
	size := width
	if height > size {
		size = height
	}
	levels := 0
	for size > 0 {
		levels++
		size >>= 1
	}
	return levels
}

// formatFromHint converts a "#pragma format" name to a GL internal format.
// Unknown names report false and the chain keeps its default.
func formatFromHint(hint string) (uint32, bool) {
	switch hint {
	case "R8_UNORM":
		return gl.R8, true
	case "R8G8_UNORM":
		return gl.RG8, true
	case "R8G8B8A8_UNORM":
		return gl.RGBA8, true
	case "R8G8B8A8_SRGB":
		return gl.SRGB8_ALPHA8, true
	case "A2B10G10R10_UNORM_PACK32":
		return gl.RGB10_A2, true
	case "R16_SFLOAT":
		return gl.R16F, true
	case "R16G16_SFLOAT":
		return gl.RG16F, true
	case "R16G16B16A16_SFLOAT":
		return gl.RGBA16F, true
	case "R32_SFLOAT":
		return gl.R32F, true
	case "R32G32_SFLOAT":
		return gl.RG32F, true
	case "R32G32B32A32_SFLOAT":
		return gl.RGBA32F, true
	default:
		return 0, false
	}
}

// uploadFormat returns the pixel transfer format and type used to allocate
// or fill a texture with the given internal format.
func uploadFormat(internal uint32) (format, xtype uint32) {
	switch internal {
	case gl.R8:
		return gl.RED, gl.UNSIGNED_BYTE
	case gl.RG8:
		return gl.RG, gl.UNSIGNED_BYTE
	case gl.RGB10_A2:
		return gl.RGBA, gl.UNSIGNED_INT_2_10_10_10_REV
	case gl.R16F, gl.R32F:
		return gl.RED, gl.FLOAT
	case gl.RG16F, gl.RG32F:
		return gl.RG, gl.FLOAT
	case gl.RGBA16F, gl.RGBA32F:
		return gl.RGBA, gl.FLOAT
	default:
		return gl.RGBA, gl.UNSIGNED_BYTE
	}
}
