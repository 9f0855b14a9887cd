package chain

import (
	"testing"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	compiler "github.com/glemu/glvideo/compiler"
	preset "github.com/glemu/glvideo/preset"
)

func TestOutputSize(t *testing.T) {
	original := Size{Width: 256, Height: 240}
	source := Size{Width: 512, Height: 480}
	viewport := Size{Width: 1024, Height: 768}

	tests := []struct {
		name string
		info passInfo
		want Size
	}{
		{
			name: "source x2",
			info: passInfo{ScaleTypeX: preset.ScaleSource, ScaleTypeY: preset.ScaleSource, ScaleX: 2, ScaleY: 2},
			want: Size{Width: 1024, Height: 960},
		},
		{
			name: "original x2",
			info: passInfo{ScaleTypeX: preset.ScaleOriginal, ScaleTypeY: preset.ScaleOriginal, ScaleX: 2, ScaleY: 2},
			want: Size{Width: 512, Height: 480},
		},
		{
			name: "viewport half",
			info: passInfo{ScaleTypeX: preset.ScaleViewport, ScaleTypeY: preset.ScaleViewport, ScaleX: 0.5, ScaleY: 0.5},
			want: Size{Width: 512, Height: 384},
		},
		{
			name: "absolute",
			info: passInfo{ScaleTypeX: preset.ScaleAbsolute, ScaleTypeY: preset.ScaleAbsolute, AbsX: 640, AbsY: 400},
			want: Size{Width: 640, Height: 400},
		},
		{
			name: "mixed axes",
			info: passInfo{
				ScaleTypeX: preset.ScaleAbsolute, AbsX: 320,
				ScaleTypeY: preset.ScaleViewport, ScaleY: 1,
			},
			want: Size{Width: 320, Height: 768},
		},
		{
			name: "fractional scale rounds to nearest",
			info: passInfo{ScaleTypeX: preset.ScaleOriginal, ScaleTypeY: preset.ScaleOriginal, ScaleX: 1.5, ScaleY: 1.5},
			want: Size{Width: 384, Height: 360},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, outputSize(tc.info, original, source, viewport))
		})
	}
}

func TestPassFinalViewportIndependentOfRenderSize(t *testing.T) {
	original := Size{Width: 256, Height: 240}
	viewport := Size{Width: 1024, Height: 768}

	info := passInfo{ScaleTypeX: preset.ScaleSource, ScaleTypeY: preset.ScaleSource, ScaleX: 2, ScaleY: 2}
	p := newPass(0, false, info, &compiler.ShaderOutput{}, &CommonResources{})
	p.setFinalViewport(viewport)
	p.size = outputSize(info, original, original, viewport)

	// An offscreen pass renders at its own output size but still reports the
	// chain-level viewport.
	assert.Equal(t, Size{Width: 512, Height: 480}, p.size)
	assert.Equal(t, viewport, p.finalViewport)

	final := newPass(1, true, passInfo{}, &compiler.ShaderOutput{}, &CommonResources{})
	size, err := final.setPassInfo(original, p.size, viewport)
	require.NoError(t, err)
	final.setFinalViewport(viewport)
	assert.Equal(t, viewport, size)
	assert.Equal(t, viewport, final.finalViewport)
}

func TestBuildPassInfoDefaults(t *testing.T) {
	info := buildPassInfo(preset.PassConfig{}, "", false, false, preset.FilterUnspec)

	assert.Equal(t, preset.ScaleSource, info.ScaleTypeX)
	assert.Equal(t, preset.ScaleSource, info.ScaleTypeY)
	assert.Equal(t, float32(1), info.ScaleX)
	assert.Equal(t, float32(1), info.ScaleY)
	assert.Equal(t, preset.FilterLinear, info.SourceFilter)
	assert.Equal(t, preset.FilterUnspec, info.MipFilter)
	assert.Equal(t, 1, info.MaxLevels)
	assert.Equal(t, uint32(gl.RGBA8), info.RTFormat)
}

func TestBuildPassInfoLayering(t *testing.T) {
	pc := preset.PassConfig{
		Filter: preset.FilterNearest,
		Wrap:   preset.WrapRepeat,
		Mipmap: true,
		FBO: preset.FBOScale{
			Valid: true,
			TypeX: preset.ScaleViewport, TypeY: preset.ScaleAbsolute,
			ScaleX: 0.5, AbsY: 224,
		},
	}
	info := buildPassInfo(pc, "", true, false, preset.FilterLinear)

	assert.Equal(t, preset.ScaleViewport, info.ScaleTypeX)
	assert.Equal(t, preset.ScaleAbsolute, info.ScaleTypeY)
	assert.Equal(t, float32(0.5), info.ScaleX)
	assert.Equal(t, 224, info.AbsY)
	assert.Equal(t, preset.FilterNearest, info.SourceFilter)
	assert.Equal(t, preset.FilterNearest, info.MipFilter)
	assert.Equal(t, maxMipLevels, info.MaxLevels)
	assert.Equal(t, preset.WrapRepeat, info.Address)
}

func TestBuildPassInfoFinalPass(t *testing.T) {
	info := buildPassInfo(preset.PassConfig{}, "R16G16B16A16_SFLOAT", false, true, preset.FilterNearest)
	// The terminal pass renders to the presentation surface; format hints do
	// not apply.
	assert.Equal(t, uint32(0), info.RTFormat)
	assert.Equal(t, preset.FilterNearest, info.SourceFilter)
}

func TestRenderTargetFormat(t *testing.T) {
	assert.Equal(t, uint32(gl.RGBA8), renderTargetFormat(preset.FBOScale{}, ""))
	assert.Equal(t, uint32(gl.SRGB8_ALPHA8), renderTargetFormat(preset.FBOScale{Valid: true, SRGB: true}, ""))
	assert.Equal(t, uint32(gl.RGBA16F), renderTargetFormat(preset.FBOScale{Valid: true, Float: true}, ""))
	// Preset flags win over the shader's hint.
	assert.Equal(t, uint32(gl.SRGB8_ALPHA8), renderTargetFormat(preset.FBOScale{Valid: true, SRGB: true, Float: true}, "R8_UNORM"))

	f, ok := formatFromHint("R16G16B16A16_SFLOAT")
	assert.True(t, ok)
	assert.Equal(t, uint32(gl.RGBA16F), f)
	assert.Equal(t, uint32(gl.RGBA16F), renderTargetFormat(preset.FBOScale{}, "R16G16B16A16_SFLOAT"))

	_, ok = formatFromHint("NOT_A_FORMAT")
	assert.False(t, ok)
}

func TestNumMipLevels(t *testing.T) {
	assert.Equal(t, 1, numMipLevels(1, 1))
	assert.Equal(t, 9, numMipLevels(256, 256))
	assert.Equal(t, 10, numMipLevels(512, 480))
	assert.Equal(t, 11, numMipLevels(1024, 768))
}
