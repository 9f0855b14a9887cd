package preset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	compiler "github.com/glemu/glvideo/compiler"
)

func writePreset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.glslp")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSinglePass(t *testing.T) {
	path := writePreset(t, `
shaders = 1
shader0 = crt.slang
filter_linear0 = true
`)
	p, err := Load(path)
	require.NoError(t, err)
	require.Len(t, p.Passes, 1)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "crt.slang"), p.Passes[0].ShaderPath)
	assert.Equal(t, FilterLinear, p.Passes[0].Filter)
	assert.Equal(t, WrapClampToBorder, p.Passes[0].Wrap)
	assert.False(t, p.Passes[0].FBO.Valid)
}

func TestLoadMultiPass(t *testing.T) {
	path := writePreset(t, `
shaders = "3"
shader0 = first.slang
scale_type0 = source
scale0 = 2.0
alias0 = Glow
srgb_framebuffer0 = true

shader1 = second.slang
scale_type_x1 = absolute
scale_x1 = 512
scale_type_y1 = viewport
scale_y1 = 0.5
wrap_mode1 = repeat
mipmap_input1 = true
frame_count_mod1 = 60
float_framebuffer1 = true

shader2 = last.slang
filter_linear2 = false
`)
	p, err := Load(path)
	require.NoError(t, err)
	require.Len(t, p.Passes, 3)

	p0 := p.Passes[0]
	assert.True(t, p0.FBO.Valid)
	assert.Equal(t, ScaleSource, p0.FBO.TypeX)
	assert.Equal(t, ScaleSource, p0.FBO.TypeY)
	assert.Equal(t, float32(2.0), p0.FBO.ScaleX)
	assert.Equal(t, float32(2.0), p0.FBO.ScaleY)
	assert.Equal(t, "Glow", p0.Alias)
	assert.True(t, p0.FBO.SRGB)

	p1 := p.Passes[1]
	assert.True(t, p1.FBO.Valid)
	assert.Equal(t, ScaleAbsolute, p1.FBO.TypeX)
	assert.Equal(t, 512, p1.FBO.AbsX)
	assert.Equal(t, ScaleViewport, p1.FBO.TypeY)
	assert.Equal(t, float32(0.5), p1.FBO.ScaleY)
	assert.Equal(t, WrapRepeat, p1.Wrap)
	assert.True(t, p1.Mipmap)
	assert.Equal(t, uint(60), p1.FrameCountMod)
	assert.True(t, p1.FBO.Float)

	p2 := p.Passes[2]
	assert.Equal(t, FilterNearest, p2.Filter)
	assert.False(t, p2.FBO.Valid)
}

func TestLoadSingleAxisScale(t *testing.T) {
	path := writePreset(t, `
shaders = 1
shader0 = vertical.slang
scale_type_y0 = viewport
scale_y0 = 2.0
`)
	p, err := Load(path)
	require.NoError(t, err)
	require.Len(t, p.Passes, 1)

	fbo := p.Passes[0].FBO
	assert.True(t, fbo.Valid)
	assert.Equal(t, ScaleViewport, fbo.TypeY)
	assert.Equal(t, float32(2.0), fbo.ScaleY)
	assert.Equal(t, ScaleSource, fbo.TypeX)
	assert.Equal(t, float32(1.0), fbo.ScaleX)
}

func TestLoadTextures(t *testing.T) {
	path := writePreset(t, `
shaders = 1
shader0 = pass.slang
textures = "mask;grain"
mask = lut/mask.png
mask_linear = false
mask_wrap_mode = mirrored_repeat
grain = grain.png
grain_mipmap = true
`)
	p, err := Load(path)
	require.NoError(t, err)
	require.Len(t, p.LUTs, 2)

	mask := p.LUTs[0]
	assert.Equal(t, "mask", mask.ID)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "lut", "mask.png"), mask.Path)
	assert.Equal(t, FilterNearest, mask.Filter)
	assert.Equal(t, WrapMirroredRepeat, mask.Wrap)
	assert.False(t, mask.Mipmap)

	grain := p.LUTs[1]
	assert.Equal(t, FilterLinear, grain.Filter)
	assert.True(t, grain.Mipmap)
}

func TestLoadParameterOverrides(t *testing.T) {
	path := writePreset(t, `
shaders = 1
shader0 = pass.slang
parameters = "CURVATURE;GAMMA"
CURVATURE = 0.25
GAMMA = 2.4
`)
	p, err := Load(path)
	require.NoError(t, err)

	// Overrides land once the declared set is known.
	require.NoError(t, p.AddParameters([]compiler.Parameter{
		{ID: "CURVATURE", Initial: 0.0, Minimum: 0.0, Maximum: 1.0, Step: 0.05},
	}))
	p.ApplyOverrides()

	assert.Equal(t, float32(0.25), p.Values["CURVATURE"])
	// GAMMA was never declared by a shader; its override is dropped.
	_, ok := p.Values["GAMMA"]
	assert.False(t, ok)
}

func TestLoadCommentsAndQuotes(t *testing.T) {
	path := writePreset(t, `
# full line comment
shaders = 1 # trailing comment
shader0 = "my shader.slang"
`)
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "my shader.slang"), p.Passes[0].ShaderPath)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing shaders", "shader0 = pass.slang\n"},
		{"zero passes", "shaders = 0\n"},
		{"too many passes", "shaders = 27\n"},
		{"missing shader path", "shaders = 2\nshader0 = pass.slang\n"},
		{"not key value", "shaders = 1\nshader0 = pass.slang\nbogus line\n"},
		{"bad wrap mode", "shaders = 1\nshader0 = p.slang\nwrap_mode0 = welded\n"},
		{"bad scale type", "shaders = 1\nshader0 = p.slang\nscale_type0 = huge\n"},
		{"bad scale factor", "shaders = 1\nshader0 = p.slang\nscale_type0 = source\nscale0 = wide\n"},
		{"override without value", "shaders = 1\nshader0 = p.slang\nparameters = GAMMA\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writePreset(t, tc.content))
			require.Error(t, err)
			var perr *ParseError
			assert.True(t, errors.As(err, &perr))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.glslp"))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestAddParametersConflict(t *testing.T) {
	p := &Preset{Values: make(map[string]float32)}
	decl := compiler.Parameter{ID: "GAMMA", Desc: "Gamma", Initial: 2.2, Minimum: 1.0, Maximum: 3.0, Step: 0.1}

	require.NoError(t, p.AddParameters([]compiler.Parameter{decl}))
	// Identical redeclaration from a later pass is fine.
	require.NoError(t, p.AddParameters([]compiler.Parameter{decl}))
	require.Len(t, p.Parameters, 1)

	changed := decl
	changed.Maximum = 4.0
	err := p.AddParameters([]compiler.Parameter{changed})
	var cerr *ParameterConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "GAMMA", cerr.ID)
}

func TestSetParameterClamps(t *testing.T) {
	p := &Preset{Values: make(map[string]float32)}
	require.NoError(t, p.AddParameters([]compiler.Parameter{
		{ID: "GAMMA", Initial: 2.2, Minimum: 1.0, Maximum: 3.0, Step: 0.1},
	}))

	assert.True(t, p.SetParameter("GAMMA", 2.5))
	assert.Equal(t, float32(2.5), p.Values["GAMMA"])

	assert.True(t, p.SetParameter("GAMMA", 99))
	assert.Equal(t, float32(3.0), p.Values["GAMMA"])

	assert.True(t, p.SetParameter("GAMMA", -1))
	assert.Equal(t, float32(1.0), p.Values["GAMMA"])

	assert.False(t, p.SetParameter("UNKNOWN", 1))
}
