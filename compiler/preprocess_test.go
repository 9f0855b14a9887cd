package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const combinedSource = `#version 450
#pragma name BloomPass
#pragma format R16G16B16A16_SFLOAT
#pragma parameter INTENSITY "Bloom Intensity" 0.5 0.0 1.0 0.05

layout(location = 0) uniform mat4 MVP;

#pragma stage vertex
layout(location = 0) in vec2 Position;
void main() { gl_Position = MVP * vec4(Position, 0.0, 1.0); }

#pragma stage fragment
out vec4 FragColor;
void main() { FragColor = vec4(1.0); }
`

func TestPreprocessSource(t *testing.T) {
	src, err := preprocessSource("bloom", combinedSource, nil)
	require.NoError(t, err)

	assert.Equal(t, "#version 450", src.version)
	assert.Equal(t, "BloomPass", src.name)
	assert.Equal(t, "R16G16B16A16_SFLOAT", src.format)

	require.Len(t, src.parameters, 1)
	assert.Equal(t, Parameter{
		ID: "INTENSITY", Desc: "Bloom Intensity",
		Initial: 0.5, Minimum: 0.0, Maximum: 1.0, Step: 0.05,
	}, src.parameters[0])

	// The common block lands in both assembled stages.
	assert.Contains(t, src.vertex(), "uniform mat4 MVP")
	assert.Contains(t, src.fragment(), "uniform mat4 MVP")
	assert.Contains(t, src.vertex(), "in vec2 Position")
	assert.NotContains(t, src.vertex(), "FragColor")
	assert.Contains(t, src.fragment(), "FragColor")
	assert.NotContains(t, src.fragment(), "#pragma")
}

func TestPreprocessDefaultVersion(t *testing.T) {
	src, err := preprocessSource("p", "#pragma stage vertex\nvoid main(){}\n#pragma stage fragment\nvoid main(){}\n", nil)
	require.NoError(t, err)
	assert.Equal(t, "#version 300 es", src.version)
}

func TestPreprocessMissingStage(t *testing.T) {
	_, err := preprocessSource("p", "#pragma stage vertex\nvoid main(){}\n", nil)
	require.Error(t, err)

	_, err = preprocessSource("p", "#pragma stage bogus\n", nil)
	require.Error(t, err)
}

func TestPreprocessIncludeRejectedInMemory(t *testing.T) {
	_, err := preprocessSource("p", "#include \"common.inc\"\n", nil)
	require.Error(t, err)
}

func TestPreprocessFileWithIncludes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "inc"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "inc", "colors.inc"),
		[]byte("const vec3 tint = vec3(1.0, 0.5, 0.25);\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inc", "util.inc"),
		[]byte("#include \"colors.inc\"\nfloat luma(vec3 c) { return dot(c, vec3(0.299, 0.587, 0.114)); }\n"), 0o644))

	shader := `#version 450
#include "inc/util.inc"
#pragma stage vertex
void main() {}
#pragma stage fragment
out vec4 FragColor;
void main() { FragColor = vec4(tint * luma(tint), 1.0); }
`
	path := filepath.Join(dir, "main.slang")
	require.NoError(t, os.WriteFile(path, []byte(shader), 0o644))

	src, err := preprocessFile(path)
	require.NoError(t, err)
	assert.Contains(t, src.fragment(), "const vec3 tint")
	assert.Contains(t, src.fragment(), "float luma")
}

func TestPreprocessStockSource(t *testing.T) {
	src, err := preprocessSource("stock", StockSource, nil)
	require.NoError(t, err)
	assert.Empty(t, src.parameters)
	assert.Contains(t, src.vertex(), "gl_Position")
	assert.Contains(t, src.fragment(), "Source")
}

func TestParseParameterPragma(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Parameter
		wantErr bool
	}{
		{
			name: "full",
			line: `#pragma parameter SCAN "Scanline Weight" 0.3 0.0 1.0 0.05`,
			want: Parameter{ID: "SCAN", Desc: "Scanline Weight", Initial: 0.3, Minimum: 0.0, Maximum: 1.0, Step: 0.05},
		},
		{
			name: "default step is a tenth of the range",
			line: `#pragma parameter ZOOM "Zoom" 1.0 0.5 2.5`,
			want: Parameter{ID: "ZOOM", Desc: "Zoom", Initial: 1.0, Minimum: 0.5, Maximum: 2.5, Step: 0.2},
		},
		{
			name: "negative range",
			line: `#pragma parameter SHIFT "X Shift" 0.0 -10.0 10.0 1.0`,
			want: Parameter{ID: "SHIFT", Desc: "X Shift", Initial: 0.0, Minimum: -10.0, Maximum: 10.0, Step: 1.0},
		},
		{name: "missing description", line: `#pragma parameter FOO 1.0 0.0 2.0`, wantErr: true},
		{name: "unterminated description", line: `#pragma parameter FOO "bar 1.0 0.0 2.0`, wantErr: true},
		{name: "too few fields", line: `#pragma parameter FOO "Foo" 1.0 0.0`, wantErr: true},
		{name: "too many fields", line: `#pragma parameter FOO "Foo" 1.0 0.0 2.0 0.1 9.0`, wantErr: true},
		{name: "non numeric", line: `#pragma parameter FOO "Foo" one two three`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseParameterPragma(tc.line)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
