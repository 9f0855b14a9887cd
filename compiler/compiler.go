package compiler

import (
	"context"
	"fmt"
	"regexp"

	gst "github.com/richinsley/goshadertranslator"
)

// Parameter is a tunable value declared with "#pragma parameter" in a shader
// source. Duplicate declarations across passes must match field for field.
type Parameter struct {
	ID      string
	Desc    string
	Initial float32
	Minimum float32
	Maximum float32
	Step    float32
}

// Reflection describes what a compiled shader needs bound at draw time. It is
// built once at compile time and treated as immutable afterwards.
type Reflection struct {
	// Name is the pass name declared with "#pragma name", if any.
	Name string

	// Format is the render-target format hint from "#pragma format", empty
	// when the shader leaves the choice to the chain.
	Format string

	Parameters []Parameter

	// Samplers lists the texture uniforms declared by the fragment stage, in
	// declaration order. Entries are source-level semantic names such as
	// "Source", "OriginalHistory2" or a LUT id.
	Samplers []string

	// Uniforms maps source-level uniform names to the names the translator
	// emitted into the output GLSL. Uniform locations are resolved through
	// this map when the pass pipeline is linked.
	Uniforms map[string]string
}

// ShaderOutput is the result of cross-compiling one shader source file.
type ShaderOutput struct {
	Vertex     string
	Fragment   string
	Reflection Reflection
}

// Compiler resolves a shader source into compiled stages plus reflection.
// The filter chain depends on this interface rather than the concrete
// translator so preset construction is testable without a GPU.
type Compiler interface {
	Compile(path string) (*ShaderOutput, error)
	CompileSource(name, source string) (*ShaderOutput, error)
}

// CompileError reports a shader that failed preprocessing or translation.
type CompileError struct {
	Path  string
	Stage string // "vertex", "fragment" or "preprocess"
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s (%s): %v", e.Path, e.Stage, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Translator is the production Compiler backed by goshadertranslator.
type Translator struct {
	st *gst.ShaderTranslator
}

// NewTranslator spins up the shader translator. This is expensive (it loads
// the translator runtime) so the driver keeps a single instance for its
// lifetime.
func NewTranslator(ctx context.Context) (*Translator, error) {
	st, err := gst.NewShaderTranslator(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize shader translator: %w", err)
	}
	return &Translator{st: st}, nil
}

// Compile reads and cross-compiles the shader source at path.
func (t *Translator) Compile(path string) (*ShaderOutput, error) {
	src, err := preprocessFile(path)
	if err != nil {
		return nil, &CompileError{Path: path, Stage: "preprocess", Err: err}
	}
	return t.translate(path, src)
}

// CompileSource compiles an in-memory shader source. The name is used only
// for error reporting; sources compiled this way cannot use #include.
func (t *Translator) CompileSource(name, source string) (*ShaderOutput, error) {
	src, err := preprocessSource(name, source, nil)
	if err != nil {
		return nil, &CompileError{Path: name, Stage: "preprocess", Err: err}
	}
	return t.translate(name, src)
}

var samplerRE = regexp.MustCompile(`(?m)^\s*uniform\s+(?:(?:highp|mediump|lowp)\s+)?sampler2D\s+(\w+)\s*;`)

func (t *Translator) translate(path string, src *shaderSource) (*ShaderOutput, error) {
	vsSource := src.vertex()
	fsSource := src.fragment()

	vs, err := t.st.TranslateShader(vsSource, "vertex", gst.ShaderSpecWebGL2, gst.OutputFormatGLSL410)
	if err != nil {
		return nil, &CompileError{Path: path, Stage: "vertex", Err: err}
	}
	fs, err := t.st.TranslateShader(fsSource, "fragment", gst.ShaderSpecWebGL2, gst.OutputFormatGLSL410)
	if err != nil {
		return nil, &CompileError{Path: path, Stage: "fragment", Err: err}
	}

	// Merge the per-stage variable maps. The translator derives mapped names
	// from source names, so a uniform visible to both stages resolves to the
	// same output name.
	uniforms := make(map[string]string)
	for name, v := range vs.Variables {
		uniforms[name] = v.MappedName
	}
	for name, v := range fs.Variables {
		uniforms[name] = v.MappedName
	}

	var samplers []string
	for _, m := range samplerRE.FindAllStringSubmatch(fsSource, -1) {
		samplers = append(samplers, m[1])
	}

	return &ShaderOutput{
		Vertex:   vs.Code,
		Fragment: fs.Code,
		Reflection: Reflection{
			Name:       src.name,
			Format:     src.format,
			Parameters: src.parameters,
			Samplers:   samplers,
			Uniforms:   uniforms,
		},
	}, nil
}
