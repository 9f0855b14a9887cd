package preset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseError reports a malformed preset file.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

const maxPasses = 26

// Load parses a shader preset file. It validates structure only; shader
// sources are compiled later when the filter chain is built.
func Load(path string) (*Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Msg: err.Error()}
	}
	defer f.Close()

	entries := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, &ParseError{Path: path, Line: lineNo, Msg: fmt.Sprintf("expected key = value, got %q", line)}
		}
		key := strings.TrimSpace(line[:eq])
		value := unquote(strings.TrimSpace(line[eq+1:]))
		if key == "" {
			return nil, &ParseError{Path: path, Line: lineNo, Msg: "empty key"}
		}
		entries[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Path: path, Msg: err.Error()}
	}

	return build(path, entries)
}

func build(path string, entries map[string]string) (*Preset, error) {
	p := &Preset{
		Path:      path,
		Values:    make(map[string]float32),
		overrides: make(map[string]float32),
	}
	dir := filepath.Dir(path)

	fail := func(format string, args ...interface{}) (*Preset, error) {
		return nil, &ParseError{Path: path, Msg: fmt.Sprintf(format, args...)}
	}

	numStr, ok := entries["shaders"]
	if !ok {
		return fail("missing \"shaders\" directive")
	}
	num, err := strconv.Atoi(numStr)
	if err != nil || num < 1 || num > maxPasses {
		return fail("invalid pass count %q", numStr)
	}

	for i := 0; i < num; i++ {
		pass, err := buildPass(entries, i, dir)
		if err != nil {
			return nil, &ParseError{Path: path, Msg: err.Error()}
		}
		p.Passes = append(p.Passes, pass)
	}

	if list, ok := entries["textures"]; ok {
		for _, id := range splitList(list) {
			lut, err := buildLUT(entries, id, dir)
			if err != nil {
				return nil, &ParseError{Path: path, Msg: err.Error()}
			}
			p.LUTs = append(p.LUTs, lut)
		}
	}

	if list, ok := entries["parameters"]; ok {
		for _, id := range splitList(list) {
			raw, ok := entries[id]
			if !ok {
				return fail("parameter %q named in \"parameters\" has no value", id)
			}
			v, err := strconv.ParseFloat(raw, 32)
			if err != nil {
				return fail("parameter %q has a malformed value %q", id, raw)
			}
			p.overrides[id] = float32(v)
		}
	}

	return p, nil
}

func buildPass(entries map[string]string, i int, dir string) (PassConfig, error) {
	pass := PassConfig{
		Wrap: WrapClampToBorder,
	}
	suffix := strconv.Itoa(i)

	shader, ok := entries["shader"+suffix]
	if !ok {
		return pass, fmt.Errorf("pass %d has no shader source", i)
	}
	pass.ShaderPath = resolvePath(dir, shader)

	if v, ok := entries["alias"+suffix]; ok {
		pass.Alias = v
	}
	if v, ok := entries["filter_linear"+suffix]; ok {
		if parseBool(v) {
			pass.Filter = FilterLinear
		} else {
			pass.Filter = FilterNearest
		}
	}
	if v, ok := entries["wrap_mode"+suffix]; ok {
		wrap, err := parseWrap(v)
		if err != nil {
			return pass, fmt.Errorf("pass %d: %w", i, err)
		}
		pass.Wrap = wrap
	}
	if v, ok := entries["mipmap_input"+suffix]; ok {
		pass.Mipmap = parseBool(v)
	}
	if v, ok := entries["frame_count_mod"+suffix]; ok {
		mod, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return pass, fmt.Errorf("pass %d: malformed frame_count_mod %q", i, v)
		}
		pass.FrameCountMod = uint(mod)
	}
	pass.FBO.SRGB = parseBool(entries["srgb_framebuffer"+suffix])
	pass.FBO.Float = parseBool(entries["float_framebuffer"+suffix])

	if err := buildScale(entries, suffix, &pass.FBO); err != nil {
		return pass, fmt.Errorf("pass %d: %w", i, err)
	}
	return pass, nil
}

// buildScale layers scale_type/scale_type_x/scale_type_y and the matching
// factor keys. Any scale directive marks the pass as rendering to an
// explicitly-sized framebuffer; an axis with no directive of its own keeps
// source scale at factor 1.
func buildScale(entries map[string]string, suffix string, fbo *FBOScale) error {
	axis := func(typeKeys, scaleKeys []string, typ *ScaleType, scale *float32, abs *int) error {
		var rawType string
		for _, k := range typeKeys {
			if v, ok := entries[k]; ok {
				rawType = v
				break
			}
		}
		if rawType == "" {
			*typ = ScaleSource
			*scale = 1.0
			return nil
		}
		fbo.Valid = true
		switch rawType {
		case "source":
			*typ = ScaleSource
		case "viewport":
			*typ = ScaleViewport
		case "absolute":
			*typ = ScaleAbsolute
		case "original":
			*typ = ScaleOriginal
		default:
			return fmt.Errorf("unknown scale type %q", rawType)
		}

		*scale = 1.0
		for _, k := range scaleKeys {
			v, ok := entries[k]
			if !ok {
				continue
			}
			if *typ == ScaleAbsolute {
				n, err := strconv.Atoi(v)
				if err != nil {
					return fmt.Errorf("malformed absolute scale %q", v)
				}
				*abs = n
			} else {
				f, err := strconv.ParseFloat(v, 32)
				if err != nil {
					return fmt.Errorf("malformed scale factor %q", v)
				}
				*scale = float32(f)
			}
			break
		}
		return nil
	}

	if err := axis(
		[]string{"scale_type_x" + suffix, "scale_type" + suffix},
		[]string{"scale_x" + suffix, "scale" + suffix},
		&fbo.TypeX, &fbo.ScaleX, &fbo.AbsX); err != nil {
		return err
	}
	return axis(
		[]string{"scale_type_y" + suffix, "scale_type" + suffix},
		[]string{"scale_y" + suffix, "scale" + suffix},
		&fbo.TypeY, &fbo.ScaleY, &fbo.AbsY)
}

func buildLUT(entries map[string]string, id, dir string) (LUT, error) {
	lut := LUT{
		ID:     id,
		Filter: FilterLinear,
		Wrap:   WrapClampToBorder,
	}
	path, ok := entries[id]
	if !ok {
		return lut, fmt.Errorf("texture %q named in \"textures\" has no path", id)
	}
	lut.Path = resolvePath(dir, path)

	if v, ok := entries[id+"_linear"]; ok && !parseBool(v) {
		lut.Filter = FilterNearest
	}
	if v, ok := entries[id+"_wrap_mode"]; ok {
		wrap, err := parseWrap(v)
		if err != nil {
			return lut, fmt.Errorf("texture %q: %w", id, err)
		}
		lut.Wrap = wrap
	}
	lut.Mipmap = parseBool(entries[id+"_mipmap"])
	return lut, nil
}

func parseWrap(v string) (Wrap, error) {
	switch v {
	case "clamp_to_border":
		return WrapClampToBorder, nil
	case "clamp_to_edge":
		return WrapClampToEdge, nil
	case "repeat":
		return WrapRepeat, nil
	case "mirrored_repeat":
		return WrapMirroredRepeat, nil
	}
	return 0, fmt.Errorf("unknown wrap mode %q", v)
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ";") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}
