package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const maxIncludeDepth = 16

// shaderSource is a preprocessed shader file: includes resolved, stages
// split, pragmas stripped out of the text and collected.
type shaderSource struct {
	version      string
	common       []string
	vertexBody   []string
	fragmentBody []string

	name       string
	format     string
	parameters []Parameter
}

func (s *shaderSource) vertex() string {
	return s.stage(s.vertexBody)
}

func (s *shaderSource) fragment() string {
	return s.stage(s.fragmentBody)
}

func (s *shaderSource) stage(body []string) string {
	var b strings.Builder
	b.WriteString(s.version)
	b.WriteByte('\n')
	for _, l := range s.common {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	for _, l := range body {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

func preprocessFile(path string) (*shaderSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	resolve := func(rel string, depth int) ([]string, error) {
		return readInclude(filepath.Dir(path), rel, depth)
	}
	return preprocessSource(path, string(data), resolve)
}

func readInclude(dir, rel string, depth int) ([]string, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("#include nesting exceeds %d levels", maxIncludeDepth)
	}
	full := filepath.Join(dir, rel)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	lines := splitLines(string(data))
	var out []string
	for _, line := range lines {
		if inc, ok := includeTarget(line); ok {
			nested, err := readInclude(filepath.Dir(full), inc, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

// preprocessSource splits a combined shader source into its vertex and
// fragment stages and extracts the pragma metadata. The resolver is nil for
// in-memory sources, which cannot include other files.
func preprocessSource(name, source string, resolve func(rel string, depth int) ([]string, error)) (*shaderSource, error) {
	src := &shaderSource{}

	const (
		stageCommon = iota
		stageVertex
		stageFragment
	)
	stage := stageCommon

	for i, line := range splitLines(source) {
		trimmed := strings.TrimSpace(line)

		if inc, ok := includeTarget(line); ok {
			if resolve == nil {
				return nil, fmt.Errorf("%s:%d: #include is not supported here", name, i+1)
			}
			lines, err := resolve(inc, 1)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", name, i+1, err)
			}
			src.appendLines(stage, lines)
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "#version"):
			src.version = trimmed
			continue

		case strings.HasPrefix(trimmed, "#pragma stage "):
			switch strings.TrimSpace(strings.TrimPrefix(trimmed, "#pragma stage ")) {
			case "vertex":
				stage = stageVertex
			case "fragment":
				stage = stageFragment
			default:
				return nil, fmt.Errorf("%s:%d: unknown stage in %q", name, i+1, trimmed)
			}
			continue

		case strings.HasPrefix(trimmed, "#pragma name "):
			src.name = strings.TrimSpace(strings.TrimPrefix(trimmed, "#pragma name "))
			continue

		case strings.HasPrefix(trimmed, "#pragma format "):
			src.format = strings.TrimSpace(strings.TrimPrefix(trimmed, "#pragma format "))
			continue

		case strings.HasPrefix(trimmed, "#pragma parameter "):
			param, err := parseParameterPragma(trimmed)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", name, i+1, err)
			}
			src.parameters = append(src.parameters, param)
			continue
		}

		src.appendLines(stage, []string{line})
	}

	if src.version == "" {
		src.version = "#version 300 es"
	}
	if len(src.vertexBody) == 0 || len(src.fragmentBody) == 0 {
		return nil, fmt.Errorf("%s: shader must declare both a vertex and a fragment stage", name)
	}
	return src, nil
}

func (s *shaderSource) appendLines(stage int, lines []string) {
	switch stage {
	case 1:
		s.vertexBody = append(s.vertexBody, lines...)
	case 2:
		s.fragmentBody = append(s.fragmentBody, lines...)
	default:
		s.common = append(s.common, lines...)
	}
}

// parseParameterPragma parses
//
//	#pragma parameter ID "description" initial minimum maximum [step]
//
// When step is omitted it defaults to a tenth of the parameter range.
func parseParameterPragma(line string) (Parameter, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#pragma parameter"))

	var p Parameter
	sp := strings.IndexAny(rest, " \t")
	if sp < 0 {
		return p, fmt.Errorf("malformed parameter pragma %q", line)
	}
	p.ID = rest[:sp]
	rest = strings.TrimSpace(rest[sp:])

	if !strings.HasPrefix(rest, `"`) {
		return p, fmt.Errorf("parameter %q is missing a quoted description", p.ID)
	}
	end := strings.Index(rest[1:], `"`)
	if end < 0 {
		return p, fmt.Errorf("parameter %q has an unterminated description", p.ID)
	}
	p.Desc = rest[1 : end+1]
	rest = strings.TrimSpace(rest[end+2:])

	fields := strings.Fields(rest)
	if len(fields) < 3 || len(fields) > 4 {
		return p, fmt.Errorf("parameter %q expects 3 or 4 numeric fields, got %d", p.ID, len(fields))
	}

	vals := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return p, fmt.Errorf("parameter %q has a malformed value %q", p.ID, f)
		}
		vals[i] = float32(v)
	}

	p.Initial = vals[0]
	p.Minimum = vals[1]
	p.Maximum = vals[2]
	if len(vals) == 4 {
		p.Step = vals[3]
	} else {
		p.Step = 0.1 * (p.Maximum - p.Minimum)
	}
	return p, nil
}

func includeTarget(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#include") {
		return "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "#include"))
	if len(rest) < 2 || rest[0] != '"' {
		return "", false
	}
	end := strings.Index(rest[1:], `"`)
	if end < 0 {
		return "", false
	}
	return rest[1 : end+1], true
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}
