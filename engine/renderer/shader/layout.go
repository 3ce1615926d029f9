// Package shader reads the host-shareable struct layouts out of WGSL source so the Go side of the
// GPU boundary can be checked against the shaders that consume it.
package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// typeLayout holds the byte size and alignment of a WGSL type.
type typeLayout struct {
	size  uint64
	align uint64
}

// primitiveLayouts maps WGSL scalar, vector, matrix and atomic type names to their size and
// alignment.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var primitiveLayouts = map[string]typeLayout{
	"f32":  {4, 4},
	"i32":  {4, 4},
	"u32":  {4, 4},
	"f16":  {2, 2},
	"bool": {4, 4},

	"vec2<f32>": {8, 8},
	"vec2f":     {8, 8},
	"vec3<f32>": {12, 16},
	"vec3f":     {12, 16},
	"vec4<f32>": {16, 16},
	"vec4f":     {16, 16},

	"vec2<i32>": {8, 8},
	"vec2i":     {8, 8},
	"vec3<i32>": {12, 16},
	"vec3i":     {12, 16},
	"vec4<i32>": {16, 16},
	"vec4i":     {16, 16},

	"vec2<u32>": {8, 8},
	"vec2u":     {8, 8},
	"vec3<u32>": {12, 16},
	"vec3u":     {12, 16},
	"vec4<u32>": {16, 16},
	"vec4u":     {16, 16},

	"mat3x3<f32>": {48, 16},
	"mat3x3f":     {48, 16},
	"mat4x3<f32>": {64, 16},
	"mat4x4<f32>": {64, 16},
	"mat4x4f":     {64, 16},

	"atomic<u32>": {4, 4},
	"atomic<i32>": {4, 4},
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// fieldRegex matches a struct field: optional attributes, name, colon, type
	fieldRegex = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)$`)
)

// FieldLayout is the placement of one member inside a struct.
type FieldLayout struct {
	Name   string
	Type   string
	Offset uint64
	Size   uint64
}

// StructLayout is the memory layout of one WGSL struct.
type StructLayout struct {
	Name   string
	Size   uint64
	Align  uint64
	Fields []FieldLayout
}

// Field returns the layout of the named member.
//
// Parameters:
//   - name: the member name
//
// Returns:
//   - FieldLayout: the member layout
//   - bool: false if the struct has no such member
func (s StructLayout) Field(name string) (FieldLayout, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldLayout{}, false
}

type parsedField struct {
	name     string
	typeName string
}

type parsedStruct struct {
	name   string
	fields []parsedField
}

// ParseStructLayouts computes the layout of every struct declared in the WGSL source.
// Structs may reference each other in any order. Structs with a member of unknown type are
// left out; a runtime-sized trailing array contributes one element stride.
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - map[string]StructLayout: the layouts keyed by struct name
func ParseStructLayouts(source string) map[string]StructLayout {
	remaining := parseStructBlocks(stripComments(source))
	known := make(map[string]typeLayout, len(remaining))
	layouts := make(map[string]StructLayout, len(remaining))

	for len(remaining) > 0 {
		next := remaining[:0]
		for _, ps := range remaining {
			if layout, ok := computeStructLayout(ps, known); ok {
				known[ps.name] = typeLayout{layout.Size, layout.Align}
				layouts[ps.name] = layout
			} else {
				next = append(next, ps)
			}
		}
		if len(next) == len(remaining) {
			break
		}
		remaining = next
	}
	return layouts
}

// LookupStruct computes the layout of a single named struct.
//
// Parameters:
//   - source: the WGSL source
//   - name: the struct name
//
// Returns:
//   - StructLayout: the struct layout
//   - error: error if the struct is missing or has members of unknown type
func LookupStruct(source, name string) (StructLayout, error) {
	layout, ok := ParseStructLayouts(source)[name]
	if !ok {
		return StructLayout{}, fmt.Errorf("struct %s not found or not resolvable", name)
	}
	return layout, nil
}

func computeStructLayout(ps parsedStruct, known map[string]typeLayout) (StructLayout, bool) {
	out := StructLayout{Name: ps.name, Align: 1, Fields: make([]FieldLayout, 0, len(ps.fields))}
	offset := uint64(0)

	for _, f := range ps.fields {
		fl, ok := resolveTypeLayout(f.typeName, known)
		if !ok {
			return StructLayout{}, false
		}
		offset = roundUpAlign(fl.align, offset)
		out.Fields = append(out.Fields, FieldLayout{Name: f.name, Type: f.typeName, Offset: offset, Size: fl.size})
		offset += fl.size
		out.Align = max(out.Align, fl.align)
	}

	out.Size = roundUpAlign(out.Align, offset)
	return out, true
}

// resolveTypeLayout handles primitives, already resolved structs and arrays.
func resolveTypeLayout(typeName string, known map[string]typeLayout) (typeLayout, bool) {
	if layout, ok := primitiveLayouts[typeName]; ok {
		return layout, true
	}
	if layout, ok := known[typeName]; ok {
		return layout, true
	}

	if !strings.HasPrefix(typeName, "array<") || !strings.HasSuffix(typeName, ">") {
		return typeLayout{}, false
	}
	elem, count, sized := strings.Cut(typeName[len("array<"):len(typeName)-1], ",")
	elemLayout, ok := resolveTypeLayout(strings.TrimSpace(elem), known)
	if !ok {
		return typeLayout{}, false
	}
	stride := roundUpAlign(elemLayout.align, elemLayout.size)
	if !sized {
		return typeLayout{stride, elemLayout.align}, true
	}
	n, err := strconv.ParseUint(strings.TrimSpace(count), 10, 64)
	if err != nil {
		return typeLayout{}, false
	}
	return typeLayout{n * stride, elemLayout.align}, true
}

// roundUpAlign rounds value up to the next multiple of alignment, which must be a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, m := range matches {
		ps := parsedStruct{name: m[1]}
		for _, member := range splitAtTopLevelCommas(m[2]) {
			fm := fieldRegex.FindStringSubmatch(strings.TrimSpace(member))
			if fm == nil {
				continue
			}
			ps.fields = append(ps.fields, parsedField{name: fm[1], typeName: strings.TrimSpace(fm[2])})
		}
		structs = append(structs, ps)
	}
	return structs
}

// splitAtTopLevelCommas splits a struct body on commas outside of <...> type parameters.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// stripComments removes line comments and (nested) block comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			case source[i] == '/' && source[i+1] == '/' && depth == 0:
				for i < len(source) && source[i] != '\n' {
					i++
				}
				if i < len(source) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
