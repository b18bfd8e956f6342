package runtime

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
)

// Signature declares a function's parameter and result types in WIT terms.
// Only scalar types are representable; each lowers onto exactly one of the
// engine's four core value types. Signatures with non-scalar types never
// match any function.
type Signature struct {
	Params  []wit.Type
	Results []wit.Type
}

// ParseSignature parses WIT-style function notation:
//
//	func(a: s32, b: s32) -> s32
//	func(s64) -> (s32, f64)
//	func()
//
// The func keyword and parameter names are optional. Non-scalar types
// (string, list, record, ...) are rejected: this layer moves raw stack
// values only.
func ParseSignature(text string) (Signature, error) {
	s := strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(s, "func"); ok {
		s = strings.TrimSpace(rest)
	}
	if !strings.HasPrefix(s, "(") {
		return Signature{}, fmt.Errorf("signature %q: expected parameter list", text)
	}
	end := strings.Index(s, ")")
	if end < 0 {
		return Signature{}, fmt.Errorf("signature %q: unterminated parameter list", text)
	}

	var sig Signature
	if params := strings.TrimSpace(s[1:end]); params != "" {
		for _, field := range strings.Split(params, ",") {
			// Parameter names are "name: type"; strip to the type.
			if idx := strings.LastIndex(field, ":"); idx >= 0 {
				field = field[idx+1:]
			}
			t, err := parseScalarType(field)
			if err != nil {
				return Signature{}, fmt.Errorf("signature %q: %w", text, err)
			}
			sig.Params = append(sig.Params, t)
		}
	}

	rest := strings.TrimSpace(s[end+1:])
	if rest == "" {
		return sig, nil
	}
	results, ok := strings.CutPrefix(rest, "->")
	if !ok {
		return Signature{}, fmt.Errorf("signature %q: expected \"->\" before results", text)
	}
	results = strings.TrimSpace(results)
	if strings.HasPrefix(results, "(") {
		if !strings.HasSuffix(results, ")") {
			return Signature{}, fmt.Errorf("signature %q: unterminated result list", text)
		}
		if inner := strings.TrimSpace(results[1 : len(results)-1]); inner != "" {
			for _, field := range strings.Split(inner, ",") {
				t, err := parseScalarType(field)
				if err != nil {
					return Signature{}, fmt.Errorf("signature %q: %w", text, err)
				}
				sig.Results = append(sig.Results, t)
			}
		}
		return sig, nil
	}
	t, err := parseScalarType(results)
	if err != nil {
		return Signature{}, fmt.Errorf("signature %q: %w", text, err)
	}
	sig.Results = []wit.Type{t}
	return sig, nil
}

func parseScalarType(text string) (wit.Type, error) {
	name := strings.TrimSpace(text)
	if name == "" {
		return nil, fmt.Errorf("empty type")
	}
	t, err := wit.ParseType(name)
	if err != nil {
		return nil, fmt.Errorf("type %q: %w", name, err)
	}
	if _, ok := coreType(t); !ok {
		return nil, fmt.Errorf("type %q is not a scalar", name)
	}
	return t, nil
}

// String renders the signature back in the notation ParseSignature reads.
func (s Signature) String() string {
	var b strings.Builder
	b.WriteString("func(")
	for i, t := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(witTypeName(t))
	}
	b.WriteString(")")
	switch len(s.Results) {
	case 0:
	case 1:
		b.WriteString(" -> ")
		b.WriteString(witTypeName(s.Results[0]))
	default:
		b.WriteString(" -> (")
		for i, t := range s.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(witTypeName(t))
		}
		b.WriteString(")")
	}
	return b.String()
}

// coreType lowers a WIT scalar onto a core value type. Non-scalar types
// have no lowering at this layer.
func coreType(t wit.Type) (api.ValueType, bool) {
	switch t.(type) {
	case wit.Bool, wit.S8, wit.U8, wit.S16, wit.U16, wit.S32, wit.U32, wit.Char:
		return api.ValueTypeI32, true
	case wit.S64, wit.U64:
		return api.ValueTypeI64, true
	case wit.F32:
		return api.ValueTypeF32, true
	case wit.F64:
		return api.ValueTypeF64, true
	}
	return 0, false
}

// coreTypes lowers a type list; false when any element is non-scalar.
func coreTypes(ts []wit.Type) ([]api.ValueType, bool) {
	if len(ts) == 0 {
		return nil, true
	}
	out := make([]api.ValueType, len(ts))
	for i, t := range ts {
		vt, ok := coreType(t)
		if !ok {
			return nil, false
		}
		out[i] = vt
	}
	return out, true
}

func witTypeName(t wit.Type) string {
	switch t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	default:
		return fmt.Sprintf("%T", t)
	}
}
