package writer

import (
	"strconv"
	"strings"

	"github.com/marcoeg/crypto-tracer/internal/tsfmt"
)

// jval is a minimal ordered JSON value tree. It exists instead of
// encoding/json because the writer's contracts (spec section 4.G) require
// exact control over null-vs-empty-string semantics, fixed field ordering
// per event kind, and the custom escape grammar from spec section 4.B — all
// easier to guarantee by building the tree directly than by fighting
// struct-tag-driven marshaling.
type jval interface {
	render(b *strings.Builder, indent int, pretty bool)
}

type jNull struct{}

func (jNull) render(b *strings.Builder, _ int, _ bool) { b.WriteString("null") }

type jString string

func (s jString) render(b *strings.Builder, _ int, _ bool) {
	b.WriteByte('"')
	b.WriteString(tsfmt.Escape(string(s)))
	b.WriteByte('"')
}

// jNullableString renders as null when the underlying string is empty,
// never as "" (spec section 4.G: "a null/empty optional field maps to a
// JSON-like null literal, never to the empty string").
func jNullableString(s string) jval {
	if s == "" {
		return jNull{}
	}
	return jString(s)
}

type jInt int64

func (v jInt) render(b *strings.Builder, _ int, _ bool) { b.WriteString(strconv.FormatInt(int64(v), 10)) }

type jUint uint64

func (v jUint) render(b *strings.Builder, _ int, _ bool) { b.WriteString(strconv.FormatUint(uint64(v), 10)) }

type jBool bool

func (v jBool) render(b *strings.Builder, _ int, _ bool) { b.WriteString(strconv.FormatBool(bool(v))) }

type jField struct {
	key string
	val jval
}

type jObject []jField

func (o jObject) render(b *strings.Builder, indent int, pretty bool) {
	if len(o) == 0 {
		b.WriteString("{}")
		return
	}
	b.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			b.WriteByte(',')
		}
		writeNewlineIndent(b, indent+1, pretty)
		b.WriteByte('"')
		b.WriteString(f.key)
		b.WriteString(`":`)
		if pretty {
			b.WriteByte(' ')
		}
		f.val.render(b, indent+1, pretty)
	}
	writeNewlineIndent(b, indent, pretty)
	b.WriteByte('}')
}

type jArray []jval

func (a jArray) render(b *strings.Builder, indent int, pretty bool) {
	if len(a) == 0 {
		b.WriteString("[]")
		return
	}
	b.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		writeNewlineIndent(b, indent+1, pretty)
		v.render(b, indent+1, pretty)
	}
	writeNewlineIndent(b, indent, pretty)
	b.WriteByte(']')
}

func writeNewlineIndent(b *strings.Builder, indent int, pretty bool) {
	if !pretty {
		return
	}
	b.WriteByte('\n')
	for i := 0; i < indent; i++ {
		b.WriteString("  ")
	}
}

// marshal renders v as compact or pretty-indented text.
func marshal(v jval, pretty bool) string {
	var b strings.Builder
	v.render(&b, 0, pretty)
	return b.String()
}
