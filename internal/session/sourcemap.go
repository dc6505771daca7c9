package session

import (
	"sable/internal/mir"
)

// SourceMap tracks the extent of loaded source text. Spans synthesized by
// the compiler (the dummy span) or pointing past the loaded text are
// invalid; passes replace them with the span of the code they expand.
type SourceMap struct {
	len uint32
}

// NewSourceMap creates a source map covering length bytes of source.
func NewSourceMap(length uint32) *SourceMap {
	return &SourceMap{len: length}
}

// Grow extends the covered extent to at least length bytes.
func (m *SourceMap) Grow(length uint32) {
	if length > m.len {
		m.len = length
	}
}

// IsValid reports whether span points into loaded source.
func (m *SourceMap) IsValid(span mir.Span) bool {
	if span == mir.DummySpan {
		return false
	}
	return span.Lo <= span.Hi && span.Hi <= m.len
}
