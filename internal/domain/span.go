package domain

// Span is a requested view window over a line's stations. Negative indices
// count from the end of the line. A nil Base means "same as Begin".
type Span struct {
	Begin int  `json:"begin"`
	End   int  `json:"end"`
	Base  *int `json:"base,omitempty"`
}

// NewSpan builds a span whose base defaults to begin.
func NewSpan(begin, end int) Span {
	return Span{Begin: begin, End: end}
}

// WithBase returns a copy of the span anchored at base.
func (s Span) WithBase(base int) Span {
	s.Base = &base
	return s
}

// FullSpan covers the whole line in document direction.
func FullSpan() Span {
	return NewSpan(0, -1)
}

// ResolvedSpan is a span with every index normalized against a station count.
type ResolvedSpan struct {
	Begin int `json:"begin"`
	End   int `json:"end"`
	Base  int `json:"base"`
}

// Empty reports whether the span covers no links.
func (r ResolvedSpan) Empty() bool {
	return r.Begin == r.End
}

// Descending reports whether the span walks from higher to lower indices.
func (r ResolvedSpan) Descending() bool {
	return r.Begin > r.End
}

// Resolve normalizes begin, end and base against n stations.
func (s Span) Resolve(n int) ResolvedSpan {
	r := ResolvedSpan{
		Begin: NormalizeIndex(s.Begin, n),
		End:   NormalizeIndex(s.End, n),
	}
	if s.Base == nil {
		r.Base = r.Begin
	} else {
		r.Base = NormalizeIndex(*s.Base, n)
	}
	return r
}

// NormalizeIndex maps a negative idx into [0, n). Non-negative indices and
// any index against an empty line are returned as is.
func NormalizeIndex(idx, n int) int {
	if idx >= 0 || n <= 0 {
		return idx
	}
	return ((idx % n) + n) % n
}
