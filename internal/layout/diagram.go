package layout

import (
	"context"
	"encoding/json"
	"io"

	"linemap/internal/domain"
)

// Point is a pixel position on the diagram canvas.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p shifted by dx, dy.
func (p Point) Add(dx, dy int) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Stroke is the line drawn through every station center.
type Stroke struct {
	From  Point  `json:"from"`
	To    Point  `json:"to"`
	Color string `json:"color"`
	Width int    `json:"width"`
}

// TransferMark is a coded transfer drawn as a colored circle with the
// connecting line's code inside.
type TransferMark struct {
	Center Point  `json:"center"`
	Color  string `json:"color"`
	Code   string `json:"code"`
}

// TransferLabel lists the uncoded transfers of a station, anchored at its
// top-left corner.
type TransferLabel struct {
	Corner Point  `json:"corner"`
	Text   string `json:"text"`
	Color  string `json:"color"`
}

// StationNode is everything a renderer needs to paint one station.
type StationNode struct {
	Index      int            `json:"idx"`
	Center     Point          `json:"center"`
	Color      string         `json:"color"`
	Name       string         `json:"name"`
	Minutes    int            `json:"minutes"`
	Kilometers float64        `json:"kilometers"`
	Marks      []TransferMark `json:"marks,omitempty"`
	Label      *TransferLabel `json:"label,omitempty"`
}

// Diagram is the full geometry of one line drawing. Width and Height size
// the scrollable viewport.
type Diagram struct {
	Width    int                 `json:"width"`
	Height   int                 `json:"height"`
	Line     domain.Line         `json:"line"`
	Span     domain.ResolvedSpan `json:"span"`
	Style    domain.Style        `json:"style"`
	Stroke   Stroke              `json:"stroke"`
	Stations []StationNode       `json:"stations"`
}

// Renderer paints a computed diagram.
type Renderer interface {
	Render(ctx context.Context, d *Diagram) error
}

// JSONRenderer hands diagrams to an out-of-process painter as JSON.
type JSONRenderer struct {
	w      io.Writer
	indent bool
}

func NewJSONRenderer(w io.Writer, indent bool) *JSONRenderer {
	return &JSONRenderer{w: w, indent: indent}
}

func (r *JSONRenderer) Render(ctx context.Context, d *Diagram) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	enc := json.NewEncoder(r.w)
	if r.indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(d)
}
