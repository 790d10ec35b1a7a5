package layout

import (
	"errors"
	"strings"

	"linemap/internal/domain"
)

// Default viewport floor, in pixels.
const (
	DefaultMinWidth  = 320
	DefaultMinHeight = 480
)

var ErrNoLine = errors.New("layout: no line loaded")

// Engine measures and places one line under one style. It keeps no state
// between calls; every Layout recomputes offsets from scratch.
type Engine struct {
	line      *domain.LineInfo
	style     domain.Style
	minWidth  int
	minHeight int
}

func New(line *domain.LineInfo, style domain.Style, minWidth, minHeight int) *Engine {
	return &Engine{
		line:      line,
		style:     style,
		minWidth:  minWidth,
		minHeight: minHeight,
	}
}

// TransferExtraHeight is the room taken below station idx by its transfers:
// one mark row if any transfer is coded, one text line if any is not.
func (e *Engine) TransferExtraHeight(idx int) int {
	if e.line == nil {
		return 0
	}
	hasMark, hasText := false, false
	for _, t := range e.line.TransfersAt(idx) {
		if t.HasCode() {
			hasMark = true
		} else {
			hasText = true
		}
	}

	height := 0
	if hasMark {
		height += 2 * e.style.Transfer.Mark.Radius
	}
	if hasText {
		height += e.style.Transfer.Text.Height
	}
	return height
}

// StationAdvance is the vertical distance from the center of station idx to
// the center of the next station drawn.
func (e *Engine) StationAdvance(idx int) int {
	return 2*e.style.Station.Mark.Radius + e.style.Link.Between + e.TransferExtraHeight(idx)
}

// Width is the diagram width, never below the configured minimum.
func (e *Engine) Width() int {
	pad := e.style.Body.Padding
	return max(pad.Left+2*e.style.Station.Mark.Radius+pad.Right, e.minWidth)
}

// Height is the diagram height for the whole line, never below the
// configured minimum.
func (e *Engine) Height() int {
	pad := e.style.Body.Padding
	if e.line == nil {
		return max(pad.Top+pad.Bottom, e.minHeight)
	}

	n := e.line.StationCount()
	extra := 0
	for _, s := range e.line.Stations {
		extra += e.TransferExtraHeight(s.Index)
	}
	gaps := 0
	if n > 1 {
		gaps = e.style.Link.Between * (n - 1)
	}

	return max(pad.Top+2*e.style.Station.Mark.Radius*n+extra+gaps+pad.Bottom, e.minHeight)
}

// origin is the center of the first station drawn.
func (e *Engine) origin() Point {
	r := e.style.Station.Mark.Radius
	return Point{
		X: e.style.Body.Padding.Left + r,
		Y: e.style.Body.Padding.Top + r,
	}
}

// Offsets returns the center of every station visited by span, in visiting
// order, together with the station indices.
func (e *Engine) Offsets(span domain.Span) ([]int, []Point) {
	if e.line == nil {
		return nil, nil
	}
	resolved := span.Resolve(e.line.StationCount())

	var indices []int
	var centers []Point
	center := e.origin()
	for idx := range e.line.StationsBetween(resolved.Begin, resolved.End) {
		indices = append(indices, idx)
		centers = append(centers, center)
		center = center.Add(0, e.StationAdvance(idx))
	}
	return indices, centers
}

// Layout computes the full diagram for span.
func (e *Engine) Layout(span domain.Span) (*Diagram, error) {
	if e.line == nil {
		return nil, ErrNoLine
	}

	resolved := span.Resolve(e.line.StationCount())
	base := e.line.BaseTotals(resolved)

	color := e.line.Line.Color
	indices, centers := e.Offsets(span)

	d := &Diagram{
		Width:    e.Width(),
		Height:   e.Height(),
		Line:     e.line.Line,
		Span:     resolved,
		Style:    e.style,
		Stations: make([]StationNode, 0, len(indices)),
	}

	start := e.origin()
	d.Stroke = Stroke{From: start, To: start, Color: color, Width: e.style.Link.Width}
	if len(centers) > 0 {
		d.Stroke.To = centers[len(centers)-1]
	}

	for i, idx := range indices {
		elapsed := e.line.Elapsed(resolved, base, idx)
		node := StationNode{
			Index:      idx,
			Center:     centers[i],
			Color:      color,
			Name:       e.line.StationName(idx),
			Minutes:    elapsed.Minutes,
			Kilometers: elapsed.Kilometers,
		}
		if resolved.Descending() {
			node.Minutes, node.Kilometers = -node.Minutes, negate(node.Kilometers)
		}
		node.Marks, node.Label = e.placeTransfers(centers[i], e.line.TransfersAt(idx))
		d.Stations = append(d.Stations, node)
	}

	return d, nil
}

// negate flips the sign of a nonzero label. Zero stays +0 so it never
// prints as "-0".
func negate(km float64) float64 {
	if km == 0 {
		return 0
	}
	return -km
}

// placeTransfers lays coded transfers out as a row of marks below and to the
// right of the station mark, and the uncoded ones as a single text label
// under that row.
func (e *Engine) placeTransfers(center Point, transfers []domain.Transfer) ([]TransferMark, *TransferLabel) {
	if len(transfers) == 0 {
		return nil, nil
	}

	st := e.style.Station
	tr := e.style.Transfer

	var marks []TransferMark
	var names []string
	markCenter := center.Add(
		st.Mark.Radius+st.Text.Margin.Left+tr.Mark.Radius,
		st.Mark.Radius+tr.Mark.Radius,
	)
	for _, t := range transfers {
		if !t.HasCode() {
			names = append(names, t.Line.Name)
			continue
		}
		marks = append(marks, TransferMark{
			Center: markCenter,
			Color:  t.Line.Color,
			Code:   t.Line.Code,
		})
		markCenter = markCenter.Add(2*tr.Mark.Radius, 0)
	}

	if len(names) == 0 {
		return marks, nil
	}

	corner := center.Add(st.Mark.Radius+st.Text.Margin.Left, st.Mark.Radius)
	if len(marks) > 0 {
		corner = corner.Add(0, 2*tr.Mark.Radius)
	}
	return marks, &TransferLabel{
		Corner: corner,
		Text:   strings.Join(names, ", "),
		Color:  tr.Text.Color,
	}
}
