package domain

// Box is a spacing rectangle (padding or margin) in pixels.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

type Font struct {
	Family string `json:"family"`
	Size   int    `json:"size"`
	Weight string `json:"weight"`
}

// Mark is a filled circle with a filled inner circle and a centered caption.
type Mark struct {
	Radius       int    `json:"radius"`
	RadiusInside int    `json:"radiusInside"`
	ColorInside  string `json:"colorInside"`
	Font         Font   `json:"font"`
}

// Text is a label style. Height is the vertical room reserved for one line.
type Text struct {
	Font   Font   `json:"font"`
	Margin Box    `json:"margin"`
	Color  string `json:"color"`
	Height int    `json:"height"`
}

type Body struct {
	Padding Box `json:"padding"`
}

type StationStyle struct {
	Mark Mark `json:"mark"`
	Text Text `json:"text"`
}

// LinkStyle sets the gap between two station marks and the stroke width.
type LinkStyle struct {
	Between int `json:"between"`
	Width   int `json:"width"`
}

type TransferStyle struct {
	Mark Mark `json:"mark"`
	Text Text `json:"text"`
}

// Style is a parsed style sheet. It is never mutated after load.
type Style struct {
	Body     Body          `json:"body"`
	Station  StationStyle  `json:"station"`
	Link     LinkStyle     `json:"link"`
	Transfer TransferStyle `json:"transfer"`
}

// Style sheet paths used as keys in StyleDefaults. They mirror the element
// nesting of the style document.
const (
	KeyPadding      = "padding"
	KeyMargin       = "margin"
	KeyLeft         = "left"
	KeyTop          = "top"
	KeyRight        = "right"
	KeyBottom       = "bottom"
	KeyRadius       = "mark/radius"
	KeyRadiusInside = "mark/radius-inside"
	KeyColorInside  = "mark/color-inside"
	KeyFontFamily   = "font/family"
	KeyFontSize     = "font/size"
	KeyFontWeight   = "font/weight"
	KeyTextColor    = "color"
	KeyTextHeight   = "height"
	KeyLinkBetween  = "link/between"
	KeyLinkWidth    = "link/width"
)

// StyleDefaults holds the value used for every style field the document
// leaves out. Keys absent from the table default to 0 or "".
var StyleDefaults = map[string]any{
	KeyLinkBetween: 10,
	KeyLinkWidth:   1,
	KeyTextColor:   "#000",
}

// DefaultInt returns the table default for an integer style field.
func DefaultInt(key string) int {
	if v, ok := StyleDefaults[key].(int); ok {
		return v
	}
	return 0
}

// DefaultString returns the table default for a string style field.
func DefaultString(key string) string {
	if v, ok := StyleDefaults[key].(string); ok {
		return v
	}
	return ""
}

// DefaultStyle is the style of an empty style document.
func DefaultStyle() Style {
	text := Text{
		Color:  DefaultString(KeyTextColor),
		Height: DefaultInt(KeyTextHeight),
	}
	return Style{
		Station: StationStyle{Text: text},
		Link: LinkStyle{
			Between: DefaultInt(KeyLinkBetween),
			Width:   DefaultInt(KeyLinkWidth),
		},
		Transfer: TransferStyle{Text: text},
	}
}
