package linedoc

import (
	"fmt"
	"io"
	"os"

	"github.com/beevik/etree"

	"linemap/internal/domain"
)

// ParseStyle reads a style document. Absent elements take their value from
// domain.StyleDefaults; only non-numeric numbers are rejected.
func (p *Parser) ParseStyle(r io.Reader) (domain.Style, error) {
	doc, err := readDocument(r)
	if err != nil {
		return domain.Style{}, err
	}

	root := doc.Root()
	if root == nil {
		return domain.Style{}, &DocumentError{Path: "style", Err: errMissing}
	}

	sr := &styleReader{}
	style := domain.Style{
		Body: domain.Body{
			Padding: sr.box(root.SelectElement("body"), "body", domain.KeyPadding),
		},
		Station: domain.StationStyle{
			Mark: sr.mark(root.SelectElement("station"), "station"),
			Text: sr.text(root.SelectElement("station"), "station"),
		},
		Link: sr.link(root),
		Transfer: domain.TransferStyle{
			Mark: sr.mark(root.SelectElement("change"), "change"),
			Text: sr.text(root.SelectElement("change"), "change"),
		},
	}
	if sr.err != nil {
		return domain.Style{}, sr.err
	}

	p.logger.Debug("parsed style document",
		"station_radius", style.Station.Mark.Radius,
		"transfer_radius", style.Transfer.Mark.Radius,
		"link_between", style.Link.Between,
	)

	return style, nil
}

// LoadStyle reads and parses a style file.
func (p *Parser) LoadStyle(path string) (domain.Style, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Style{}, fmt.Errorf("open style document: %w", err)
	}
	defer f.Close()

	style, err := p.ParseStyle(f)
	if err != nil {
		return domain.Style{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return style, nil
}

// styleReader walks style sections and keeps the first malformed value.
type styleReader struct {
	err error
}

func (sr *styleReader) fields(el *etree.Element, path string) *fields {
	return newFields(textBag{el}, path)
}

func (sr *styleReader) keep(f *fields) {
	if sr.err == nil && f.err != nil {
		sr.err = f.err
	}
}

func (sr *styleReader) box(section *etree.Element, path, name string) domain.Box {
	var el *etree.Element
	if section != nil {
		el = section.SelectElement(name)
	}
	f := sr.fields(el, path+"/"+name)
	box := domain.Box{
		Left:   f.integer(domain.KeyLeft, domain.DefaultInt(domain.KeyLeft)),
		Top:    f.integer(domain.KeyTop, domain.DefaultInt(domain.KeyTop)),
		Right:  f.integer(domain.KeyRight, domain.DefaultInt(domain.KeyRight)),
		Bottom: f.integer(domain.KeyBottom, domain.DefaultInt(domain.KeyBottom)),
	}
	sr.keep(f)
	return box
}

// font reads family/size/weight below el.
func (sr *styleReader) font(el *etree.Element, path string) domain.Font {
	f := sr.fields(el, path)
	font := domain.Font{
		Family: f.str(domain.KeyFontFamily, domain.DefaultString(domain.KeyFontFamily)),
		Size:   f.integer(domain.KeyFontSize, domain.DefaultInt(domain.KeyFontSize)),
		Weight: f.str(domain.KeyFontWeight, domain.DefaultString(domain.KeyFontWeight)),
	}
	sr.keep(f)
	return font
}

func (sr *styleReader) mark(section *etree.Element, path string) domain.Mark {
	f := sr.fields(section, path)
	mark := domain.Mark{
		Radius:       f.integer(domain.KeyRadius, domain.DefaultInt(domain.KeyRadius)),
		RadiusInside: f.integer(domain.KeyRadiusInside, domain.DefaultInt(domain.KeyRadiusInside)),
		ColorInside:  f.str(domain.KeyColorInside, domain.DefaultString(domain.KeyColorInside)),
	}
	sr.keep(f)

	var markEl *etree.Element
	if section != nil {
		markEl = section.SelectElement("mark")
	}
	mark.Font = sr.font(markEl, path+"/mark")
	return mark
}

func (sr *styleReader) text(section *etree.Element, path string) domain.Text {
	f := sr.fields(section, path)
	text := domain.Text{
		Font:   sr.font(section, path),
		Margin: sr.box(section, path, domain.KeyMargin),
		Color:  f.str(domain.KeyTextColor, domain.DefaultString(domain.KeyTextColor)),
		Height: f.integer(domain.KeyTextHeight, domain.DefaultInt(domain.KeyTextHeight)),
	}
	sr.keep(f)
	return text
}

func (sr *styleReader) link(root *etree.Element) domain.LinkStyle {
	f := sr.fields(root, "style")
	link := domain.LinkStyle{
		Between: f.integer(domain.KeyLinkBetween, domain.DefaultInt(domain.KeyLinkBetween)),
		Width:   f.integer(domain.KeyLinkWidth, domain.DefaultInt(domain.KeyLinkWidth)),
	}
	sr.keep(f)
	return link
}
