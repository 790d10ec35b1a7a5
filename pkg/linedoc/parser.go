package linedoc

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/beevik/etree"

	"linemap/internal/domain"
)

type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	return &Parser{
		logger: logger.With("component", "linedoc_parser"),
	}
}

func readDocument(r io.Reader) (*etree.Document, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, &DocumentError{Err: err}
	}
	return doc, nil
}

// ParseLineInfo reads a line-data document. Any missing required value
// fails the whole document.
func (p *Parser) ParseLineInfo(r io.Reader) (*domain.LineInfo, error) {
	start := time.Now()

	doc, err := readDocument(r)
	if err != nil {
		return nil, err
	}

	root := doc.FindElement("//line-info")
	if root == nil {
		return nil, &DocumentError{Path: "line-info", Err: errMissing}
	}

	info := &domain.LineInfo{
		Line: parseLine(attrBag{root}, "line-info"),
	}

	for i, el := range root.FindElements("./stations/station") {
		station, err := parseStation(el, fmt.Sprintf("stations/station[%d]", i))
		if err != nil {
			return nil, err
		}
		info.Stations = append(info.Stations, station)
	}

	for i, el := range root.FindElements("./links/link") {
		link, err := parseLink(el, fmt.Sprintf("links/link[%d]", i))
		if err != nil {
			return nil, err
		}
		info.Links = append(info.Links, link)
	}

	for i, el := range root.FindElements("./changes/change") {
		transfer, err := parseTransfer(el, fmt.Sprintf("changes/change[%d]", i))
		if err != nil {
			return nil, err
		}
		info.Transfers = append(info.Transfers, transfer)
	}

	p.logger.Debug("parsed line document",
		"line", info.Line.Name,
		"stations", len(info.Stations),
		"links", len(info.Links),
		"transfers", len(info.Transfers),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return info, nil
}

func (p *Parser) ParseLineInfoBytes(data []byte) (*domain.LineInfo, error) {
	return p.ParseLineInfo(bytes.NewReader(data))
}

// LoadLineInfo reads and parses a line-data file and returns its fingerprint.
func (p *Parser) LoadLineInfo(path string) (*domain.LineInfo, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read line document: %w", err)
	}
	info, err := p.ParseLineInfoBytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", path, err)
	}
	return info, Fingerprint(data), nil
}

func parseLine(bag Bag, path string) domain.Line {
	f := newFields(bag, path)
	return domain.Line{
		Name:  f.str("name", ""),
		Color: f.str("color", ""),
		Code:  f.str("code", ""),
	}
}

func parseStation(el *etree.Element, path string) (domain.Station, error) {
	f := newFields(attrBag{el}, path)
	station := domain.Station{
		Index: f.integer("idx", -1),
		Name:  f.str("name", ""),
		Position: domain.Position{
			Latitude:  f.float("latitude", 0),
			Longitude: f.float("longitude", 0),
		},
		Code: f.str("code", ""),
	}
	return station, f.err
}

func parseLink(el *etree.Element, path string) (domain.Link, error) {
	f := newFields(attrBag{el}, path)
	link := domain.Link{
		Begin:      f.requiredInt("begin-idx"),
		End:        f.requiredInt("end-idx"),
		Kilometers: f.requiredFloat("kilometers"),
		Minutes:    f.requiredInt("minutes"),
	}
	return link, f.err
}

func parseTransfer(el *etree.Element, path string) (domain.Transfer, error) {
	f := newFields(attrBag{el}, path)
	idx := f.requiredInt("idx")
	if f.err != nil {
		return domain.Transfer{}, f.err
	}

	lineEl := el.SelectElement("line")
	if lineEl == nil {
		return domain.Transfer{}, &DocumentError{Path: path + "/line", Err: errMissing}
	}
	stationEl := el.SelectElement("station")
	if stationEl == nil {
		return domain.Transfer{}, &DocumentError{Path: path + "/station", Err: errMissing}
	}

	station, err := parseStation(stationEl, path+"/station")
	if err != nil {
		return domain.Transfer{}, err
	}

	return domain.Transfer{
		Index:   idx,
		Line:    parseLine(attrBag{lineEl}, path+"/line"),
		Station: station,
	}, nil
}
