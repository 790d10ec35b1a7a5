package domain

import "github.com/paulmach/orb"

// Position is a station's geographic location.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point returns the position in orb's (lon, lat) order.
func (p Position) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// Station is a stop on a line. Index is -1 when the source document omits it.
type Station struct {
	Index    int      `json:"idx"`
	Name     string   `json:"name"`
	Position Position `json:"position"`
	Code     string   `json:"code,omitempty"`
}

func (s Station) HasIndex(idx int) bool {
	return s.Index == idx
}

func (s Station) HasCode() bool {
	return s.Code != ""
}

// Link is a directed edge between two consecutive stations.
type Link struct {
	Begin      int     `json:"beginIdx"`
	End        int     `json:"endIdx"`
	Kilometers float64 `json:"kilometers"`
	Minutes    int     `json:"minutes"`
}

// Reverse returns the same edge travelled the other way.
func (l Link) Reverse() Link {
	return Link{
		Begin:      l.End,
		End:        l.Begin,
		Kilometers: l.Kilometers,
		Minutes:    l.Minutes,
	}
}

// Indices returns the begin and end station indices in travel order.
func (l Link) Indices() [2]int {
	return [2]int{l.Begin, l.End}
}

// Line identifies a transit line.
type Line struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Code  string `json:"code,omitempty"`
}

func (l Line) HasCode() bool {
	return l.Code != ""
}

// Transfer is a change to another line at the station with index Index.
type Transfer struct {
	Index   int     `json:"idx"`
	Line    Line    `json:"line"`
	Station Station `json:"station"`
}

func (t Transfer) HasIndex(idx int) bool {
	return t.Index == idx
}

// HasCode reports whether the transfer is drawn as a coded mark: both the
// connecting line and the connecting station must carry a code.
func (t Transfer) HasCode() bool {
	return t.Line.HasCode() && t.Station.HasCode()
}

// LineInfo is one loaded line document. It is never mutated after load.
type LineInfo struct {
	Line      Line       `json:"line"`
	Stations  []Station  `json:"stations"`
	Links     []Link     `json:"links"`
	Transfers []Transfer `json:"transfers"`
}

// StationCount is the N used to wrap negative indices.
func (li *LineInfo) StationCount() int {
	return len(li.Stations)
}

// StationsAt returns every station carrying idx. Negative indices count from
// the end of the station list. Degenerate documents may yield zero or several.
func (li *LineInfo) StationsAt(idx int) []Station {
	idx = NormalizeIndex(idx, li.StationCount())
	var result []Station
	for _, s := range li.Stations {
		if s.HasIndex(idx) {
			result = append(result, s)
		}
	}
	return result
}

// StationName returns the name of the first station with idx, or "".
func (li *LineInfo) StationName(idx int) string {
	stations := li.StationsAt(idx)
	if len(stations) == 0 {
		return ""
	}
	return stations[0].Name
}

// TransfersAt returns the transfers attached to station idx in document order.
func (li *LineInfo) TransfersAt(idx int) []Transfer {
	var result []Transfer
	for _, t := range li.Transfers {
		if t.HasIndex(idx) {
			result = append(result, t)
		}
	}
	return result
}
