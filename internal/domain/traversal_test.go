package domain

import (
	"slices"
	"testing"
)

func threeStationLine() *LineInfo {
	return &LineInfo{
		Line: Line{Name: "Ginza", Color: "#f39700", Code: "G"},
		Stations: []Station{
			{Index: 0, Name: "Shibuya"},
			{Index: 1, Name: "Omotesando"},
			{Index: 2, Name: "Gaiemmae"},
		},
		Links: []Link{
			{Begin: 0, End: 1, Kilometers: 5.0, Minutes: 10},
			{Begin: 1, End: 2, Kilometers: 3.0, Minutes: 8},
		},
	}
}

func fiveStationLine() *LineInfo {
	li := &LineInfo{Line: Line{Name: "Marunouchi", Color: "#f62e36"}}
	for i := 0; i < 5; i++ {
		li.Stations = append(li.Stations, Station{Index: i})
	}
	for i := 0; i < 4; i++ {
		li.Links = append(li.Links, Link{Begin: i, End: i + 1, Kilometers: float64(i) + 0.5, Minutes: i + 1})
	}
	return li
}

func TestLinksBetweenAscending(t *testing.T) {
	li := threeStationLine()

	got := li.CollectLinks(0, 2)
	want := []Link{
		{Begin: 0, End: 1, Kilometers: 5.0, Minutes: 10},
		{Begin: 1, End: 2, Kilometers: 3.0, Minutes: 8},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("LinksBetween(0, 2) = %v, want %v", got, want)
	}
}

func TestLinksBetweenDescending(t *testing.T) {
	li := threeStationLine()

	got := li.CollectLinks(2, 0)
	want := []Link{
		{Begin: 2, End: 1, Kilometers: 3.0, Minutes: 8},
		{Begin: 1, End: 0, Kilometers: 5.0, Minutes: 10},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("LinksBetween(2, 0) = %v, want %v", got, want)
	}
}

func TestLinksBetweenSubRange(t *testing.T) {
	li := fiveStationLine()

	tests := []struct {
		name       string
		begin, end int
		wantBegins []int
	}{
		{"inner ascending", 1, 3, []int{1, 2}},
		{"inner descending", 3, 1, []int{3, 2}},
		{"single step", 2, 3, []int{2}},
		{"negative end", 0, -1, []int{0, 1, 2, 3}},
		{"negative begin", -1, 0, []int{4, 3, 2, 1}},
		{"empty", 2, 2, nil},
		{"empty after wrap", -1, 4, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var begins []int
			for link := range li.LinksBetween(tt.begin, tt.end) {
				begins = append(begins, link.Begin)
			}
			if !slices.Equal(begins, tt.wantBegins) {
				t.Errorf("LinksBetween(%d, %d) begins = %v, want %v", tt.begin, tt.end, begins, tt.wantBegins)
			}
		})
	}
}

func TestLinksBetweenDirectionalSymmetry(t *testing.T) {
	li := fiveStationLine()

	for begin := 0; begin < 5; begin++ {
		for end := 0; end < 5; end++ {
			if begin == end {
				continue
			}
			forward := li.CollectLinks(begin, end)
			backward := li.CollectLinks(end, begin)

			rebuilt := make([]Link, 0, len(backward))
			for i := len(backward) - 1; i >= 0; i-- {
				rebuilt = append(rebuilt, backward[i].Reverse())
			}
			if !slices.Equal(forward, rebuilt) {
				t.Errorf("LinksBetween(%d, %d) = %v, reversed LinksBetween(%d, %d) = %v",
					begin, end, forward, end, begin, rebuilt)
			}
		}
	}
}

func TestLinksBetweenIsRestartable(t *testing.T) {
	li := threeStationLine()
	seq := li.LinksBetween(0, 2)

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	if first != 2 || second != 2 {
		t.Fatalf("expected two links on each pass, got %d and %d", first, second)
	}
}

func TestLinksBetweenEarlyBreak(t *testing.T) {
	li := fiveStationLine()

	count := 0
	for range li.LinksBetween(0, 4) {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Fatalf("expected to stop after 2 links, got %d", count)
	}
}

func TestStationsBetween(t *testing.T) {
	li := fiveStationLine()

	tests := []struct {
		name       string
		begin, end int
		want       []int
	}{
		{"full ascending", 0, -1, []int{0, 1, 2, 3, 4}},
		{"full descending", -1, 0, []int{4, 3, 2, 1, 0}},
		{"inner ascending", 1, 3, []int{1, 2, 3}},
		{"inner descending", 3, 1, []int{3, 2, 1}},
		{"single step", 3, 4, []int{3, 4}},
		{"empty", 1, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := li.CollectStations(tt.begin, tt.end)
			if !slices.Equal(got, tt.want) {
				t.Errorf("StationsBetween(%d, %d) = %v, want %v", tt.begin, tt.end, got, tt.want)
			}
		})
	}
}

func TestStationsBetweenDoesNotOvershoot(t *testing.T) {
	li := fiveStationLine()

	got := li.CollectStations(0, 2)
	want := []int{0, 1, 2}
	if !slices.Equal(got, want) {
		t.Fatalf("StationsBetween(0, 2) = %v, want %v", got, want)
	}
}

func TestTraversalOnEmptyLine(t *testing.T) {
	li := &LineInfo{}

	if got := li.CollectLinks(0, -1); len(got) != 0 {
		t.Errorf("expected no links, got %v", got)
	}
	if got := li.CollectStations(0, -1); len(got) != 0 {
		t.Errorf("expected no stations, got %v", got)
	}
}
