package domain

import "iter"

// LinksBetween yields the links walked from station begin to station end.
//
// Ascending ranges scan links in document order and yield those whose begin
// index lies in [begin, end). Descending ranges scan the reversed chain with
// each link reversed, skip links starting above begin and stop at the first
// one starting at or below end. Equal endpoints yield nothing. Negative
// indices are normalized first. The sequence may be ranged over repeatedly.
func (li *LineInfo) LinksBetween(begin, end int) iter.Seq[Link] {
	n := li.StationCount()
	begin = NormalizeIndex(begin, n)
	end = NormalizeIndex(end, n)

	return func(yield func(Link) bool) {
		switch {
		case begin == end:
			return
		case begin < end:
			for _, link := range li.Links {
				if link.Begin < begin {
					continue
				}
				if link.Begin >= end {
					return
				}
				if !yield(link) {
					return
				}
			}
		default:
			for i := len(li.Links) - 1; i >= 0; i-- {
				link := li.Links[i].Reverse()
				if link.Begin > begin {
					continue
				}
				if link.Begin <= end {
					return
				}
				if !yield(link) {
					return
				}
			}
		}
	}
}

// StationsBetween yields the station indices visited from begin to end: the
// begin index of every link from LinksBetween, then the end index of the last
// one. A range that walks no links visits no stations.
func (li *LineInfo) StationsBetween(begin, end int) iter.Seq[int] {
	links := li.LinksBetween(begin, end)

	return func(yield func(int) bool) {
		var last Link
		walked := false
		for link := range links {
			if !yield(link.Begin) {
				return
			}
			last = link
			walked = true
		}
		if walked {
			yield(last.End)
		}
	}
}

// CollectLinks drains LinksBetween into a slice.
func (li *LineInfo) CollectLinks(begin, end int) []Link {
	var result []Link
	for link := range li.LinksBetween(begin, end) {
		result = append(result, link)
	}
	return result
}

// CollectStations drains StationsBetween into a slice.
func (li *LineInfo) CollectStations(begin, end int) []int {
	var result []int
	for idx := range li.StationsBetween(begin, end) {
		result = append(result, idx)
	}
	return result
}
