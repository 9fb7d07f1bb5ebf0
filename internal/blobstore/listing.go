package blobstore

import (
	"errors"
	"fmt"
	"strings"
)

// EndOfIndex is the Next value of a page that reached the end of the index.
const EndOfIndex = -1

// Page is a window over the index in index order.
type Page struct {
	Entries []Entry `json:"entries"`
	FromIdx int     `json:"fromIdx"`
	Size    int     `json:"size"`

	// Next is the FromIdx of the following page, or EndOfIndex.
	Next int `json:"next"`
}

// HasMore reports whether another page follows.
func (p Page) HasMore() bool {
	return p.Next != EndOfIndex
}

// errStopWalk ends a Walk early without reporting an error.
var errStopWalk = errors.New("stop walk")

// Walk calls fn for every index line in order.
// Returning an error from fn stops the walk and returns that error.
func Walk(s *Store, fn func(e Entry) error) error {
	indexOffset, err := s.IndexOffset()
	if err != nil {
		return err
	}
	r, err := s.lineReader(indexOffset)
	if err != nil {
		return err
	}

	for {
		line, err := readLine(r)
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
		e, err := ParseIndexLine(line)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

// ListEntries returns up to size entries starting at position fromIdx.
//
// With a nameFilter only entries whose name contains it, ignoring case, are
// considered, and positions count matching entries only. A filtered listing
// therefore pages through the filtered sequence exactly like an unfiltered
// listing pages through the whole index.
//
// Next is fromIdx+size when at least one further entry exists and EndOfIndex
// otherwise.
func ListEntries(s *Store, fromIdx, size int, nameFilter string) (Page, error) {
	if fromIdx < 0 {
		return Page{}, fmt.Errorf("negative fromIdx %d: %w", fromIdx, ErrBadRequest)
	}
	if size <= 0 {
		return Page{}, fmt.Errorf("page size %d: %w", size, ErrBadRequest)
	}

	page := Page{
		Entries: []Entry{},
		FromIdx: fromIdx,
		Size:    size,
		Next:    EndOfIndex,
	}
	filter := strings.ToLower(nameFilter)
	windowEnd := fromIdx + size

	pos := 0
	err := Walk(s, func(e Entry) error {
		if filter != "" && !strings.Contains(strings.ToLower(e.Name), filter) {
			return nil
		}
		if pos >= windowEnd {
			page.Next = windowEnd
			return errStopWalk
		}
		if pos >= fromIdx {
			page.Entries = append(page.Entries, e)
		}
		pos++
		return nil
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return Page{}, err
	}
	return page, nil
}
