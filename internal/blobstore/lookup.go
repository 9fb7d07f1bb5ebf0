package blobstore

import (
	"errors"
	"fmt"
)

// Lookup finds the index line named name by binary search over the byte
// offsets of the index region.
//
// A seek to an arbitrary offset usually lands inside a line, so every probe
// discards the line it landed in and takes the following one as the
// candidate. The first index line can never be a candidate that way and is
// checked before the search starts.
//
// Names are compared byte-wise. Behavior for stores holding duplicate names
// is undefined.
func Lookup(s *Store, name string) (Entry, error) {
	indexOffset, err := s.IndexOffset()
	if err != nil {
		return Entry{}, err
	}

	r, err := s.lineReader(indexOffset)
	if err != nil {
		return Entry{}, err
	}
	first, err := readLine(r)
	if err != nil {
		return Entry{}, err
	}
	if first == "" {
		return Entry{}, ErrEntryNotFound
	}
	if e, ok, err := matchLine(first, name); err != nil || ok {
		return e, err
	}

	beg, end := indexOffset, s.Size
	for beg < end {
		mid := beg + (end-beg)/2
		line, err := s.lineAfter(mid)
		if err != nil {
			return Entry{}, err
		}
		if line == "" {
			// Landed in the last line; everything left is before mid.
			end = mid - 1
			continue
		}

		candidate, err := parseName(line)
		if err != nil {
			return Entry{}, err
		}
		switch {
		case candidate > name:
			end = mid - 1
		case candidate < name:
			beg = mid + 1
		default:
			return ParseIndexLine(line)
		}
	}

	// The range narrowed to nothing: beg lies in the line before the only
	// place the name can still be.
	line, err := s.lineAfter(beg)
	if err != nil {
		return Entry{}, err
	}
	if line == "" {
		return Entry{}, ErrEntryNotFound
	}
	e, ok, err := matchLine(line, name)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

// LookupAny searches the stores in order and returns the first store holding name.
func LookupAny(stores []*Store, name string) (*Store, Entry, error) {
	for _, s := range stores {
		e, err := Lookup(s, name)
		if err == nil {
			return s, e, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, Entry{}, fmt.Errorf("lookup in %s: %w", s.ID, err)
		}
	}
	return nil, Entry{}, ErrEntryNotFound
}

// lineAfter seeks to pos, discards the rest of the line found there and
// returns the next complete line, or "" at end of file.
func (s *Store) lineAfter(pos int64) (string, error) {
	r, err := s.lineReader(pos)
	if err != nil {
		return "", err
	}
	if _, err := readLine(r); err != nil {
		return "", err
	}
	return readLine(r)
}

func matchLine(line, name string) (Entry, bool, error) {
	candidate, err := parseName(line)
	if err != nil {
		return Entry{}, false, err
	}
	if candidate != name {
		return Entry{}, false, nil
	}
	e, err := ParseIndexLine(line)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}
