package blobstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

const (
	// HeaderLength is the size of the header line, trailing newline included.
	HeaderLength = 32

	// HeaderPrefix starts the header line.
	HeaderPrefix = "indexOffset="

	// EncodingGzip marks entries whose stored bytes are gzip compressed.
	EncodingGzip = "gzip"

	// EncodingIdentity marks entries stored as-is.
	EncodingIdentity = "identity"
)

var headerPattern = regexp.MustCompile(`^indexOffset=([0-9]+)\n$`)

// Entry is one index line: a named byte range inside the blob region.
type Entry struct {
	Name      string `json:"name"`
	Offset    int64  `json:"offset"`
	Length    int64  `json:"length"`
	Encoding  string `json:"encoding,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

// String renders the entry as an index line without the trailing newline.
func (e Entry) String() string {
	return fmt.Sprintf("%s=%d;%d;%s;%s", e.Name, e.Offset, e.Length, e.Encoding, e.MediaType)
}

// Defaults fill in the encoding and media type of entries that leave them empty.
type Defaults struct {
	MediaType string
	Encoding  string
}

// StandardDefaults are used when no other defaults are configured.
var StandardDefaults = Defaults{
	MediaType: "application/octet-stream",
	Encoding:  EncodingGzip,
}

// Apply returns e with empty fields replaced by the defaults.
func (d Defaults) Apply(e Entry) Entry {
	if e.MediaType == "" {
		e.MediaType = d.MediaType
	}
	if e.Encoding == "" {
		e.Encoding = d.Encoding
	}
	return e
}

// FormatHeader renders the header line that points at indexOffset.
func FormatHeader(indexOffset int64) string {
	return fmt.Sprintf("%s%0*d\n", HeaderPrefix, HeaderLength-len(HeaderPrefix)-1, indexOffset)
}

// ReadIndexOffset seeks to the start of r and parses the header line.
func ReadIndexOffset(r io.ReadSeeker) (int64, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, ioErr("seek header", err)
	}

	// One byte more than a valid header so an overlong line is detected
	// without reading the whole file.
	br := bufio.NewReaderSize(io.LimitReader(r, HeaderLength+1), HeaderLength+1)
	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, ioErr("read header", err)
	}
	if line == "" {
		return 0, formatErr("missing header")
	}
	if len(line) != HeaderLength {
		return 0, formatErr("bad header length")
	}

	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, formatErr("bad header syntax")
	}
	offset, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, formatErr("bad header syntax")
	}
	return offset, nil
}

// ParseIndexLine splits an index line into its fields.
// A trailing newline is ignored; the media type keeps any ';' it contains.
func ParseIndexLine(line string) (Entry, error) {
	line = trimLine(line)

	name, values, ok := strings.Cut(line, "=")
	if !ok {
		return Entry{}, &FormatError{Reason: "index line without name", Line: line}
	}

	fields := strings.SplitN(values, ";", 4)
	if len(fields) != 4 {
		return Entry{}, &FormatError{Reason: "index line needs 4 fields", Line: line}
	}

	offset, err := strconv.ParseUint(fields[0], 10, 63)
	if err != nil {
		return Entry{}, &FormatError{Reason: "bad offset", Line: line}
	}
	length, err := strconv.ParseUint(fields[1], 10, 63)
	if err != nil {
		return Entry{}, &FormatError{Reason: "bad length", Line: line}
	}

	return Entry{
		Name:      name,
		Offset:    int64(offset),
		Length:    int64(length),
		Encoding:  fields[2],
		MediaType: fields[3],
	}, nil
}

// parseName returns the name part of an index line.
func parseName(line string) (string, error) {
	line = trimLine(line)
	name, _, ok := strings.Cut(line, "=")
	if !ok {
		return "", &FormatError{Reason: "index line without name", Line: line}
	}
	return name, nil
}

func trimLine(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
