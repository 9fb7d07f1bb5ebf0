package blobstore_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asad/blobreader/internal/blobstore"
)

func TestFormatHeader(t *testing.T) {
	h := blobstore.FormatHeader(64)
	assert.Equal(t, "indexOffset=0000000000000000064\n", h)
	assert.Len(t, h, blobstore.HeaderLength)
}

func TestReadIndexOffset(t *testing.T) {
	content := blobstore.FormatHeader(1234) + "trailing blob bytes"
	offset, err := blobstore.ReadIndexOffset(bytes.NewReader([]byte(content)))
	require.NoError(t, err)
	assert.Equal(t, int64(1234), offset)
}

func TestReadIndexOffsetRejectsBadHeaders(t *testing.T) {
	tests := []struct {
		name    string
		content string
		reason  string
	}{
		{"empty file", "", "missing header"},
		{"31 bytes", "indexOffset=" + strings.Repeat("0", 18) + "\n", "bad header length"},
		{"33 bytes", "indexOffset=" + strings.Repeat("0", 20) + "\nrest", "bad header length"},
		{"no newline", strings.Repeat("x", 100), "bad header length"},
		{"short file without newline", "indexOffset=12", "bad header length"},
		{"wrong prefix", "indexOffsex=" + strings.Repeat("0", 19) + "\n", "bad header syntax"},
		{"non digit", "indexOffset=" + strings.Repeat("0", 18) + "x\n", "bad header syntax"},
		{"no digits", "indexOffset" + strings.Repeat(" ", 20) + "\n", "bad header syntax"},
		{"overflow", "indexOffset=" + strings.Repeat("9", 19) + "\n", "bad header syntax"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := blobstore.ReadIndexOffset(bytes.NewReader([]byte(tt.content)))
			var formatErr *blobstore.FormatError
			require.True(t, errors.As(err, &formatErr), "expected FormatError, got %v", err)
			assert.Equal(t, tt.reason, formatErr.Reason)
		})
	}
}

func TestParseIndexLine(t *testing.T) {
	e, err := blobstore.ParseIndexLine("docs/a.json=32;17;gzip;application/json; charset=utf-8\n")
	require.NoError(t, err)
	assert.Equal(t, blobstore.Entry{
		Name:      "docs/a.json",
		Offset:    32,
		Length:    17,
		Encoding:  "gzip",
		MediaType: "application/json; charset=utf-8",
	}, e)

	e, err = blobstore.ParseIndexLine("b=0;0;;")
	require.NoError(t, err)
	assert.Equal(t, blobstore.Entry{Name: "b"}, e)
	assert.Equal(t, "b=0;0;;", e.String())
}

func TestParseIndexLineRejectsMalformed(t *testing.T) {
	for _, line := range []string{
		"no-separator\n",
		"a=1;2;gzip\n",
		"a=x;2;;\n",
		"a=1;-2;;\n",
	} {
		_, err := blobstore.ParseIndexLine(line)
		var formatErr *blobstore.FormatError
		assert.True(t, errors.As(err, &formatErr), "line %q: %v", line, err)
	}
}

func TestDefaultsApply(t *testing.T) {
	d := blobstore.Defaults{MediaType: "application/json", Encoding: "gzip"}

	e := d.Apply(blobstore.Entry{Name: "a"})
	assert.Equal(t, "application/json", e.MediaType)
	assert.Equal(t, "gzip", e.Encoding)

	e = d.Apply(blobstore.Entry{Name: "a", Encoding: "identity", MediaType: "text/plain"})
	assert.Equal(t, "text/plain", e.MediaType)
	assert.Equal(t, "identity", e.Encoding)
}
