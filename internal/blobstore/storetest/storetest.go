// Package storetest builds blob store files for tests.
package storetest

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/asad/blobreader/internal/blobstore"
)

// Blob is one entry to place in a test store.
type Blob struct {
	Name      string
	Data      []byte
	Encoding  string
	MediaType string

	// Compress gzips Data before storing it and sets Encoding to gzip.
	Compress bool
}

// Build writes a well-formed store named id+".blob" into dir and returns its path.
// Index lines are sorted by name regardless of the order of blobs.
func Build(t testing.TB, dir, id string, blobs ...Blob) string {
	t.Helper()

	content, _ := Encode(t, blobs...)
	path := filepath.Join(dir, id+".blob")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

// Encode returns the bytes of a store holding blobs together with its index entries.
func Encode(t testing.TB, blobs ...Blob) ([]byte, []blobstore.Entry) {
	t.Helper()

	var data bytes.Buffer
	entries := make([]blobstore.Entry, 0, len(blobs))
	for _, b := range blobs {
		payload := b.Data
		encoding := b.Encoding
		if b.Compress {
			payload = Gzip(t, b.Data)
			encoding = blobstore.EncodingGzip
		}
		entries = append(entries, blobstore.Entry{
			Name:      b.Name,
			Offset:    int64(blobstore.HeaderLength + data.Len()),
			Length:    int64(len(payload)),
			Encoding:  encoding,
			MediaType: b.MediaType,
		})
		data.Write(payload)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var out bytes.Buffer
	out.WriteString(blobstore.FormatHeader(int64(blobstore.HeaderLength + data.Len())))
	out.Write(data.Bytes())
	for _, e := range entries {
		out.WriteString(e.String())
		out.WriteByte('\n')
	}
	return out.Bytes(), entries
}

// WriteFile writes raw content as a store file, for malformed-store tests.
func WriteFile(t testing.TB, dir, id string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, id+".blob")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

// Open opens the store at path and closes it when the test ends.
func Open(t testing.TB, path string) *blobstore.Store {
	t.Helper()

	s, err := blobstore.Open(path, filepath.Base(path), filepath.Base(path))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Gzip compresses data.
func Gzip(t testing.TB, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
