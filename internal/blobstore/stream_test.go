package blobstore_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asad/blobreader/internal/blobstore"
	"github.com/asad/blobreader/internal/blobstore/storetest"
)

// recordingSink keeps everything a stream reports.
type recordingSink struct {
	bytes.Buffer
	metas []blobstore.EntryMeta
}

func (s *recordingSink) WriteMeta(meta blobstore.EntryMeta) {
	s.metas = append(s.metas, meta)
}

var identityDefaults = blobstore.Defaults{MediaType: "application/octet-stream", Encoding: blobstore.EncodingIdentity}

func streamFixture(t *testing.T) (*blobstore.Store, []byte) {
	t.Helper()

	original := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog\n", 500))
	path := storetest.Build(t, t.TempDir(), "stream",
		storetest.Blob{Name: "plain.txt", Data: original, Encoding: blobstore.EncodingIdentity, MediaType: "text/plain"},
		storetest.Blob{Name: "packed.json", Data: original, Compress: true, MediaType: "application/json"},
		storetest.Blob{Name: "bare", Data: []byte("0123456789")},
	)
	return storetest.Open(t, path), original
}

func TestStreamEntryRaw(t *testing.T) {
	s, original := streamFixture(t)
	e, err := blobstore.Lookup(s, "plain.txt")
	require.NoError(t, err)

	sink := &recordingSink{}
	err = blobstore.StreamEntry(s, e, sink, blobstore.AcceptNone, blobstore.Options{Defaults: identityDefaults, ChunkSize: 7})
	require.NoError(t, err)

	assert.Equal(t, original, sink.Bytes())
	require.Len(t, sink.metas, 1)
	assert.Equal(t, blobstore.EntryMeta{
		MediaType:     "text/plain",
		Encoding:      blobstore.EncodingIdentity,
		ContentLength: int64(len(original)),
		LastModified:  s.ModTime,
	}, sink.metas[0])
}

func TestStreamEntryGzipAccepted(t *testing.T) {
	s, _ := streamFixture(t)
	e, err := blobstore.Lookup(s, "packed.json")
	require.NoError(t, err)

	sink := &recordingSink{}
	err = blobstore.StreamEntry(s, e, sink, blobstore.AcceptAll, blobstore.Options{Defaults: identityDefaults})
	require.NoError(t, err)

	raw, err := io.ReadAll(blobstore.EntryReader(s, e))
	require.NoError(t, err)
	assert.Equal(t, raw, sink.Bytes())
	assert.Equal(t, e.Length, int64(sink.Len()))

	require.Len(t, sink.metas, 1)
	assert.Equal(t, blobstore.EncodingGzip, sink.metas[0].Encoding)
	assert.Equal(t, e.Length, sink.metas[0].ContentLength)
	assert.False(t, sink.metas[0].Decompressed)
}

func TestStreamEntryGzipDecompressed(t *testing.T) {
	s, original := streamFixture(t)
	e, err := blobstore.Lookup(s, "packed.json")
	require.NoError(t, err)

	scratch := t.TempDir()
	sink := &recordingSink{}
	acceptsBrOnly := func(enc string) bool { return enc == "br" }
	err = blobstore.StreamEntry(s, e, sink, acceptsBrOnly, blobstore.Options{Defaults: identityDefaults, ScratchDir: scratch})
	require.NoError(t, err)

	assert.Equal(t, original, sink.Bytes())
	require.Len(t, sink.metas, 1)
	assert.Equal(t, blobstore.EncodingIdentity, sink.metas[0].Encoding)
	assert.Equal(t, int64(blobstore.UnknownLength), sink.metas[0].ContentLength)
	assert.Equal(t, "application/json", sink.metas[0].MediaType)
	assert.True(t, sink.metas[0].Decompressed)

	left, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, left, "scratch files must be removed")
}

func TestStreamEntryAppliesDefaults(t *testing.T) {
	s, _ := streamFixture(t)
	e, err := blobstore.Lookup(s, "bare")
	require.NoError(t, err)
	require.Empty(t, e.Encoding)

	sink := &recordingSink{}
	defaults := blobstore.Defaults{MediaType: "application/x-test", Encoding: blobstore.EncodingIdentity}
	err = blobstore.StreamEntry(s, e, sink, blobstore.AcceptNone, blobstore.Options{Defaults: defaults})
	require.NoError(t, err)

	assert.Equal(t, "0123456789", sink.String())
	assert.Equal(t, "application/x-test", sink.metas[0].MediaType)
	assert.Equal(t, blobstore.EncodingIdentity, sink.metas[0].Encoding)
}

func TestStreamEntryTruncatedStore(t *testing.T) {
	s, _ := streamFixture(t)
	e := blobstore.Entry{Name: "ghost", Offset: s.Size - 4, Length: 100, Encoding: blobstore.EncodingIdentity}

	sink := &recordingSink{}
	err := blobstore.StreamEntry(s, e, sink, blobstore.AcceptAll, blobstore.Options{})
	var ioErr *blobstore.IOError
	require.True(t, errors.As(err, &ioErr), "expected IOError, got %v", err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestStreamEntryTruncatedGzipCleansScratch(t *testing.T) {
	s, _ := streamFixture(t)
	e := blobstore.Entry{Name: "ghost", Offset: s.Size - 4, Length: 100, Encoding: blobstore.EncodingGzip}

	scratch := t.TempDir()
	sink := &recordingSink{}
	err := blobstore.StreamEntry(s, e, sink, blobstore.AcceptNone, blobstore.Options{ScratchDir: scratch})
	require.Error(t, err)
	assert.Empty(t, sink.metas)

	left, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestStreamEntryUnusableScratchDir(t *testing.T) {
	s, _ := streamFixture(t)
	e, err := blobstore.Lookup(s, "packed.json")
	require.NoError(t, err)

	sink := &recordingSink{}
	opts := blobstore.Options{ScratchDir: filepath.Join(t.TempDir(), "does", "not", "exist")}
	err = blobstore.StreamEntry(s, e, sink, blobstore.AcceptNone, opts)
	var ioErr *blobstore.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "create scratch file", ioErr.Op)
	assert.Zero(t, sink.Len())
}

func TestDecodedReader(t *testing.T) {
	s, original := streamFixture(t)

	for _, name := range []string{"plain.txt", "packed.json"} {
		e, err := blobstore.Lookup(s, name)
		require.NoError(t, err)

		rc, err := blobstore.DecodedReader(s, e, identityDefaults)
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, original, got, name)
	}
}

func TestEntryReaderTruncatedStore(t *testing.T) {
	s, _ := streamFixture(t)
	e := blobstore.Entry{Name: "ghost", Offset: s.Size - 4, Length: 100, Encoding: blobstore.EncodingIdentity}

	got, err := io.ReadAll(blobstore.EntryReader(s, e))
	var ioErr *blobstore.IOError
	require.True(t, errors.As(err, &ioErr), "expected IOError, got %v", err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Len(t, got, 4)

	rc, err := blobstore.DecodedReader(s, e, identityDefaults)
	require.NoError(t, err)
	defer rc.Close()
	_, err = io.ReadAll(rc)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
