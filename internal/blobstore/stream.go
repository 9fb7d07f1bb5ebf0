package blobstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
)

// DefaultChunkSize is the read size used when streaming raw entry bytes.
const DefaultChunkSize = 4096

// UnknownLength is reported as ContentLength when the body size is not known up front.
const UnknownLength = -1

// AcceptFunc reports whether the receiving side accepts a content encoding.
type AcceptFunc func(encoding string) bool

// AcceptAll accepts every encoding. Streaming with it never decompresses.
func AcceptAll(string) bool { return true }

// AcceptNone accepts no encoding, so gzip entries are always decompressed.
func AcceptNone(string) bool { return false }

// EntryMeta describes the body a Sink is about to receive.
type EntryMeta struct {
	MediaType     string
	Encoding      string
	ContentLength int64
	LastModified  time.Time
	Decompressed  bool
}

// Sink receives the metadata of an entry followed by its body.
// WriteMeta is called exactly once, before the first body byte.
type Sink interface {
	io.Writer
	WriteMeta(meta EntryMeta)
}

// Options configure StreamEntry.
type Options struct {
	Defaults Defaults

	// ScratchDir holds the temporary copies made while decompressing.
	// Empty means os.TempDir().
	ScratchDir string

	// ChunkSize is the read size for raw bytes. Zero means DefaultChunkSize.
	ChunkSize int
}

func (o Options) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

// StreamEntry writes the bytes of e to sink.
//
// Entries stored gzip compressed are passed through unchanged when accepts
// allows gzip. Otherwise the compressed range is copied to a scratch file and
// decompressed from there; the resulting length is unknown, so ContentLength
// is reported as UnknownLength and the encoding as identity.
func StreamEntry(s *Store, e Entry, sink Sink, accepts AcceptFunc, opts Options) error {
	e = opts.Defaults.Apply(e)
	meta := EntryMeta{
		MediaType:     e.MediaType,
		Encoding:      e.Encoding,
		ContentLength: e.Length,
		LastModified:  s.ModTime,
	}

	if e.Encoding != EncodingGzip || accepts(EncodingGzip) {
		sink.WriteMeta(meta)
		return copyRange(s, e, sink, opts.chunkSize())
	}

	meta.Encoding = EncodingIdentity
	meta.ContentLength = UnknownLength
	meta.Decompressed = true
	return streamDecompressed(s, e, sink, meta, opts)
}

func streamDecompressed(s *Store, e Entry, sink Sink, meta EntryMeta, opts Options) (err error) {
	scratch, err := os.CreateTemp(opts.ScratchDir, "blobunzip-*")
	if err != nil {
		return ioErr("create scratch file", err)
	}
	defer func() {
		closeErr := scratch.Close()
		removeErr := os.Remove(scratch.Name())
		if err == nil {
			err = errors.Join(closeErr, removeErr)
		}
	}()

	if err := copyRange(s, e, scratch, opts.chunkSize()); err != nil {
		return err
	}
	if _, err := scratch.Seek(0, io.SeekStart); err != nil {
		return ioErr("rewind scratch file", err)
	}

	zr, err := gzip.NewReader(scratch)
	if err != nil {
		return ioErr("open gzip stream", err)
	}
	defer zr.Close()

	sink.WriteMeta(meta)
	if _, err := io.Copy(sink, zr); err != nil {
		return ioErr("decompress entry", err)
	}
	return nil
}

// copyRange forwards exactly e.Length bytes starting at e.Offset to w.
// Running out of file before that is an error, never a short body.
func copyRange(s *Store, e Entry, w io.Writer, chunkSize int) error {
	if _, err := s.f.Seek(e.Offset, io.SeekStart); err != nil {
		return ioErr("seek entry", err)
	}

	buf := make([]byte, chunkSize)
	remaining := e.Length
	for remaining > 0 {
		want := int64(len(buf))
		if remaining < want {
			want = remaining
		}
		n, err := s.f.Read(buf[:want])
		if n == 0 {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return ioErr(fmt.Sprintf("read entry %s (%d bytes missing)", e.Name, remaining), err)
		}
		if _, werr := w.Write(buf[:n]); werr != nil {
			return ioErr("write entry", werr)
		}
		remaining -= int64(n)
	}
	return nil
}

// EntryReader returns the stored bytes of e. The reader is valid until s is closed.
// A store that ends before e.Length bytes yields an IOError wrapping
// io.ErrUnexpectedEOF instead of a short read.
func EntryReader(s *Store, e Entry) io.Reader {
	return &rangeReader{
		r:         io.NewSectionReader(s.f, e.Offset, e.Length),
		name:      e.Name,
		remaining: e.Length,
	}
}

type rangeReader struct {
	r         *io.SectionReader
	name      string
	remaining int64
}

func (rr *rangeReader) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	rr.remaining -= int64(n)
	if errors.Is(err, io.EOF) && rr.remaining > 0 {
		return n, ioErr(fmt.Sprintf("read entry %s (%d bytes missing)", rr.name, rr.remaining), io.ErrUnexpectedEOF)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, ioErr("read entry", err)
	}
	return n, err
}

// DecodedReader returns the content of e with gzip encoding removed.
// The caller closes the returned reader; closing it does not close s.
func DecodedReader(s *Store, e Entry, d Defaults) (io.ReadCloser, error) {
	e = d.Apply(e)
	raw := EntryReader(s, e)
	if e.Encoding != EncodingGzip {
		return io.NopCloser(raw), nil
	}
	zr, err := gzip.NewReader(raw)
	if err != nil {
		return nil, ioErr("open gzip stream", err)
	}
	return zr, nil
}
