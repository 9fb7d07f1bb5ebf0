package blob

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/asad/blobreader/internal/blobstore"
)

// StoreInfo describes one available blob store file.
type StoreInfo struct {
	// ID addresses the store in requests; the file is <DataDir>/<ID>.blob.
	ID string `json:"id"`

	// Label is the display name of the store.
	Label string `json:"label"`

	Size         int64     `json:"size"`
	SizeHuman    string    `json:"sizeHuman"`
	LastModified time.Time `json:"lastModified"`
}

func newStoreInfo(id, label string, size int64, modTime time.Time) StoreInfo {
	return StoreInfo{
		ID:           id,
		Label:        label,
		Size:         size,
		SizeHuman:    humanize.IBytes(uint64(size)),
		LastModified: modTime,
	}
}

// StoreListResult is the response of the store listing.
type StoreListResult struct {
	Stores []StoreInfo `json:"stores"`
}

// EntryInfo is an index entry with encoding and media type resolved.
type EntryInfo struct {
	Name      string `json:"name"`
	Length    int64  `json:"length"`
	Encoding  string `json:"encoding"`
	MediaType string `json:"mediaType"`
}

// EntryListResult is one page of the entry listing of a store.
type EntryListResult struct {
	Store      StoreInfo   `json:"store"`
	Entries    []EntryInfo `json:"entries"`
	NameFilter string      `json:"nameFilter,omitempty"`
	FromIdx    int         `json:"fromIdx"`
	Size       int         `json:"size"`

	// NextFromIdx is the fromIdx of the next page, or -1 after the last page.
	NextFromIdx int `json:"nextFromIdx"`
}

func newEntryListResult(s *blobstore.Store, page blobstore.Page, nameFilter string, d blobstore.Defaults) EntryListResult {
	entries := make([]EntryInfo, 0, len(page.Entries))
	for _, e := range page.Entries {
		e = d.Apply(e)
		entries = append(entries, EntryInfo{
			Name:      e.Name,
			Length:    e.Length,
			Encoding:  e.Encoding,
			MediaType: e.MediaType,
		})
	}

	return EntryListResult{
		Store:       newStoreInfo(s.ID, s.Label, s.Size, s.ModTime),
		Entries:     entries,
		NameFilter:  nameFilter,
		FromIdx:     page.FromIdx,
		Size:        page.Size,
		NextFromIdx: page.Next,
	}
}
