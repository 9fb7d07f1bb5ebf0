package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/asad/blobreader/internal/blobstore"
)

// StoreExtension is the file extension of blob store files.
const StoreExtension = ".blob"

// StoreCatalog maps store ids to store files.
// This abstraction keeps the HTTP service away from filesystem paths.
type StoreCatalog interface {
	// Resolve opens the store with the given id. An empty id selects the
	// default store. The caller closes the returned store.
	Resolve(ctx context.Context, id string) (*blobstore.Store, error)

	// List returns the stores available for browsing, sorted by label.
	List(ctx context.Context) ([]StoreInfo, error)
}

// FileCatalog serves stores stored as <baseDir>/<id>.blob.
type FileCatalog struct {
	baseDir      string
	defaultStore string
	autoIndex    bool
}

// NewFileCatalog creates a catalog over baseDir.
// With autoIndex every valid store file in baseDir is listed; otherwise only
// the default store is.
func NewFileCatalog(baseDir, defaultStore string, autoIndex bool) (*FileCatalog, error) {
	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", baseDir)
	}
	if defaultStore != "" && !ValidStoreName(defaultStore) {
		return nil, fmt.Errorf("invalid default store name %q", defaultStore)
	}

	return &FileCatalog{
		baseDir:      baseDir,
		defaultStore: defaultStore,
		autoIndex:    autoIndex,
	}, nil
}

// ValidStoreName reports whether name can be used as a store id.
// Separators and ".." are rejected so an id never leaves the data directory.
func ValidStoreName(name string) bool {
	return name != "" &&
		!strings.Contains(name, "..") &&
		!strings.ContainsAny(name, `/\`) &&
		!strings.ContainsRune(name, 0)
}

// storePath returns the filesystem path for a store id.
func (c *FileCatalog) storePath(id string) string {
	return filepath.Join(c.baseDir, id+StoreExtension)
}

func (c *FileCatalog) Resolve(ctx context.Context, id string) (*blobstore.Store, error) {
	if id == "" {
		id = c.defaultStore
	}
	if id == "" {
		return nil, fmt.Errorf("no store named and no default store: %w", blobstore.ErrBadRequest)
	}
	if !ValidStoreName(id) {
		return nil, fmt.Errorf("store %q: %w", id, blobstore.ErrNotFound)
	}

	return blobstore.Open(c.storePath(id), id, id)
}

func (c *FileCatalog) List(ctx context.Context) ([]StoreInfo, error) {
	var ids []string
	if c.autoIndex {
		matches, err := doublestar.Glob(os.DirFS(c.baseDir), "*"+StoreExtension)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data directory: %w", err)
		}
		for _, m := range matches {
			ids = append(ids, strings.TrimSuffix(m, StoreExtension))
		}
	} else if c.defaultStore != "" {
		ids = append(ids, c.defaultStore)
	}

	stores := make([]StoreInfo, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !ValidStoreName(id) {
			continue
		}

		info, err := os.Stat(c.storePath(id))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat store %s: %w", id, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		stores = append(stores, newStoreInfo(id, id, info.Size(), info.ModTime()))
	}

	sort.Slice(stores, func(i, j int) bool { return stores[i].Label < stores[j].Label })
	return stores, nil
}

// Ensure FileCatalog implements StoreCatalog.
var _ StoreCatalog = (*FileCatalog)(nil)
