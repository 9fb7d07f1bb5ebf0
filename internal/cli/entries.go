package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/asad/blobreader/internal/blobstore"
	"github.com/asad/blobreader/internal/logging"
	"github.com/asad/blobreader/internal/services/blob"
)

func newGetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <name> [blob-file...]",
		Short: "Write an entry to stdout",
		Long: `Write the content of the named entry to stdout.

Without blob files the store given by --store (or the configured default
store) is searched. With several blob files they are searched in order and
the first one holding the entry wins; files with a malformed header are
skipped with a warning.

gzip entries are decompressed unless --raw is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeID, _ := cmd.Flags().GetString("store")
			raw, _ := cmd.Flags().GetBool("raw")
			return a.runGet(cmd, args[0], storeID, args[1:], raw)
		},
	}
	cmd.Flags().StringP("store", "s", "", "store id inside the data directory")
	cmd.Flags().Bool("raw", false, "write stored bytes without decompressing")
	return cmd
}

func (a *app) runGet(cmd *cobra.Command, name, storeID string, files []string, raw bool) error {
	if name == "" {
		return fmt.Errorf("missing entry name: %w", blobstore.ErrBadRequest)
	}

	stores, err := a.openStores(cmd, storeID, files)
	if err != nil {
		return err
	}
	defer closeAll(stores)

	store, entry, err := blobstore.LookupAny(stores, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return fmt.Errorf("not found: '%s'", name)
		}
		return err
	}

	entry = a.cfg.Defaults().Apply(entry)
	a.logger.Debug("writing entry",
		logging.String("store", store.ID),
		logging.String("entry", entry.Name),
		logging.String("encoding", entry.Encoding),
		logging.Int64("length", entry.Length),
		logging.Bool("raw", raw),
	)

	var r io.Reader
	if raw {
		r = blobstore.EntryReader(store, entry)
	} else {
		rc, err := blobstore.DecodedReader(store, entry, a.cfg.Defaults())
		if err != nil {
			return err
		}
		defer rc.Close()
		r = rc
	}

	if _, err := io.Copy(cmd.OutOrStdout(), r); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [blob-file]",
		Short: "List index entries of a store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeID, _ := cmd.Flags().GetString("store")
			from, _ := cmd.Flags().GetInt("from")
			size, _ := cmd.Flags().GetInt("size")
			filter, _ := cmd.Flags().GetString("filter")
			if size == 0 {
				size = a.cfg.PageSize
			}
			return a.runList(cmd, storeID, args, from, size, filter)
		},
	}
	cmd.Flags().StringP("store", "s", "", "store id inside the data directory")
	cmd.Flags().Int("from", 0, "index position of the first entry")
	cmd.Flags().Int("size", 0, "number of entries (default page_size)")
	cmd.Flags().StringP("filter", "f", "", "only entries whose name contains this, ignoring case")
	return cmd
}

func (a *app) runList(cmd *cobra.Command, storeID string, files []string, from, size int, filter string) error {
	stores, err := a.openStores(cmd, storeID, files)
	if err != nil {
		return err
	}
	defer closeAll(stores)
	if len(stores) == 0 {
		return fmt.Errorf("no readable store")
	}

	page, err := blobstore.ListEntries(stores[0], from, size, filter)
	if err != nil {
		return err
	}

	defaults := a.cfg.Defaults()
	t := newTable("NAME", "LENGTH", "ENCODING", "MEDIA TYPE")
	for _, e := range page.Entries {
		e = defaults.Apply(e)
		t.Row(e.Name, strconv.FormatInt(e.Length, 10), e.Encoding, e.MediaType)
	}
	fmt.Fprintln(cmd.OutOrStdout(), t)
	if page.HasMore() {
		fmt.Fprintf(cmd.ErrOrStderr(), "more entries: --from %d\n", page.Next)
	}
	return nil
}

func newStoresCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List the stores of the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := blob.NewFileCatalog(a.cfg.DataDir, a.cfg.DefaultStore, a.cfg.AutoIndex)
			if err != nil {
				return err
			}
			stores, err := catalog.List(cmd.Context())
			if err != nil {
				return err
			}

			t := newTable("ID", "SIZE", "LAST MODIFIED")
			for _, s := range stores {
				t.Row(s.ID, s.SizeHuman, s.LastModified.UTC().Format(time.RFC3339))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

// openStores opens the given blob files, or the catalog store storeID when
// there are none. Files with a malformed header are skipped.
func (a *app) openStores(cmd *cobra.Command, storeID string, files []string) ([]*blobstore.Store, error) {
	if len(files) == 0 {
		catalog, err := blob.NewFileCatalog(a.cfg.DataDir, a.cfg.DefaultStore, a.cfg.AutoIndex)
		if err != nil {
			return nil, err
		}
		s, err := catalog.Resolve(cmd.Context(), storeID)
		if err != nil {
			return nil, err
		}
		return []*blobstore.Store{s}, nil
	}

	stores := make([]*blobstore.Store, 0, len(files))
	for _, path := range files {
		id := strings.TrimSuffix(filepath.Base(path), blob.StoreExtension)
		s, err := blobstore.Open(path, id, path)
		if err != nil {
			closeAll(stores)
			return nil, err
		}

		if _, err := s.IndexOffset(); err != nil {
			var formatErr *blobstore.FormatError
			if !errors.As(err, &formatErr) {
				s.Close()
				closeAll(stores)
				return nil, err
			}
			a.logger.Warn("skipping broken blob file",
				logging.String("path", path),
				logging.ErrorField(err),
			)
			s.Close()
			continue
		}
		stores = append(stores, s)
	}
	return stores, nil
}

func closeAll(stores []*blobstore.Store) {
	for _, s := range stores {
		s.Close()
	}
}
