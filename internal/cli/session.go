package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mesh-intelligence/pantry/internal/catalog"
	"github.com/mesh-intelligence/pantry/internal/memory"
	"github.com/mesh-intelligence/pantry/pkg/crud"
	"github.com/mesh-intelligence/pantry/pkg/profile"
	"github.com/mesh-intelligence/pantry/pkg/sqlite"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// session is one command's view of the catalog. backend is nil for the
// memory store.
type session struct {
	catalog *catalog.Catalog
	backend *sqlite.Backend
}

// open attaches the configured backend and builds the catalog on it. The
// caller must Close the session.
func (a *app) open() (*session, error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return nil, err
	}
	store := profile.NewStore(catalog.NewRegistry(), profile.WithLogger(a.logger))

	if cfg.Backend == types.BackendMemory {
		mem := memory.NewStore()
		if err := catalog.RegisterMemory(mem); err != nil {
			return nil, err
		}
		e := crud.New(store, mem.Open, crud.WithLogger(a.logger))
		return &session{catalog: catalog.New(e)}, nil
	}

	b := sqlite.NewBackend(sqlite.WithLogger(a.logger))
	if err := catalog.RegisterSQLite(b); err != nil {
		return nil, err
	}
	if err := b.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach backend: %w", err)
	}
	e := crud.New(store, b.Open, crud.WithLogger(a.logger))
	return &session{catalog: catalog.New(e), backend: b}, nil
}

// Close detaches the backend.
func (s *session) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Detach()
}

// withSession opens a session, runs f and closes the session.
func (a *app) withSession(ctx context.Context, f func(ctx context.Context, s *session) error) (err error) {
	s, err := a.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return f(ctx, s)
}

// printProducts writes views as JSON or as an aligned table.
func (a *app) printProducts(w io.Writer, views ...catalog.ProductView) error {
	if a.jsonMode {
		return printJSON(w, views)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tQTY")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", v.ID, v.Name, v.Category, v.Price, v.Quantity)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
