package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/internal/catalog"
	"github.com/mesh-intelligence/pantry/pkg/sqlite"
)

func newSyncCmd(a *app) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "sync <file.jsonl>",
		Short: "Make the catalog match a JSONL file",
		Long: `Sync reads one product record per line and makes the stored products
match them. Records with a known id update that product, records without
an id are added, and stored products missing from the file are removed.
With --category only that category is touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := sqlite.ReadJSONL[catalog.ProductRecord](args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", errUsage, err)
			}
			req := catalog.SyncProducts{Category: category, Records: records}
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				views, err := s.catalog.Sync(ctx, req)
				if err != nil {
					return fmt.Errorf("sync %s: %w", args[0], err)
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), views)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Synced %d products\n", len(views))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "limit the sync to this category")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.jsonl>",
		Short: "Write every stored product to a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if s.backend == nil {
					return fmt.Errorf("%w: export needs the sqlite backend", errUsage)
				}
				n, err := s.backend.Export(ctx, catalog.SetName, args[0])
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d products to %s\n", n, args[0])
				return nil
			})
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Replace every stored product with an exported JSONL file",
		Long: `Import restores a file written by export. The stored products are
replaced as a whole and left untouched when any line fails to decode.
Unlike sync it bypasses the catalog rules.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if s.backend == nil {
					return fmt.Errorf("%w: import needs the sqlite backend", errUsage)
				}
				n, err := s.backend.Import(ctx, catalog.SetName, args[0])
				if err != nil {
					return fmt.Errorf("import: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d products from %s\n", n, args[0])
				return nil
			})
		},
	}
}
