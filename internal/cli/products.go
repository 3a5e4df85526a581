package cli

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/internal/catalog"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// parseCents reads a decimal amount such as "3", "3.5" or "3.49" as cents.
func parseCents(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: price %q is not a number", errUsage, s)
	}
	return int(math.Round(f * 100)), nil
}

func newAddCmd(a *app) *cobra.Command {
	var (
		category string
		price    string
		quantity int
	)
	cmd := &cobra.Command{
		Use:     "add <name>",
		Short:   "Add a product",
		Example: `  pantry add "Basmati rice" --category pantry --price 3.49 --quantity 2`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cents, err := parseCents(price)
			if err != nil {
				return err
			}
			req := catalog.AddProduct{Name: args[0], Category: category, Price: cents, Quantity: quantity}
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				v, err := s.catalog.Add(ctx, req)
				if err != nil {
					return fmt.Errorf("add product: %w", err)
				}
				return a.printProducts(cmd.OutOrStdout(), v)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "product category")
	cmd.Flags().StringVar(&price, "price", "0", "unit price, e.g. 3.49")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "quantity on hand")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		category string
		sortBy   string
		desc     bool
		page     int
		size     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Long: `List products one page at a time.

Products are ordered by category and name unless --sort names one of the
columns name, category, price or quantity. A --size of zero lists
everything on one page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := catalog.ListProducts{Category: category, Sort: sortBy, Page: page, Size: size}
			if desc {
				req.Direction = types.Descending
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				res, err := s.catalog.List(ctx, req)
				if err != nil {
					return fmt.Errorf("list products: %w", err)
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), res)
				}
				if err := a.printProducts(cmd.OutOrStdout(), res.Items...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d (%d products)\n", res.PageNumber, res.PageCount, res.TotalItemCount)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list this category")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort column: name, category, price or quantity")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&size, "size", 20, "page size")
	return cmd
}

func newRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := catalog.RenameProduct{ID: args[0], Name: args[1]}
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				v, err := s.catalog.Rename(ctx, req)
				if err != nil {
					return fmt.Errorf("rename %s: %w", req.ID, err)
				}
				return a.printProducts(cmd.OutOrStdout(), v)
			})
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a product",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := catalog.RemoveProduct{ID: args[0]}
			return a.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				v, err := s.catalog.Remove(ctx, req)
				if err != nil {
					return fmt.Errorf("remove %s: %w", req.ID, err)
				}
				if a.jsonMode {
					return printJSON(cmd.OutOrStdout(), v)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s)\n", v.ID, v.Name)
				return nil
			})
		},
	}
}
