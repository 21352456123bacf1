package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/erauner12/shopsync/internal/optimistic"
	"github.com/erauner12/shopsync/internal/session"
)

// mutation runs against the controller of one collection
type mutation func(ctx context.Context, ctrl *optimistic.Controller) error

// NewCartCommand creates the cart command group.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	return newCollectionCommand(rootOpts, session.CartCollection, "Show and edit the cart")
}

// NewWishlistCommand creates the wishlist command group.
func NewWishlistCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := newCollectionCommand(rootOpts, session.WishlistCollection, "Show and edit the wishlist")
	cmd.AddCommand(newMoveCommand(rootOpts))
	return cmd
}

func newCollectionCommand(rootOpts *RootOptions, collection, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   collection,
		Short: short,
	}

	cmd.AddCommand(newListCommand(rootOpts, collection))
	cmd.AddCommand(newAddCommand(rootOpts, collection))
	cmd.AddCommand(newRemoveCommand(rootOpts, collection))
	cmd.AddCommand(newUpdateCommand(rootOpts, collection))
	cmd.AddCommand(newClearCommand(rootOpts, collection))

	return cmd
}

func newListCommand(rootOpts *RootOptions, collection string) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         fmt.Sprintf("List %s items with totals", collection),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(rootOpts, collection, cmd, nil)
		},
	}
}

func newAddCommand(rootOpts *RootOptions, collection string) *cobra.Command {
	var p optimistic.Payload

	cmd := &cobra.Command{
		Use:           "add <productId>",
		Short:         fmt.Sprintf("Add a product to the %s", collection),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.ProductID = args[0]
			if p.Name == "" {
				p.Name = p.ProductID
			}
			return runMutation(rootOpts, collection, cmd, func(ctx context.Context, ctrl *optimistic.Controller) error {
				return ctrl.Add(ctx, p)
			})
		},
	}

	cmd.Flags().StringVar(&p.Name, "name", "", "display name (defaults to the product id)")
	cmd.Flags().Int64Var(&p.PriceCents, "price", 0, "unit price in cents")
	cmd.Flags().IntVarP(&p.Quantity, "qty", "q", 1, "quantity")
	cmd.Flags().StringVar(&p.ImageURL, "image", "", "image URL")

	return cmd
}

func newRemoveCommand(rootOpts *RootOptions, collection string) *cobra.Command {
	var byID bool

	cmd := &cobra.Command{
		Use:           "remove <productId>",
		Short:         fmt.Sprintf("Remove a product from the %s", collection),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			return runMutation(rootOpts, collection, cmd, func(ctx context.Context, ctrl *optimistic.Controller) error {
				if byID {
					return ctrl.RemoveItem(ctx, key)
				}
				return ctrl.Remove(ctx, key)
			})
		},
	}

	cmd.Flags().BoolVar(&byID, "id", false, "treat the argument as an item id")

	return cmd
}

func newUpdateCommand(rootOpts *RootOptions, collection string) *cobra.Command {
	return &cobra.Command{
		Use:           "update <itemId> <quantity>",
		Short:         fmt.Sprintf("Change the quantity of a %s item", collection),
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid quantity %q", args[1]))
			}
			id := args[0]
			return runMutation(rootOpts, collection, cmd, func(ctx context.Context, ctrl *optimistic.Controller) error {
				return ctrl.Update(ctx, id, optimistic.Patch{Quantity: &qty})
			})
		},
	}
}

func newClearCommand(rootOpts *RootOptions, collection string) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         fmt.Sprintf("Remove every %s item", collection),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(rootOpts, collection, cmd, func(ctx context.Context, ctrl *optimistic.Controller) error {
				return ctrl.Clear(ctx)
			})
		},
	}
}

func newMoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "move <itemId>...",
		Short:         "Move wishlist items into the cart",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(rootOpts, args, cmd)
		},
	}
}

// runMutation connects, applies fn (if any) and prints the resulting collection.
// The collection is printed even when fn fails so the rolled back state is visible.
func runMutation(opts *RootOptions, collection string, cmd *cobra.Command, fn mutation) error {
	ctx := cmd.Context()
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	conn, err := opts.connect(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer conn.close(ctx)

	var opErr error
	if fn != nil {
		opErr = fn(ctx, conn.controller(collection))
	}

	if err := formatter.Collection(conn.view(collection)); err != nil {
		return WrapExitError(ExitFailure, "failed to write output", err)
	}
	if opErr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%s %s failed", collection, cmd.Name()), opErr)
	}
	return nil
}

func runMove(opts *RootOptions, itemIDs []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	conn, err := opts.connect(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer conn.close(ctx)

	res, moveErr := conn.store.MoveWishlistToCart(ctx, itemIDs)

	if err := formatter.Move(MoveView{Result: res, Cart: conn.view(session.CartCollection)}); err != nil {
		return WrapExitError(ExitFailure, "failed to write output", err)
	}
	if moveErr != nil {
		return WrapExitError(ExitFailure, "wishlist move failed", moveErr)
	}
	if len(res.Errors) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d item(s) not moved", len(res.Errors)))
	}
	return nil
}
