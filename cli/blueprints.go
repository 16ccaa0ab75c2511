package cli

import (
	"blueprints-server/core"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Author string
}

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored blueprints",
		Long: `List stored blueprints as JSON. Points are printed as stored; the
read-time filter only applies to "get".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openService(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer cleanup()

			var bps []core.Blueprint
			if opts.Author != "" {
				bps, err = svc.GetBlueprintsByAuthor(cmd.Context(), opts.Author)
			} else {
				bps, err = svc.GetAllBlueprints(cmd.Context())
			}
			if err != nil {
				return err
			}
			if bps == nil {
				bps = []core.Blueprint{}
			}
			return writeJSON(cmd.OutOrStdout(), bps)
		},
	}

	cmd.Flags().StringVar(&opts.Author, "author", "", "only list blueprints of this author")

	return cmd
}

func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <author> <name>",
		Short: "Print one blueprint after the configured filter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := openService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			bp, err := svc.GetBlueprint(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), bp)
		},
	}
}

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Points []string
}

func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <author> <name>",
		Short: "Create a blueprint",
		Long: `Create a blueprint, optionally with initial points.

Example:
  blueprints create ana house --point 0,0 --point 10,0 --point 10,10`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bp := core.Blueprint{Author: args[0], Name: args[1], Points: make([]core.Point, 0, len(opts.Points))}
			if !bp.Key().Valid() {
				return errors.New("author and name must not be blank")
			}
			for _, s := range opts.Points {
				p, err := parsePoint(s)
				if err != nil {
					return err
				}
				bp.Points = append(bp.Points, p)
			}

			svc, cleanup, err := openService(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.AddNewBlueprint(cmd.Context(), bp); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), bp)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Points, "point", nil, "initial point as x,y (repeatable)")

	return cmd
}

func NewAddPointCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-point <author> <name> <x> <y>",
		Short: "Append a point to a blueprint",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid x: %w", err)
			}
			y, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("invalid y: %w", err)
			}

			svc, cleanup, err := openService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.AddPoint(cmd.Context(), args[0], args[1], x, y); err != nil {
				return err
			}
			bp, err := svc.GetBlueprint(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), bp)
		},
	}
}
