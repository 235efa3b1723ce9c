package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/astra/engine/domain"
)

var errNoGraph = errors.New("neo4j is not configured (set --neo4j-url or NEO4J_URL)")

// carGraph is the car-node side of *graph.GraphStore.
type carGraph interface {
	ListCars(ctx context.Context, offset, limit int) ([]domain.Car, error)
	DeleteCar(ctx context.Context, id string) error
}

func newGraphCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect and prune car nodes in the relationship graph",
	}

	var offset, limit int
	cars := &cobra.Command{
		Use:   "cars",
		Short: "List car nodes ordered by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withGraph(cmd, opts, func(g carGraph) error {
				return listCars(cmd.Context(), g, cmd.OutOrStdout(), offset, limit)
			})
		},
	}
	cars.Flags().IntVar(&offset, "offset", 0, "nodes to skip")
	cars.Flags().IntVar(&limit, "limit", 100, "nodes to print")

	rm := &cobra.Command{
		Use:   "rm <car-id>...",
		Short: "Delete car nodes and every edge touching them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGraph(cmd, opts, func(g carGraph) error {
				return deleteCars(cmd.Context(), g, cmd.OutOrStdout(), args)
			})
		},
	}

	cmd.AddCommand(cars, rm)
	return cmd
}

func withGraph(cmd *cobra.Command, opts *options, f func(carGraph) error) error {
	gs, closeGraph, err := opts.openGraph(opts.logger(cmd))
	if err != nil {
		return err
	}
	defer closeGraph(cmd.Context())
	if gs == nil {
		return errNoGraph
	}
	return f(gs)
}

func listCars(ctx context.Context, g carGraph, w io.Writer, offset, limit int) error {
	cars, err := g.ListCars(ctx, offset, limit)
	if err != nil {
		return err
	}
	for _, c := range cars {
		fmt.Fprintf(w, "%s\t%s\n", c.ID, c.DisplayName())
	}
	return nil
}

func deleteCars(ctx context.Context, g carGraph, w io.Writer, ids []string) error {
	for _, id := range ids {
		if err := g.DeleteCar(ctx, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		fmt.Fprintf(w, "deleted %s\n", id)
	}
	return nil
}
