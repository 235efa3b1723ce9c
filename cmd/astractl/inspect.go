package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/engine/intent"
	"github.com/WessleyAI/astra/engine/knowledge"
	"github.com/WessleyAI/astra/engine/suggest"
	"github.com/WessleyAI/astra/engine/viz"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <query>",
		Short: "Print the visualization category and topic of a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.Join(args, " ")
			topic := intent.PrimaryIntent(q)
			if topic == "" {
				topic = "-"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "category: %s\ntopic: %s\n", intent.Classify(q), topic)
			return nil
		},
	}
}

func newSuggestCmd(opts *options) *cobra.Command {
	var (
		carID      string
		lastIntent string
		turn       int
		fallback   bool
	)
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Print follow-up suggestions for a car and conversation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var car *domain.Car
			if carID != "" {
				store, err := opts.openCatalog(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()
				if car, err = store.GetCar(cmd.Context(), carID); err != nil {
					return err
				}
			}
			out := suggest.Generate(car, lastIntent, turn)
			if fallback {
				out = suggest.Fallback(car)
			}
			for _, s := range out {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&carID, "car-id", "", "catalog car id")
	f.StringVar(&lastIntent, "intent", "", "last detected topic, e.g. fuel_economy")
	f.IntVar(&turn, "turn", 1, "conversation turn number")
	f.BoolVar(&fallback, "fallback", false, "print the fallback set used after repeated failures")
	return cmd
}

func newVisualizeCmd(opts *options) *cobra.Command {
	var (
		policy string
		seed   int64
	)
	cmd := &cobra.Command{
		Use:   "visualize <car-id> <type>",
		Short: "Print the chart payload for a car",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			category := intent.Category(args[1])
			if !category.Valid() {
				return fmt.Errorf("unknown type %q (want comparison, trend, sentiment or relationship)", args[1])
			}
			unknown, err := viz.ParsePolicy(policy, seed)
			if err != nil {
				return fmt.Errorf("--unknown: %w", err)
			}
			store, err := opts.openCatalog(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			car, err := store.GetCar(ctx, args[0])
			if err != nil {
				return err
			}
			log := opts.logger(cmd)
			gs, closeGraph, err := opts.openGraph(log)
			if err != nil {
				return err
			}
			defer closeGraph(ctx)
			var rels knowledge.RelationshipSource
			if gs != nil {
				rels = gs
			}
			fetcher := knowledge.New(rels, store, knowledge.Options{Logger: log})
			v, err := viz.NewShaper(fetcher, unknown).Shape(ctx, category, car.ID, *car)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
	cmd.Flags().StringVar(&policy, "unknown", "omit", "missing score policy: omit, zero or placeholder")
	cmd.Flags().Int64Var(&seed, "seed", 0, "placeholder policy seed")
	return cmd
}
