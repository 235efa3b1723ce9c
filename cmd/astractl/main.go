// Command astractl seeds the Astra catalog and inspects the classifier,
// suggestion and visualization engines from the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/astra/engine/catalog"
	"github.com/WessleyAI/astra/engine/graph"
)

type options struct {
	dbPath    string
	neo4jURL  string
	neo4jUser string
	neo4jPass string
	verbose   bool
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "astractl",
		Short:         "Astra catalog and engine tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.dbPath, "db", envOr("ASTRA_DB", "astra.db"), "SQLite catalog path")
	pf.StringVar(&opts.neo4jURL, "neo4j-url", os.Getenv("NEO4J_URL"), "Neo4j URL; empty skips the graph")
	pf.StringVar(&opts.neo4jUser, "neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j user")
	pf.StringVar(&opts.neo4jPass, "neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newSeedCmd(opts),
		newClassifyCmd(),
		newSuggestCmd(opts),
		newVisualizeCmd(opts),
		newGraphCmd(opts),
	)
	return root
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *options) openCatalog(ctx context.Context) (*catalog.Store, error) {
	store, err := catalog.Open(ctx, o.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", o.dbPath, err)
	}
	return store, nil
}

// openGraph connects to Neo4j. It returns nil with a no-op closer when no
// URL is configured.
func (o *options) openGraph(log *slog.Logger) (*graph.GraphStore, func(context.Context) error, error) {
	if o.neo4jURL == "" {
		return nil, func(context.Context) error { return nil }, nil
	}
	driver, err := neo4j.NewDriverWithContext(o.neo4jURL, neo4j.BasicAuth(o.neo4jUser, o.neo4jPass, ""))
	if err != nil {
		return nil, nil, fmt.Errorf("neo4j driver: %w", err)
	}
	return graph.New(driver).WithLogger(log), driver.Close, nil
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "astractl:", err)
		os.Exit(1)
	}
}
