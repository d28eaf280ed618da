// Command strata runs aggregate requests and applies fixture seeds against a
// configured backend. Backend selection and connection settings come from the
// layered configuration (strata.yaml, STRATA_* environment variables,
// --key=value arguments).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/quarryhq/strata"
	"github.com/quarryhq/strata/aggregate"
	_ "github.com/quarryhq/strata/badgerstore"
	_ "github.com/quarryhq/strata/httpapi"
	"github.com/quarryhq/strata/seed"
)

func main() {
	app := &cli.App{
		Name:  "strata",
		Usage: "Uniform data-access CLI: aggregates and fixtures over any backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Override the configured backend kind (memory, mongo, badger, http)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "aggregate",
				Usage:  "Run an aggregate spec over a collection and print the result",
				Action: aggregateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "collection",
						Aliases:  []string{"c"},
						Usage:    "Collection to aggregate over",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "spec",
						Aliases:  []string{"s"},
						Usage:    "Path to the aggregate spec file (YAML or JSON)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "filter",
						Usage: "JSON filter document restricting the matched records",
					},
					&cli.StringFlag{
						Name:  "sort",
						Usage: "Sort rendered groups (key, -key, total, -total)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Keep only the first N rendered groups",
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Apply fixture records from a YAML file, once per seed ID",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the fixture file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "application",
						Usage: "Application name recorded with each seed",
						Value: "strata",
					},
				},
			},
			serveCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, c *cli.Context) (*strata.Store, error) {
	cfg, err := strata.LoadConfig("STRATA", nil)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Set("log.level", c.String("log-level"))
	if kind := c.String("backend"); kind != "" {
		cfg.Set("backend.kind", kind)
	}
	return strata.OpenFromConfig(ctx, cfg)
}

func aggregateCommand(c *cli.Context) error {
	ctx := c.Context
	store, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	rawSpec, err := loadDocument(c.String("spec"))
	if err != nil {
		return fmt.Errorf("load spec: %w", err)
	}

	filter := strata.Filter{}
	if raw := c.String("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			return fmt.Errorf("parse filter: %w", err)
		}
	}

	collection, err := store.Collection(c.String("collection"))
	if err != nil {
		return err
	}
	result, err := collection.Aggregate(ctx, filter, rawSpec, aggregate.RunOptions{
		Sort:  aggregate.Sort(c.String("sort")),
		Limit: c.Int("limit"),
	})
	if err != nil {
		return err
	}

	rendered, err := json.MarshalIndent(result.AsMap(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(rendered))
	return nil
}

// fixtureFile is the on-disk shape of a seed file: an identifier plus record
// batches keyed by collection.
type fixtureFile struct {
	ID          string                      `yaml:"id"`
	Description string                      `yaml:"description"`
	Collections map[string][]map[string]any `yaml:"collections"`
}

func seedCommand(c *cli.Context) error {
	ctx := c.Context
	store, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return err
	}
	var fixture fixtureFile
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return fmt.Errorf("parse fixture file: %w", err)
	}
	if fixture.ID == "" {
		return fmt.Errorf("fixture file missing id")
	}

	tracker, err := seed.NewStoreTracker(store)
	if err != nil {
		return err
	}
	seeds := []seed.Seed{{
		ID:          fixture.ID,
		Description: fixture.Description,
		Run: func(ctx context.Context) error {
			for name, rawRecords := range fixture.Collections {
				collection, err := store.Collection(name)
				if err != nil {
					return err
				}
				records := make([]strata.Record, len(rawRecords))
				for i, raw := range rawRecords {
					records[i] = strata.Record(raw)
				}
				if err := collection.Insert(ctx, records...); err != nil {
					return fmt.Errorf("seed collection %s: %w", name, err)
				}
			}
			return nil
		},
	}}
	if err := seed.Apply(ctx, tracker, seeds, c.String("application")); err != nil {
		return err
	}
	store.Logger().Info("seeds applied", "id", fixture.ID)
	return nil
}

func loadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if json.Valid(data) {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
