// Command entwine builds a spatial index out of a set of input point-cloud files,
// mirroring the original kernel's insert/join/save/finalize orchestration
// (original_source/kernel/entwine.cpp).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/geospine/entwine/builder"
	"github.com/geospine/entwine/buildconfig"
	"github.com/geospine/entwine/geo"
	"github.com/geospine/entwine/logging"
	"github.com/geospine/entwine/point"
	"github.com/geospine/entwine/source"
	"github.com/geospine/entwine/structure"
)

func main() {
	logger := logging.NewLogger("entwine")

	app := &cli.App{
		Name:      "entwine",
		Usage:     "build a spatial index from a set of point-cloud files",
		ArgsUsage: "<config.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "credentials",
				Aliases: []string{"c"},
				Value:   "credentials.json",
				Usage:   "optional object-store credentials document",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one config file argument", 1)
			}
			return run(c.Context, logger, c.Args().First(), c.String("credentials"))
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Errorw("entwine failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger logging.Logger, configPath, credentialsPath string) error {
	cfg, err := buildconfig.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	buildconfig.ApplyEnvOverlay(cfg)

	var creds source.Credentials
	if data, statErr := os.Stat(credentialsPath); statErr == nil && !data.IsDir() {
		creds, err = buildconfig.LoadCredentials(credentialsPath)
		if err != nil {
			return errors.Wrap(err, "loading credentials")
		}
	}

	driver, err := openDriver(ctx, cfg.Build.Path, creds)
	if err != nil {
		return err
	}

	resumable, err := builder.IsResumable(ctx, driver)
	if err != nil {
		return errors.Wrap(err, "checking for a resumable build")
	}

	var b *builder.Builder
	if resumable {
		b, err = builder.Resume(ctx, builder.ResumeConfig{
			Driver:        driver,
			Logger:        logger,
			Threads:       cfg.Tuning.Threads,
			HighWaterMark: cfg.Tuning.ResidentHighWaterMark,
			LowWaterMark:  cfg.Tuning.ResidentLowWaterMark,
		})
	} else {
		var st structure.Structure
		st, err = structure.New(cfg.Build.Tree.BaseDepth, cfg.Build.Tree.FlatDepth, cfg.Build.Tree.DiskDepth)
		if err != nil {
			return err
		}

		dims := geo.Quadtree
		if cfg.Geometry.Type == "octree" {
			dims = geo.Octree
		}

		schemaDims, dimErr := parseSchema(cfg.Geometry.Schema)
		if dimErr != nil {
			return dimErr
		}

		bbox := geo.Bounds{
			Min: r3.Vector{X: cfg.Geometry.Bbox[0], Y: cfg.Geometry.Bbox[1], Z: cfg.Geometry.Bbox[2]},
			Max: r3.Vector{X: cfg.Geometry.Bbox[3], Y: cfg.Geometry.Bbox[4], Z: cfg.Geometry.Bbox[5]},
		}

		b, err = builder.Fresh(ctx, builder.FreshConfig{
			Driver:        driver,
			Logger:        logger,
			Threads:       cfg.Tuning.Threads,
			Bbox:          bbox,
			Dims:          dims,
			SchemaDims:    schemaDims,
			Structure:     st,
			HighWaterMark: cfg.Tuning.ResidentHighWaterMark,
			LowWaterMark:  cfg.Tuning.ResidentLowWaterMark,
		})
	}
	if err != nil {
		return errors.Wrap(err, "constructing builder")
	}
	defer b.Close()

	verb := "starting fresh build"
	if resumable {
		verb = "resuming build"
	}
	logger.Infow(verb, b.Summary(builder.SummaryOptions{
		BuildPath: cfg.Build.Path,
		Inputs:    len(cfg.Input),
		Reproject: reprojectString(cfg.Geometry.Reproject),
		Snapshot:  cfg.Tuning.Snapshot,
	})...)

	start := time.Now()
	for i, input := range cfg.Input {
		// A source-unreadable file is logged and skipped inside Insert itself
		// (spec.md §7); an error surfacing here means an earlier job has already
		// failed and canceled the pool. The error is logged and the loop moves on;
		// Join below returns the failed job's error and ends the run.
		if err := b.Insert(ctx, input); err != nil {
			logger.Errorw("skipping input file", "path", input, "error", err)
			continue
		}
		if cfg.Tuning.Snapshot > 0 && (i+1)%cfg.Tuning.Snapshot == 0 {
			if err := b.Save(ctx); err != nil {
				return errors.Wrap(err, "snapshotting build")
			}
			logger.Infow("snapshot saved", "filesProcessed", i+1)
		}
	}

	if err := b.Join(); err != nil {
		return errors.Wrap(err, "draining worker pool")
	}
	logger.Infow("indexing complete", "seconds", time.Since(start).Seconds())

	if err := b.Save(ctx); err != nil {
		return errors.Wrap(err, "saving build")
	}

	if cfg.Output.Export != "" {
		exportDriver, err := openDriver(ctx, cfg.Output.Export, creds)
		if err != nil {
			return err
		}
		if err := b.Finalize(ctx, exportDriver, cfg.Output.BaseDepth, cfg.Output.Compress); err != nil {
			return errors.Wrap(err, "finalizing export")
		}
	}

	logger.Infow("finished",
		"numPoints", b.NumPoints(),
		"numDeduped", b.NumDeduped(),
		"numTossed", b.NumTossed())
	fmt.Fprintln(os.Stdout, "Finished.")
	return nil
}

// reprojectString renders a Reproject document as "in -> out", or "" (meaning
// identity, filled in by Builder.Summary) when both ends are empty.
func reprojectString(r buildconfig.Reproject) string {
	if r.In == "" && r.Out == "" {
		return ""
	}
	return r.In + " -> " + r.Out
}

func parseSchema(dims []buildconfig.SchemaDim) ([]point.Dimension, error) {
	out := make([]point.Dimension, len(dims))
	for i, d := range dims {
		t, err := point.ParseType(d.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "schema dimension %q", d.Name)
		}
		out[i] = point.Dimension{Name: d.Name, Type: t}
	}
	return out, nil
}
