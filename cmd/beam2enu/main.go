package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/beam2enu/internal/config"
	"github.com/banshee-data/beam2enu/internal/db"
	"github.com/banshee-data/beam2enu/internal/fsutil"
	"github.com/banshee-data/beam2enu/internal/monitoring"
	"github.com/banshee-data/beam2enu/internal/pipeline"
	"github.com/banshee-data/beam2enu/internal/version"
)

var (
	dir         = flag.String("dir", ".", "Directory searched for a .hdr file when no basename is given")
	configFile  = flag.String("config", "", "Path to a JSON conversion config (see "+config.ExampleConfigPath+")")
	matrix      = flag.String("matrix", "", `Transformation matrix override, rows separated by ';' e.g. "a b c; d e f; g h i"`)
	force       = flag.Bool("force", false, "Convert even if <basename>_beam.v1.csv already exists")
	workers     = flag.Int("workers", 0, "Rotation workers (0 = GOMAXPROCS)")
	dbPath      = flag.String("db", "", "SQLite run ledger path (empty = no ledger)")
	plotCell    = flag.Int("plot-cell", -1, "Write a PNG time series for this cell index (-1 = off)")
	chart       = flag.Bool("chart", false, "Write an HTML mean profile chart")
	combined    = flag.Bool("combined", false, "Write one CSV per frame instead of one per component")
	noSource    = flag.Bool("no-source", false, "Do not save the velocities in their original frame")
	listRuns    = flag.Bool("list-runs", false, "Print the runs recorded in the ledger and exit")
	verbose     = flag.Bool("verbose", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [basename]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Converts Aquadopp velocity data between BEAM and ENU coordinates.")
		fmt.Fprintln(flag.CommandLine.Output(), "With no basename, one deployment per directory is assumed.")
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("beam2enu"))
		return
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *listRuns {
		if err := printRuns(os.Stdout, cfg.GetDatabase(), flag.Arg(0)); err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := pipeline.Options{
		Dir:      *dir,
		Basename: flag.Arg(0),
		Config:   cfg,
		Force:    *force,
	}
	if path := cfg.GetDatabase(); path != "" {
		ledger, err := db.NewDB(path)
		if err != nil {
			log.Fatalf("Failed to open run ledger: %v", err)
		}
		defer ledger.Close()
		opts.Ledger = ledger
	}

	res, err := pipeline.Run(ctx, fsutil.OSFileSystem{}, opts)
	if err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}
	if !res.Skipped {
		log.Printf("Wrote %d files (run %s)", len(res.Outputs), res.RunID)
	}
}

// loadConfig reads the optional config file and applies any flags the user
// set explicitly on top of it.
func loadConfig() (*config.ConversionConfig, error) {
	cfg := config.EmptyConfig()
	if *configFile != "" {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "matrix":
			cfg.TransformationMatrix = matrix
		case "workers":
			cfg.Workers = workers
		case "db":
			cfg.Database = dbPath
		case "plot-cell":
			cfg.PlotCell = plotCell
		case "chart":
			cfg.Chart = chart
		case "combined":
			separate := !*combined
			cfg.SeparateFiles = &separate
		case "no-source":
			save := !*noSource
			cfg.SaveSource = &save
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.GetTransformationMatrix(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printRuns(w io.Writer, path, basename string) error {
	if path == "" {
		return fmt.Errorf("no ledger configured (use -db or the database config field)")
	}
	ledger, err := db.NewDB(path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.Runs(basename)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %-8s %-10s %-12s samples=%d cells=%d took=%s",
			r.RunID, r.StartedAt.Format(time.RFC3339), r.Status, r.Direction, r.Basename,
			r.Samples, r.Cells, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		if r.Error != "" {
			fmt.Fprintf(w, "  error=%q", r.Error)
		}
		fmt.Fprintln(w)
	}
	return nil
}
