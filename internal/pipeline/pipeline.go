// Package pipeline runs one end-to-end conversion of an instrument
// deployment: read the header, sensor and velocity files, rotate the
// velocities, write the CSV tables and optional reports, and record the run.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/beam2enu/internal/adcp"
	"github.com/banshee-data/beam2enu/internal/aquadopp"
	"github.com/banshee-data/beam2enu/internal/config"
	"github.com/banshee-data/beam2enu/internal/db"
	"github.com/banshee-data/beam2enu/internal/fsutil"
	"github.com/banshee-data/beam2enu/internal/monitoring"
	"github.com/banshee-data/beam2enu/internal/report"
	"github.com/banshee-data/beam2enu/internal/timeutil"
	"github.com/banshee-data/beam2enu/internal/units"
)

// Options controls a single Run.
type Options struct {
	// Dir is searched for a .hdr file when Basename is empty.
	Dir string
	// Basename names the deployment files without extension, e.g.
	// "data/AQD01". Optional.
	Basename string
	// Config carries the conversion settings. Nil means all defaults.
	Config *config.ConversionConfig
	// Force converts even when a previous run's output exists.
	Force bool
	// Ledger, when set, receives a record of the run.
	Ledger *db.DB
	// Clock stamps the run. Defaults to timeutil.RealClock.
	Clock timeutil.Clock
}

// Result summarises a Run.
type Result struct {
	RunID      string
	Deployment aquadopp.Deployment
	Direction  adcp.Direction
	// Orientation is empty until the header has been read.
	Orientation string
	// Skipped is true when existing output was found and Force was off.
	Skipped    bool
	Samples    int
	Cells      int
	Outputs    []string
	Summary    []report.CellSummary
	StartedAt  time.Time
	FinishedAt time.Time
}

// ComponentLabels names the three components of a frame for plots and
// charts.
func ComponentLabels(cs adcp.CoordinateSystem) [3]string {
	if cs == adcp.ENU {
		return [3]string{"east", "north", "up"}
	}
	return [3]string{"beam 1", "beam 2", "beam 3"}
}

// Run converts one deployment. A failed conversion writes no result files;
// the run is still recorded in the ledger with status failed.
func Run(ctx context.Context, fs fsutil.FileSystem, opts Options) (Result, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.EmptyConfig()
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid config: %w", err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	dep, err := resolve(fs, opts)
	if err != nil {
		return Result{}, err
	}
	logf := monitoring.Prefixed("[" + filepath.Base(dep.Basename) + "] ")

	res := Result{
		RunID:      uuid.NewString(),
		Deployment: dep,
		StartedAt:  clock.Now(),
	}

	if marker := doneMarker(dep, cfg); !opts.Force && fs.Exists(marker) {
		logf("%s exists, skipping (use force to convert again)", marker)
		res.Skipped = true
		res.FinishedAt = clock.Now()
		record(opts.Ledger, res, nil, db.RunStatusSkipped, "", logf)
		return res, nil
	}

	runErr := convert(ctx, fs, cfg, dep, &res, logf)
	res.FinishedAt = clock.Now()

	if runErr != nil {
		record(opts.Ledger, res, nil, db.RunStatusFailed, runErr.Error(), logf)
		return res, runErr
	}
	record(opts.Ledger, res, res.Summary, db.RunStatusOK, "", logf)
	logf("done: %d samples, %d cells, %s in %s",
		res.Samples, res.Cells, res.Direction, clock.Since(res.StartedAt).Round(time.Millisecond))
	return res, nil
}

func resolve(fs fsutil.FileSystem, opts Options) (aquadopp.Deployment, error) {
	if opts.Basename != "" {
		return aquadopp.Deployment{Basename: opts.Basename}, nil
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	dep, err := aquadopp.Discover(fs, dir)
	if err != nil {
		return aquadopp.Deployment{}, err
	}
	monitoring.Logf("Found deployment %s", dep.Basename)
	return dep, nil
}

// doneMarker is the BEAM-frame output that exists after a previous run,
// whichever direction it converted.
func doneMarker(dep aquadopp.Deployment, cfg *config.ConversionConfig) string {
	if cfg.GetSeparateFiles() {
		return dep.ComponentOutput(adcp.Beam, 0)
	}
	return dep.CombinedOutput(adcp.Beam)
}

func convert(ctx context.Context, fs fsutil.FileSystem, cfg *config.ConversionConfig, dep aquadopp.Deployment, res *Result, logf func(string, ...interface{})) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	matrix, err := cfg.GetTransformationMatrix()
	if err != nil {
		return fmt.Errorf("transformation matrix override: %w", err)
	}
	inst, err := readHeader(fs, dep.Header(), matrix)
	if err != nil {
		return err
	}
	dir := adcp.DirectionFrom(inst.CoordinateSystem)
	res.Direction = dir
	res.Orientation = inst.Orientation.String()
	logf("%s, %s, %d cells", inst.Orientation, dir, len(inst.BeamCells))
	if cell, n := cfg.GetPlotCell(), len(inst.Cells(dir.Target())); cell >= n {
		return fmt.Errorf("plot_cell %d out of range: deployment has %d cells", cell, n)
	}

	loc, err := units.LoadTimezone(cfg.GetTimezone())
	if err != nil {
		return err
	}
	logf("reading %s", dep.Sensor())
	records, err := readSensor(fs, dep.Sensor(), loc)
	if err != nil {
		return err
	}
	attitude := aquadopp.Attitude(records, cfg.GetHeadingOffsetDeg())

	logf("reading velocity data")
	source, err := readVelocity(fs, dep, aquadopp.Timestamps(records), inst.Cells(dir.Source()))
	if err != nil {
		return err
	}

	logf("building result matrices")
	engine := &adcp.Engine{Workers: cfg.GetWorkers(), SingularTolerance: cfg.GetSingularTolerance()}
	result, err := engine.Convert(ctx, attitude, source, inst, dir)
	if err != nil {
		return err
	}
	res.Samples = len(result)
	res.Cells = len(inst.Cells(dir.Target()))

	// Every output is rendered in memory first so a failing step leaves no
	// files behind.
	var files []outputFile
	csvOpts := aquadopp.CSVOptions{Precision: cfg.GetPrecision(), Scale: units.Scale(cfg.GetOutputUnits())}
	if cfg.GetSaveSource() {
		tables, err := renderTables(dep, dir.Source(), source, cfg.GetSeparateFiles(), csvOpts)
		if err != nil {
			return err
		}
		files = append(files, tables...)
	}
	tables, err := renderTables(dep, dir.Target(), result, cfg.GetSeparateFiles(), csvOpts)
	if err != nil {
		return err
	}
	files = append(files, tables...)

	res.Summary = report.Summarise(result)
	labels := ComponentLabels(dir.Target())
	if cell := cfg.GetPlotCell(); cell >= 0 && len(result) > 0 {
		path := fmt.Sprintf("%s_%s.cell%d.png", dep.Basename, dir.Target().Suffix(), cell+1)
		f, err := render(path, func(w io.Writer) error {
			return report.PlotCell(w, result, cell, labels)
		})
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	if cfg.GetChart() && len(res.Summary) > 0 {
		path := fmt.Sprintf("%s_%s.profile.html", dep.Basename, dir.Target().Suffix())
		title := fmt.Sprintf("%s %s mean profile", filepath.Base(dep.Basename), dir.Target())
		f, err := render(path, func(w io.Writer) error {
			return report.RenderProfileChart(w, res.Summary, title, labels)
		})
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	logf("saving %d files", len(files))
	for _, f := range files {
		if err := writeFile(fs, f); err != nil {
			return err
		}
		res.Outputs = append(res.Outputs, f.path)
		monitoring.Debugf("wrote %s (%d bytes)", f.path, len(f.data))
	}
	return nil
}

func readHeader(fs fsutil.FileSystem, path string, matrix *mat.Dense) (*adcp.InstrumentConfig, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open header: %w", err)
	}
	defer f.Close()

	inst, _, err := adcp.ParseHeader(f, adcp.HeaderOptions{Matrix: matrix})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inst, nil
}

func readSensor(fs fsutil.FileSystem, path string, loc *time.Location) ([]aquadopp.SensorRecord, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sensor file: %w", err)
	}
	defer f.Close()

	records, err := aquadopp.ReadSensor(f, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func readVelocity(fs fsutil.FileSystem, dep aquadopp.Deployment, ts []time.Time, cells []float64) ([]adcp.VelocitySample, error) {
	var readers [3]io.Reader
	for k, path := range dep.Velocity() {
		f, err := fs.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open velocity file: %w", err)
		}
		defer f.Close()
		readers[k] = f
	}
	return aquadopp.ReadVelocity(readers, ts, cells)
}

// outputFile is a rendered output waiting to be written.
type outputFile struct {
	path string
	data []byte
}

func render(path string, write func(io.Writer) error) (outputFile, error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return outputFile{}, fmt.Errorf("failed to render %s: %w", path, err)
	}
	return outputFile{path: path, data: buf.Bytes()}, nil
}

// renderTables renders samples in frame cs as one combined table or one
// table per component.
func renderTables(dep aquadopp.Deployment, cs adcp.CoordinateSystem, samples []adcp.VelocitySample, separate bool, opts aquadopp.CSVOptions) ([]outputFile, error) {
	if !separate {
		f, err := render(dep.CombinedOutput(cs), func(w io.Writer) error {
			return aquadopp.WriteCombinedCSV(w, samples, opts)
		})
		if err != nil {
			return nil, err
		}
		return []outputFile{f}, nil
	}

	out := make([]outputFile, 0, len(aquadopp.Components))
	for k := range aquadopp.Components {
		f, err := render(dep.ComponentOutput(cs, k), func(w io.Writer) error {
			return aquadopp.WriteComponentCSV(w, samples, k, opts)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func writeFile(fs fsutil.FileSystem, f outputFile) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	w, err := fs.Create(f.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", f.path, err)
	}
	if _, err := w.Write(f.data); err != nil {
		return errors.Join(fmt.Errorf("failed to write %s: %w", f.path, err), w.Close())
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", f.path, err)
	}
	return nil
}

func record(ledger *db.DB, res Result, summary []report.CellSummary, status, errText string, logf func(string, ...interface{})) {
	if ledger == nil {
		return
	}
	run := db.Run{
		RunID:       res.RunID,
		Basename:    res.Deployment.Basename,
		Orientation: res.Orientation,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Samples:     res.Samples,
		Cells:       res.Cells,
		Status:      status,
		Error:       errText,
		Outputs:     res.Outputs,
	}
	if res.Orientation != "" {
		run.Direction = res.Direction.String()
	}
	cells := make([]db.CellStats, len(summary))
	for i, s := range summary {
		cells[i] = db.CellStats{CellIndex: s.Index, Cell: s.Cell, MeanSpeed: s.MeanSpeed, StdSpeed: s.StdSpeed, Mean: s.Mean}
	}
	if err := ledger.RecordRun(run, cells); err != nil {
		logf("failed to record run %s: %v", res.RunID, err)
		return
	}
	monitoring.Debugf("recorded run %s (%s)", res.RunID, status)
}
