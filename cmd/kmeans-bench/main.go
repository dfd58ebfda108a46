// Command kmeans-bench is the CLI front-end of spec.md §6: it loads a
// binary point file and an INI configuration and builds the configured
// iteration controller. With verification enabled it runs the controller
// once and compares its labels against the naive CPU reference; otherwise
// it runs the controller the configured number of times and optionally
// writes a CSV measurement log.
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/lutzcle/gokmeans"
	"github.com/lutzcle/gokmeans/internal/bench"
	"github.com/lutzcle/gokmeans/internal/cache"
	"github.com/lutzcle/gokmeans/internal/codec"
	"github.com/lutzcle/gokmeans/internal/config"
	"github.com/lutzcle/gokmeans/internal/constants"
	"github.com/lutzcle/gokmeans/internal/device"
	"github.com/lutzcle/gokmeans/internal/kmeans"
	"github.com/lutzcle/gokmeans/internal/logging"
	"github.com/lutzcle/gokmeans/internal/pointfile"
	"github.com/lutzcle/gokmeans/internal/scheduler"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	verbose    bool
	runs       int
	k          int
	iterations int
	verify     bool
	csvFile    string
	configFile string
	inputFile  string
}

func parseFlags(args []string, errOut *os.File) (*options, error) {
	fs := flag.NewFlagSet("kmeans-bench", flag.ContinueOnError)
	fs.SetOutput(errOut)

	opts := &options{}
	fs.BoolVar(&opts.verbose, "verbose", false, "show additional information")
	fs.IntVar(&opts.runs, "runs", 0, "number of runs (overrides config's benchmark.runs if set)")
	fs.IntVar(&opts.k, "k", 0, "number of clusters")
	fs.IntVar(&opts.iterations, "iterations", 0, "max iterations (overrides config's kmeans.iterations if set)")
	fs.BoolVar(&opts.verify, "verify", false, "verify labels against the naive reference")
	fs.StringVar(&opts.csvFile, "csv", "", "write measurements to this CSV file")
	fs.StringVar(&opts.configFile, "config", "", "configuration file (required)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if opts.k <= 0 {
		return nil, fmt.Errorf("--k is required and must be positive")
	}
	if opts.configFile == "" {
		return nil, fmt.Errorf("--config is required")
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one input file argument, got %d", fs.NArg())
	}
	opts.inputFile = fs.Arg(0)

	return opts, nil
}

func run(args []string, stdout, stderr *os.File) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	logConfig := logging.DefaultConfig()
	if opts.verbose {
		logConfig.Level = logging.LevelDebug
	}
	logConfig.Output = stderr
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg, err := config.Parse(opts.configFile)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	iterations := cfg.Kmeans.Iterations
	if opts.iterations > 0 {
		iterations = opts.iterations
	}
	runs := cfg.Benchmark.Runs
	if opts.runs > 0 {
		runs = opts.runs
	}
	verify := opts.verify || cfg.Benchmark.Verify

	switch {
	case cfg.Kmeans.PointType == "float" && cfg.Kmeans.LabelType == "uint32" && cfg.Kmeans.MassType == "uint32":
		return runTyped[float32, uint32, uint32](stdout, stderr, opts, cfg, iterations, runs, verify, logger)
	case cfg.Kmeans.PointType == "double" && cfg.Kmeans.LabelType == "uint64" && cfg.Kmeans.MassType == "uint64":
		return runTyped[float64, uint64, uint64](stdout, stderr, opts, cfg, iterations, runs, verify, logger)
	default:
		err := gokmeans.NewError("kmeans-bench", gokmeans.TypeMismatch,
			fmt.Sprintf("unsupported (point, label, mass) type combination: (%s, %s, %s)",
				cfg.Kmeans.PointType, cfg.Kmeans.LabelType, cfg.Kmeans.MassType))
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
}

// sizeofUnsignedZero returns the byte width of L, matching the layout
// internal/codec.Bytes reinterprets label slices with.
func sizeofUnsignedZero[L gokmeans.Unsigned]() int {
	var zero L
	switch any(zero).(type) {
	case uint32:
		return 4
	default:
		return 8
	}
}

func loadPoints[P gokmeans.Float](path string) (pointfile.Header, []P, error) {
	var zero P
	switch any(zero).(type) {
	case float32:
		hdr, data, err := pointfile.ReadFloat32(path)
		if err != nil {
			return hdr, nil, err
		}
		out := make([]P, len(data))
		for i, v := range data {
			out[i] = P(v)
		}
		return hdr, out, nil
	default:
		hdr, data, err := pointfile.ReadFloat64(path)
		if err != nil {
			return hdr, nil, err
		}
		out := make([]P, len(data))
		for i, v := range data {
			out[i] = P(v)
		}
		return hdr, out, nil
	}
}

func runTyped[P gokmeans.Float, L gokmeans.Unsigned, M gokmeans.Unsigned](
	stdout, stderr *os.File, opts *options, cfg *config.Config, iterations, runs int, verify bool, logger *logging.Logger,
) int {
	hdr, points, err := loadPoints[P](opts.inputFile)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	numPoints, f := int(hdr.Rows), int(hdr.Cols)
	if opts.k > numPoints {
		fmt.Fprintln(stderr, "error: k cannot exceed the number of points")
		return 1
	}

	type engine struct {
		cache     *cache.Cache
		queue     device.Queue
		did       int
		labelsOID int
		labels    []L
		run       func(int) (int, *bench.DataPoint, error)
	}

	build := func() (*engine, error) {
		c := cache.New(logger)
		dev := device.NewSoftware()
		did, err := c.AddDevice(dev, constants.DoubleBuffering*c.BufferSize())
		if err != nil {
			return nil, err
		}
		sched := scheduler.New(c, logger)
		queue := dev.NewQueue()
		sched.AddDevice(did, queue)

		pointsOID := c.AddObject(codec.Bytes(points), gokmeans.Immutable)
		labels := make([]L, numPoints)
		labelsOID := c.AddObject(codec.Bytes(labels), gokmeans.Mutable)

		initial := make([]P, opts.k*f)
		copy(initial, points[:opts.k*f])
		state := kmeans.NewState[P, L, M](opts.k, f, initial)

		var runFn func(int) (int, *bench.DataPoint, error)
		if cfg.Kmeans.Pipeline == gokmeans.Fused {
			loop := kmeans.NewFusedLoop[P, L, M](sched, did, pointsOID, labelsOID, queue, state)
			runFn = loop.Run
		} else {
			loop := kmeans.NewThreeStageLoop[P, L, M](
				sched, did, pointsOID, labelsOID, queue, state,
				cfg.MassUpdate.Strategy, cfg.CentroidUpdate.Strategy,
			)
			runFn = loop.Run
		}

		return &engine{cache: c, queue: queue, did: did, labelsOID: labelsOID, labels: labels, run: runFn}, nil
	}

	if verify {
		eng, err := build()
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		if _, _, err := eng.run(iterations); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		readEv, err := eng.cache.Read(eng.queue, eng.did, eng.labelsOID, 0, numPoints*sizeofUnsignedZero[L]())
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		if err := readEv.Wait(); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}

		naiveLabels, _, _ := kmeans.Naive[P, L](points, numPoints, f, opts.k, iterations)
		mismatches := 0
		for i := range naiveLabels {
			if eng.labels[i] != naiveLabels[i] {
				mismatches++
			}
		}

		if opts.verbose {
			fmt.Fprintf(stdout, "Pipeline: %s Types: %s %s %s\n",
				cfg.Kmeans.Pipeline, cfg.Kmeans.PointType, cfg.Kmeans.LabelType, cfg.Kmeans.MassType)
		}
		if mismatches == 0 {
			fmt.Fprintln(stdout, "Correct")
		} else {
			fmt.Fprintf(stdout, "%d incorrect labels\n", mismatches)
		}
		return 0
	}

	harness := &bench.Harness{Runs: runs}
	stats, err := harness.Run(func(run int) (*bench.RunStats, error) {
		eng, err := build()
		if err != nil {
			return nil, err
		}
		iterationsUsed, root, err := eng.run(iterations)
		if err != nil {
			return nil, err
		}
		return &bench.RunStats{IterationsUsed: iterationsUsed, Root: root}, nil
	})
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	if opts.verbose {
		fmt.Fprintf(stdout, "Pipeline: %s Types: %s %s %s\n",
			cfg.Kmeans.Pipeline, cfg.Kmeans.PointType, cfg.Kmeans.LabelType, cfg.Kmeans.MassType)
		for _, s := range stats {
			fmt.Fprintf(stdout, "run %d: %d iterations\n", s.Root.Run, s.IterationsUsed)
		}
	}

	if opts.csvFile != "" {
		if err := bench.WriteCSV(opts.csvFile, bench.Flatten(stats)); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
	}

	return 0
}
