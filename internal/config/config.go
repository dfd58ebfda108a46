// Package config parses the INI-like configuration file described in
// spec.md §6: a benchmark section, a kmeans section selecting the
// pipeline and element types, and one section per kernel adapter giving
// its strategy and (for a real OpenCL runtime) its platform/device
// selection and launch geometry. This engine's command queue is
// in-process (internal/device.Software), so platform/device/global_size/
// local_size are parsed and carried for fidelity with the original
// configuration surface but are not consulted by the software queue.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/lutzcle/gokmeans"
)

// Benchmark holds the `benchmark` section: how many runs to execute and
// whether every run should be checked against the naive reference.
type Benchmark struct {
	Runs   int
	Verify bool
}

// Kmeans holds the `kmeans` section: the iteration controller to build
// and the (point, label, mass) type triple it runs with.
type Kmeans struct {
	Pipeline   gokmeans.Pipeline
	Iterations int
	PointType  string // "float" | "double"
	LabelType  string // "uint32" | "uint64"
	MassType   string // "uint32" | "uint64"
}

// KernelConfig holds one `[labeling]`/`[mass_update]`/`[centroid_update]`/
// `[fused]` section: the strategy to dispatch on and the launch geometry
// and tuning knobs a real OpenCL backend would read.
type KernelConfig struct {
	Platform       int
	Device         int
	Strategy       gokmeans.Strategy
	GlobalSize     [3]int
	LocalSize      [3]int
	VectorLength   int
	LocalFeatures  int
	ThreadFeatures int
}

// Config is a fully parsed configuration file.
type Config struct {
	Benchmark      Benchmark
	Kmeans         Kmeans
	Labeling       KernelConfig
	MassUpdate     KernelConfig
	CentroidUpdate KernelConfig
	Fused          KernelConfig
}

var validStrategies = map[gokmeans.Strategy]bool{
	gokmeans.StrategyGlobalAtomic: true,
	gokmeans.StrategyMerge:        true,
	gokmeans.StrategyFeatureSum:   true,
	gokmeans.StrategyMergeSum:     true,
}

var validPointTypes = map[string]bool{"float": true, "double": true}
var validLabelTypes = map[string]bool{"uint32": true, "uint64": true}
var validMassTypes = map[string]bool{"uint32": true, "uint64": true}

// Parse reads and validates the configuration file at path.
func Parse(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, gokmeans.NewError("config.Parse", gokmeans.ConfigParse, err.Error())
	}
	return fromFile(f)
}

func fromFile(f *ini.File) (*Config, error) {
	cfg := &Config{}

	bm := f.Section("benchmark")
	cfg.Benchmark.Runs, _ = bm.Key("runs").Int()
	if cfg.Benchmark.Runs <= 0 {
		return nil, gokmeans.NewError("config.Parse", gokmeans.ConfigParse, "benchmark.runs must be a positive integer")
	}
	cfg.Benchmark.Verify, _ = bm.Key("verify").Bool()

	km := f.Section("kmeans")
	switch pipeline := km.Key("pipeline").String(); pipeline {
	case "three_stage":
		cfg.Kmeans.Pipeline = gokmeans.ThreeStage
	case "fused":
		cfg.Kmeans.Pipeline = gokmeans.Fused
	default:
		return nil, gokmeans.NewError("config.Parse", gokmeans.ConfigParse, fmt.Sprintf("kmeans.pipeline: unknown value %q", pipeline))
	}
	iterations, err := km.Key("iterations").Int()
	if err != nil || iterations < 0 {
		return nil, gokmeans.NewError("config.Parse", gokmeans.ConfigParse, "kmeans.iterations must be a non-negative integer")
	}
	cfg.Kmeans.Iterations = iterations
	cfg.Kmeans.PointType = km.Key("point_type").String()
	if !validPointTypes[cfg.Kmeans.PointType] {
		return nil, gokmeans.NewError("config.Parse", gokmeans.ConfigParse, fmt.Sprintf("kmeans.point_type: unknown value %q", cfg.Kmeans.PointType))
	}
	cfg.Kmeans.LabelType = km.Key("label_type").String()
	if !validLabelTypes[cfg.Kmeans.LabelType] {
		return nil, gokmeans.NewError("config.Parse", gokmeans.ConfigParse, fmt.Sprintf("kmeans.label_type: unknown value %q", cfg.Kmeans.LabelType))
	}
	cfg.Kmeans.MassType = km.Key("mass_type").String()
	if !validMassTypes[cfg.Kmeans.MassType] {
		return nil, gokmeans.NewError("config.Parse", gokmeans.ConfigParse, fmt.Sprintf("kmeans.mass_type: unknown value %q", cfg.Kmeans.MassType))
	}

	if cfg.Kmeans.Pipeline == gokmeans.ThreeStage {
		cfg.Labeling, err = parseKernelSection(f, "labeling")
		if err != nil {
			return nil, err
		}
		cfg.MassUpdate, err = parseKernelSection(f, "mass_update")
		if err != nil {
			return nil, err
		}
		cfg.CentroidUpdate, err = parseKernelSection(f, "centroid_update")
		if err != nil {
			return nil, err
		}
	} else {
		cfg.Fused, err = parseKernelSection(f, "fused")
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func parseKernelSection(f *ini.File, name string) (KernelConfig, error) {
	var kc KernelConfig
	sec := f.Section(name)

	kc.Platform, _ = sec.Key("platform").Int()
	kc.Device, _ = sec.Key("device").Int()

	strategy := gokmeans.Strategy(sec.Key("strategy").String())
	if !validStrategies[strategy] {
		return kc, gokmeans.NewError("config.Parse", gokmeans.ConfigParse, fmt.Sprintf("%s.strategy: unknown value %q", name, strategy))
	}
	kc.Strategy = strategy

	for i, key := range []string{"global_size_x", "global_size_y", "global_size_z"} {
		kc.GlobalSize[i], _ = sec.Key(key).Int()
	}
	for i, key := range []string{"local_size_x", "local_size_y", "local_size_z"} {
		kc.LocalSize[i], _ = sec.Key(key).Int()
	}
	kc.VectorLength, _ = sec.Key("vector_length").Int()
	kc.LocalFeatures, _ = sec.Key("local_features").Int()
	kc.ThreadFeatures, _ = sec.Key("thread_features").Int()

	return kc, nil
}
