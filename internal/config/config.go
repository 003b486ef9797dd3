// Package config defines the configuration model for a trip preparation run
// and the helpers that load it.
//
// A Pipeline is assembled in three layers, each overriding the previous one:
//
//  1. Default(): the values the pipeline was tuned with (seed 42, 70/15/15
//     split, 180 minute duration cap, 99.5th percentile caps, ...).
//  2. An optional pipeline file, JSON or YAML (chosen by extension).
//  3. Environment variables prefixed with TAXIPREP_, e.g.
//     TAXIPREP_SOURCE_PATH or TAXIPREP_SPLIT_SEED.
//
// CLI flags are applied on top by cmd/taxiprep.
//
// Example (trimmed):
//
//	{
//	  "dataset": "yellow_taxi",
//	  "source":  { "path": "data/raw", "year": 2023, "month": 1 },
//	  "transform": [
//	    { "kind": "dedupe" },
//	    { "kind": "require", "options": { "fields": ["fare_amount", "total_amount", "trip_distance"] } },
//	    { "kind": "duration" }, { "kind": "integrity" }, { "kind": "outlier" },
//	    { "kind": "zones" }, { "kind": "time_features" }
//	  ],
//	  "storage": { "kind": "parquet", "path": "data/processed" }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "TAXIPREP"

// Transform kinds understood by the pipeline builder, in their canonical
// order.
const (
	KindDedupe       = "dedupe"
	KindRequire      = "require"
	KindDuration     = "duration"
	KindIntegrity    = "integrity"
	KindOutlier      = "outlier"
	KindZones        = "zones"
	KindTimeFeatures = "time_features"
)

// Pipeline is the top-level configuration of a run.
type Pipeline struct {
	// Job labels metrics and log lines.
	Job string `json:"job" yaml:"job" validate:"required"`

	// Dataset is the prefix of every output artifact, e.g. "yellow_taxi".
	Dataset string `json:"dataset" yaml:"dataset" validate:"required,excludesall=/\\ "`

	Source Source `json:"source" yaml:"source"`
	Zones  Zones  `json:"zones" yaml:"zones"`

	// Transform lists the cleaning and feature stages in execution order.
	// Empty means DefaultTransforms.
	Transform []Transform `json:"transform" yaml:"transform" ignored:"true"`

	Outlier Outlier `json:"outlier" yaml:"outlier"`
	Split   Split   `json:"split" yaml:"split"`
	Storage Storage `json:"storage" yaml:"storage"`
	Logging Logging `json:"logging" yaml:"logging"`
	Metrics Metrics `json:"metrics" yaml:"metrics"`
	Tracing Tracing `json:"tracing" yaml:"tracing"`
}

// Source selects the input files.
type Source struct {
	// Path is a single trip file or a directory of monthly files.
	Path string `json:"path" yaml:"path" validate:"required"`

	// Year and Month restrict directory mode to files whose name encodes
	// YYYY-MM. Zero means "any".
	Year  int `json:"year" yaml:"year" validate:"omitempty,gte=2009,lte=2100"`
	Month int `json:"month" yaml:"month" validate:"omitempty,gte=1,lte=12"`

	// ForceFullRun allows a directory run with neither Year nor Month.
	ForceFullRun bool `json:"force_full_run" yaml:"force_full_run" split_words:"true"`
}

// Zones locates the zone lookup table.
type Zones struct {
	Path string `json:"path" yaml:"path" validate:"required"`
}

// Transform is one stage of the cleaning chain.
type Transform struct {
	// Kind is one of the Kind* constants.
	Kind string `json:"kind" yaml:"kind"`

	// Options is interpreted by the stage, e.g. "fields" for require.
	Options Options `json:"options" yaml:"options"`
}

// Outlier holds the thresholds of the outlier stage.
type Outlier struct {
	MaxDurationMinutes     float64 `json:"max_duration_minutes" yaml:"max_duration_minutes" split_words:"true" validate:"gt=0"`
	MaxDistanceMiles       float64 `json:"max_distance_miles" yaml:"max_distance_miles" split_words:"true" validate:"gt=0"`
	MaxFare                float64 `json:"max_fare" yaml:"max_fare" split_words:"true" validate:"gt=0"`
	ZeroDistanceMaxFare    float64 `json:"zero_distance_max_fare" yaml:"zero_distance_max_fare" split_words:"true" validate:"gte=0"`
	ShortDistanceMiles     float64 `json:"short_distance_miles" yaml:"short_distance_miles" split_words:"true" validate:"gt=0"`
	ShortDistanceMaxFare   float64 `json:"short_distance_max_fare" yaml:"short_distance_max_fare" split_words:"true" validate:"gte=0"`
	LongDistanceMiles      float64 `json:"long_distance_miles" yaml:"long_distance_miles" split_words:"true" validate:"gt=0"`
	LongDistanceMinMinutes float64 `json:"long_distance_min_minutes" yaml:"long_distance_min_minutes" split_words:"true" validate:"gte=0"`
	MinZoneID              int64   `json:"min_zone_id" yaml:"min_zone_id" split_words:"true" validate:"gte=0"`
	MaxZoneID              int64   `json:"max_zone_id" yaml:"max_zone_id" split_words:"true" validate:"gtefield=MinZoneID"`

	// Quantile is the percentile (0,1] used for the fare and total caps.
	Quantile float64 `json:"quantile" yaml:"quantile" validate:"gt=0,lte=1"`
}

// Split configures the train/val/test partition.
type Split struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Seed    uint64 `json:"seed" yaml:"seed"`

	// TrainFraction is the share of all rows assigned to train.
	TrainFraction float64 `json:"train_fraction" yaml:"train_fraction" split_words:"true" validate:"gt=0,lt=1"`

	// ValFraction is the share of the non-train rows assigned to val; the
	// remainder is test.
	ValFraction float64 `json:"val_fraction" yaml:"val_fraction" split_words:"true" validate:"gt=0,lt=1"`
}

// Storage selects the sink.
type Storage struct {
	// Kind is parquet or csv for files, or a registered database backend.
	Kind string `json:"kind" yaml:"kind" validate:"oneof=parquet csv postgres sqlite mssql mysql"`

	// Path is the output directory of file sinks.
	Path string `json:"path" yaml:"path"`

	// DSN is the connection string of database sinks.
	DSN string `json:"dsn" yaml:"dsn"`

	// Schema optionally qualifies table names, e.g. "public" or "dbo".
	Schema string `json:"schema" yaml:"schema"`
}

// IsFile reports whether the storage kind writes files.
func (s Storage) IsFile() bool { return s.Kind == "parquet" || s.Kind == "csv" }

// Logging configures the root logger.
type Logging struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"oneof=json console"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	Backend        string `json:"backend" yaml:"backend" validate:"oneof=none pushgateway datadog"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url" split_words:"true"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr" split_words:"true"`
}

// Tracing toggles the stdout span exporter.
type Tracing struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// DefaultTransforms is the canonical stage order.
func DefaultTransforms() []Transform {
	return []Transform{
		{Kind: KindDedupe, Options: Options{}},
		{Kind: KindRequire, Options: Options{"fields": []any{"fare_amount", "total_amount", "trip_distance"}}},
		{Kind: KindDuration, Options: Options{}},
		{Kind: KindIntegrity, Options: Options{}},
		{Kind: KindOutlier, Options: Options{}},
		{Kind: KindZones, Options: Options{}},
		{Kind: KindTimeFeatures, Options: Options{}},
	}
}

// Default returns the baseline configuration.
func Default() Pipeline {
	return Pipeline{
		Job:     "taxiprep",
		Dataset: "yellow_taxi",
		Source:  Source{Path: "data/raw"},
		Zones:   Zones{Path: "data/taxi_zones.csv"},
		Outlier: Outlier{
			MaxDurationMinutes:     180,
			MaxDistanceMiles:       50,
			MaxFare:                500,
			ZeroDistanceMaxFare:    10,
			ShortDistanceMiles:     1,
			ShortDistanceMaxFare:   50,
			LongDistanceMiles:      20,
			LongDistanceMinMinutes: 10,
			MinZoneID:              1,
			MaxZoneID:              263,
			Quantile:               0.995,
		},
		Split: Split{
			Enabled:       true,
			Seed:          42,
			TrainFraction: 0.70,
			ValFraction:   0.50,
		},
		Storage: Storage{Kind: "parquet", Path: "data/processed"},
		Logging: Logging{Level: "info", Format: "json"},
		Metrics: Metrics{Backend: "none"},
	}
}

// Stages returns the configured transforms, or DefaultTransforms when none
// are configured.
func (p Pipeline) Stages() []Transform {
	if len(p.Transform) == 0 {
		return DefaultTransforms()
	}
	return p.Transform
}

// Load builds a Pipeline from Default, the optional file at path and the
// environment. It does not validate; see ValidatePipeline.
func Load(path string) (Pipeline, error) {
	p := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return p, fmt.Errorf("read config: %w", err)
		}
		if err := Decode(b, filepath.Ext(path), &p); err != nil {
			return p, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &p); err != nil {
		return p, fmt.Errorf("env config: %w", err)
	}
	return p, nil
}

// Decode unmarshals b into p. ext selects YAML for ".yaml"/".yml" and JSON
// otherwise. Fields absent from b keep their current value.
func Decode(b []byte, ext string, p *Pipeline) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, p)
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		return dec.Decode(p)
	}
}
