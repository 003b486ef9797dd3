package builtin

import (
	"fmt"

	"taxiprep/internal/config"
	"taxiprep/internal/transformer"
)

// Deps are the run-scoped resources stages are built with.
type Deps struct {
	// Zones serves the zones stage. It is loaded once per run and only read.
	Zones ZoneLookup
	// Outlier holds the default outlier limits; a transform may override
	// the quantile through its "quantile" option.
	Outlier config.Outlier
}

// Build returns the stage configured by t.
func Build(t config.Transform, deps Deps) (transformer.Stage, error) {
	switch t.Kind {
	case config.KindDedupe:
		return DeDup{}, nil
	case config.KindRequire:
		return Require{Fields: t.Options.StringSlice("fields")}, nil
	case config.KindDuration:
		return Duration{}, nil
	case config.KindIntegrity:
		return Integrity{}, nil
	case config.KindOutlier:
		limits := deps.Outlier
		limits.Quantile = t.Options.Float("quantile", limits.Quantile)
		return Outlier{Limits: limits}, nil
	case config.KindZones:
		if deps.Zones == nil {
			return nil, fmt.Errorf("zones stage needs a zone lookup")
		}
		return ZoneEnricher{Lookup: deps.Zones}, nil
	case config.KindTimeFeatures:
		return TimeFeatures{}, nil
	default:
		return nil, fmt.Errorf("unknown transform kind %q", t.Kind)
	}
}

// BuildChain builds every transform in order.
func BuildChain(ts []config.Transform, deps Deps) (transformer.Chain, error) {
	chain := make(transformer.Chain, 0, len(ts))
	for i, t := range ts {
		s, err := Build(t, deps)
		if err != nil {
			return nil, fmt.Errorf("transform[%d]: %w", i, err)
		}
		chain = append(chain, s)
	}
	return chain, nil
}
