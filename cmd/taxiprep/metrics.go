package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"taxiprep/internal/config"
	"taxiprep/internal/metrics"
	"taxiprep/internal/metrics/datadog"
	"taxiprep/internal/metrics/prompush"
)

// setupMetrics installs the configured metrics backend. The returned flush
// pushes buffered metrics and must run once the run has finished.
func setupMetrics(m config.Metrics, job string, log zerolog.Logger) (func(), error) {
	var (
		b   metrics.Backend
		err error
	)
	switch m.Backend {
	case "pushgateway":
		url := m.PushgatewayURL
		if url == "" {
			url = prompush.DefaultGatewayURL
		}
		b, err = prompush.NewBackend(job, url)
		log.Debug().Str("url", url).Str("job", job).Msg("metrics: pushgateway")
	case "datadog":
		addr := m.DatadogAddr
		if addr == "" {
			addr = datadog.DefaultAddr
		}
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       addr,
			GlobalTags: []string{"service:taxiprep", "job:" + job},
		})
		log.Debug().Str("addr", addr).Msg("metrics: datadog")
	case "", "none":
		return func() {}, nil
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", m.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn().Err(err).Msg("metrics: flush failed")
		}
		metrics.Reset()
	}, nil
}
