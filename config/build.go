package config

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/traceflow/export"
)

// ErrUnknownExporter is wrapped by BuildExporter when a backend type is not
// recognized.
var ErrUnknownExporter = errors.New("unknown exporter type")

// BuildExporter constructs the exporter tree described by cfg. With no
// backends configured the spans go to a colored console printer; with more
// than one, they fan out through a MultiExporter. The returned exporter has
// not been started.
func BuildExporter(cfg *Config, logger *zap.Logger) (export.Exporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	backends := cfg.Exporters
	if len(backends) == 0 {
		backends = []BackendConfig{{Type: "console", Colored: true}}
	}

	exporters := make([]export.Exporter, 0, len(backends))
	for i, b := range backends {
		e, err := buildBackend(cfg, b, logger)
		if err != nil {
			return nil, fmt.Errorf("exporter %d (%s): %w", i, b.Type, err)
		}
		exporters = append(exporters, e)
	}

	if len(exporters) == 1 {
		return exporters[0], nil
	}
	return export.NewMultiExporter(exporters, logger), nil
}

func buildBackend(cfg *Config, b BackendConfig, logger *zap.Logger) (export.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(b.Type)) {
	case "", "console":
		return export.NewConsoleExporter(export.ConsoleConfig{
			Colored: b.Colored,
			Verbose: b.Verbose,
		}), nil

	case "file":
		return export.NewFileExporter(export.FileConfig{
			Path:         b.Path,
			RotateSizeMB: b.RotateSizeMB,
			Logger:       logger,
		}), nil

	case "splunk":
		return export.NewSplunkExporter(export.SplunkConfig{
			URL:                b.URL,
			Token:              b.Token,
			Index:              b.Index,
			SourceType:         b.SourceType,
			InsecureSkipVerify: b.InsecureSkipVerify,
			BatchSize:          b.BatchSize,
			FlushInterval:      b.FlushInterval,
			Logger:             logger,
		})

	case "elasticsearch", "elastic", "es":
		return export.NewElasticsearchExporter(export.ElasticsearchConfig{
			Hosts:              b.Hosts,
			Index:              b.Index,
			APIKey:             b.APIKey,
			Username:           b.Username,
			Password:           b.Password,
			InsecureSkipVerify: b.InsecureSkipVerify,
			BatchSize:          b.BatchSize,
			FlushInterval:      b.FlushInterval,
			Logger:             logger,
		}), nil

	case "otlp", "opentelemetry", "otel":
		return export.NewOTLPExporter(export.OTLPConfig{
			Endpoint:           b.Endpoint,
			Headers:            b.Headers,
			ServiceName:        cfg.Service(),
			InsecureSkipVerify: b.InsecureSkipVerify,
			BatchSize:          b.BatchSize,
			FlushInterval:      b.FlushInterval,
			Logger:             logger,
		}), nil

	case "datadog":
		return export.NewDatadogExporter(export.DatadogConfig{
			APIKey:        b.APIKey,
			Site:          b.Site,
			ServiceName:   cfg.Service(),
			Env:           b.Env,
			BatchSize:     b.BatchSize,
			FlushInterval: b.FlushInterval,
			Logger:        logger,
		})

	case "prometheus":
		return export.NewPrometheusExporter(export.PrometheusConfig{
			GatewayURL: b.URL,
			JobName:    b.JobName,
			Username:   b.Username,
			Password:   b.Password,
			Logger:     logger,
		}), nil

	case "loki":
		return export.NewLokiExporter(export.LokiConfig{
			URL:           b.URL,
			TenantID:      b.TenantID,
			Username:      b.Username,
			Password:      b.Password,
			Labels:        b.Labels,
			BatchSize:     b.BatchSize,
			FlushInterval: b.FlushInterval,
			Logger:        logger,
		}), nil

	case "cloudwatch", "aws":
		return export.NewCloudWatchExporter(export.CloudWatchConfig{
			LogGroup:        b.LogGroup,
			LogStream:       b.LogStream,
			Region:          b.Region,
			AccessKeyID:     b.AccessKeyID,
			SecretAccessKey: b.SecretAccessKey,
			BatchSize:       b.BatchSize,
			FlushInterval:   b.FlushInterval,
			Logger:          logger,
		}), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, b.Type)
	}
}
