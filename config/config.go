// Package config defines the exporter configuration surface and the factory
// that turns declarative backend selections into running exporters.
//
// Configuration priority: defaults -> YAML file -> environment variables.
package config

import (
	"time"
)

// Config is the complete telemetry configuration.
type Config struct {
	// WorkflowName identifies the application; stamped on every span.
	WorkflowName string `yaml:"workflow_name" env:"WORKFLOW_NAME"`

	// ServiceName overrides the service name reported to backends.
	// Defaults to WorkflowName.
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`

	// Exporters selects one or more backends. With none configured, spans
	// print to the console.
	Exporters []BackendConfig `yaml:"exporters"`
}

// BackendConfig describes one backend destination. Type selects the
// adapter; the remaining fields are a union of per-backend connection
// parameters, each adapter reading only the ones it knows.
type BackendConfig struct {
	// Type is the backend kind: splunk, elasticsearch, otlp, datadog,
	// prometheus, loki, cloudwatch, console or file. An unrecognized kind
	// is a fatal configuration error at setup time.
	Type string `yaml:"type" env:"TYPE"`

	// Shared batching options.
	BatchSize          int           `yaml:"batch_size" env:"BATCH_SIZE"`
	FlushInterval      time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" env:"INSECURE_SKIP_VERIFY"`

	// Splunk / Loki / Prometheus gateway.
	URL        string `yaml:"url" env:"URL"`
	Token      string `yaml:"token" env:"TOKEN"`
	Index      string `yaml:"index" env:"INDEX"`
	SourceType string `yaml:"sourcetype" env:"SOURCETYPE"`

	// Elasticsearch.
	Hosts    []string `yaml:"hosts" env:"HOSTS"`
	APIKey   string   `yaml:"api_key" env:"API_KEY"`
	Username string   `yaml:"username" env:"USERNAME"`
	Password string   `yaml:"password" env:"PASSWORD"`

	// OTLP.
	Endpoint string            `yaml:"endpoint" env:"ENDPOINT"`
	Headers  map[string]string `yaml:"headers"`

	// Datadog.
	Site string `yaml:"site" env:"SITE"`
	Env  string `yaml:"env" env:"ENV"`

	// Prometheus push gateway.
	JobName string `yaml:"job_name" env:"JOB_NAME"`

	// Loki.
	TenantID string            `yaml:"tenant_id" env:"TENANT_ID"`
	Labels   map[string]string `yaml:"labels"`

	// CloudWatch.
	LogGroup        string `yaml:"log_group" env:"LOG_GROUP"`
	LogStream       string `yaml:"log_stream" env:"LOG_STREAM"`
	Region          string `yaml:"region" env:"REGION"`
	AccessKeyID     string `yaml:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SECRET_ACCESS_KEY"`

	// File.
	Path         string `yaml:"path" env:"PATH"`
	RotateSizeMB int64  `yaml:"rotate_size_mb" env:"ROTATE_SIZE_MB"`

	// Console.
	Colored bool `yaml:"colored" env:"COLORED"`
	Verbose bool `yaml:"verbose" env:"VERBOSE"`
}

// Service returns the effective service name.
func (c *Config) Service() string {
	if c.ServiceName != "" {
		return c.ServiceName
	}
	return c.WorkflowName
}

// Option configures a Config built programmatically via New.
type Option func(*Config)

// New builds a Config for the named workflow from functional options.
func New(workflowName string, opts ...Option) *Config {
	cfg := &Config{WorkflowName: workflowName}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithServiceName overrides the reported service name.
func WithServiceName(name string) Option {
	return func(c *Config) { c.ServiceName = name }
}

// WithBackend appends a fully-specified backend.
func WithBackend(b BackendConfig) Option {
	return func(c *Config) { c.Exporters = append(c.Exporters, b) }
}

// WithConsole prints spans to stdout, colored.
func WithConsole() Option {
	return WithBackend(BackendConfig{Type: "console", Colored: true})
}

// WithFile appends spans as JSON lines to path.
func WithFile(path string) Option {
	return WithBackend(BackendConfig{Type: "file", Path: path})
}

// WithSplunk sends spans to a Splunk HTTP Event Collector.
func WithSplunk(url, token string) Option {
	return WithBackend(BackendConfig{Type: "splunk", URL: url, Token: token})
}

// WithElasticsearch indexes spans into the given Elasticsearch hosts.
func WithElasticsearch(hosts ...string) Option {
	return WithBackend(BackendConfig{Type: "elasticsearch", Hosts: hosts})
}

// WithOTLP sends spans to an OTLP/HTTP collector endpoint.
func WithOTLP(endpoint string) Option {
	return WithBackend(BackendConfig{Type: "otlp", Endpoint: endpoint})
}

// WithDatadog sends spans to the Datadog trace intake.
func WithDatadog(apiKey string) Option {
	return WithBackend(BackendConfig{Type: "datadog", APIKey: apiKey})
}

// WithPrometheus pushes metrics to a Prometheus push gateway.
func WithPrometheus(gatewayURL string) Option {
	return WithBackend(BackendConfig{Type: "prometheus", URL: gatewayURL})
}

// WithLoki pushes spans as log streams to Grafana Loki.
func WithLoki(url string) Option {
	return WithBackend(BackendConfig{Type: "loki", URL: url})
}

// WithCloudWatch sends spans to AWS CloudWatch Logs.
func WithCloudWatch(logGroup string) Option {
	return WithBackend(BackendConfig{Type: "cloudwatch", LogGroup: logGroup})
}
