package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/efebarandurmaz/importgraph/internal/classify"
	"github.com/efebarandurmaz/importgraph/internal/depgraph"
	"github.com/efebarandurmaz/importgraph/internal/ir"
	"github.com/efebarandurmaz/importgraph/internal/qualitygate"
)

// EnvPrefix prefixes every environment override, e.g. IMPORTGRAPH_SCAN_ROOT.
const EnvPrefix = "IMPORTGRAPH"

// Config holds all application configuration.
type Config struct {
	Scan     ScanConfig             `mapstructure:"scan"`
	Preset   classify.Preset        `mapstructure:"preset"`
	Graph    GraphConfig            `mapstructure:"graph"`
	Output   OutputConfig           `mapstructure:"output"`
	Gates    qualitygate.GateConfig `mapstructure:"gates"`
	Store    StoreConfig            `mapstructure:"store"`
	Neo4j    Neo4jConfig            `mapstructure:"neo4j"`
	Temporal TemporalConfig         `mapstructure:"temporal"`
	Tracing  TracingConfig          `mapstructure:"tracing"`
	Server   ServerConfig           `mapstructure:"server"`
	Log      LogConfig              `mapstructure:"log"`
}

type ScanConfig struct {
	Root       string   `mapstructure:"root"`
	Language   string   `mapstructure:"language"`
	SkipFailed bool     `mapstructure:"skip_failed"`
	Workers    int      `mapstructure:"workers"` // 0 selects GOMAXPROCS
	Exclude    []string `mapstructure:"exclude"`
}

type GraphConfig struct {
	Include depgraph.Include `mapstructure:"include"`
	Palette depgraph.Palette `mapstructure:"palette"`
}

type OutputConfig struct {
	// Dir defaults to the scanned root when empty.
	Dir     string   `mapstructure:"dir"`
	Formats []string `mapstructure:"formats"`
}

type StoreConfig struct {
	Dir       string `mapstructure:"dir"`
	CacheSize int    `mapstructure:"cache_size"`
}

type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
}

type ServerConfig struct {
	HealthAddr string `mapstructure:"health_addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Output formats understood by the pipeline.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatDOT     = "dot"
	FormatMermaid = "mermaid"
)

var knownFormats = map[string]bool{FormatText: true, FormatJSON: true, FormatDOT: true, FormatMermaid: true}

// Default returns the configuration used when neither a file nor the
// environment sets a key.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Language: "python",
			Exclude:  []string{".git", "__pycache__", ".venv", "venv", "node_modules"},
		},
		Preset: classify.DefaultPreset(),
		Graph: GraphConfig{
			Include: depgraph.IncludeAll(),
			Palette: depgraph.DefaultPalette(),
		},
		Output: OutputConfig{Formats: []string{FormatText}},
		Gates:  *qualitygate.DefaultConfig(),
		Store:  StoreConfig{Dir: ".importgraph", CacheSize: 16},
		Temporal: TemporalConfig{
			Host:      "localhost:7233",
			Namespace: "default",
			TaskQueue: "importgraph",
		},
		Tracing: TracingConfig{ServiceName: "importgraph", SampleRate: 1.0},
		Server:  ServerConfig{HealthAddr: ":8081"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("scan.root", d.Scan.Root)
	v.SetDefault("scan.language", d.Scan.Language)
	v.SetDefault("scan.skip_failed", d.Scan.SkipFailed)
	v.SetDefault("scan.workers", d.Scan.Workers)
	v.SetDefault("scan.exclude", d.Scan.Exclude)
	v.SetDefault("preset.common_set", d.Preset.Common)
	v.SetDefault("preset.uncommon_set", d.Preset.Uncommon)
	v.SetDefault("graph.include.common", d.Graph.Include.Common)
	v.SetDefault("graph.include.uncommon", d.Graph.Include.Uncommon)
	v.SetDefault("graph.include.custom", d.Graph.Include.Custom)
	v.SetDefault("graph.palette.top_level", d.Graph.Palette.TopLevel)
	v.SetDefault("graph.palette.common", d.Graph.Palette.Common)
	v.SetDefault("graph.palette.uncommon", d.Graph.Palette.Uncommon)
	v.SetDefault("graph.palette.custom", d.Graph.Palette.Custom)
	v.SetDefault("graph.palette.edge", d.Graph.Palette.Edge)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.formats", d.Output.Formats)
	v.SetDefault("gates.enabled", d.Gates.Enabled)
	v.SetDefault("gates.max_failures", d.Gates.MaxFailures)
	v.SetDefault("gates.failure_severity", d.Gates.FailureSeverity)
	v.SetDefault("gates.max_depth", d.Gates.MaxDepth)
	v.SetDefault("gates.depth_severity", d.Gates.DepthSeverity)
	v.SetDefault("gates.max_fan_out", d.Gates.MaxFanOut)
	v.SetDefault("gates.fan_out_severity", d.Gates.FanOutSeverity)
	v.SetDefault("gates.max_top_level", d.Gates.MaxTopLevel)
	v.SetDefault("gates.top_level_severity", d.Gates.TopLevelSeverity)
	v.SetDefault("gates.max_uncommon", d.Gates.MaxUncommon)
	v.SetDefault("gates.uncommon_severity", d.Gates.UncommonSeverity)
	v.SetDefault("gates.forbidden", d.Gates.Forbidden)
	v.SetDefault("gates.forbidden_severity", d.Gates.ForbiddenSeverity)
	v.SetDefault("store.dir", d.Store.Dir)
	v.SetDefault("store.cache_size", d.Store.CacheSize)
	v.SetDefault("neo4j.uri", d.Neo4j.URI)
	v.SetDefault("neo4j.username", d.Neo4j.Username)
	v.SetDefault("neo4j.password", d.Neo4j.Password)
	v.SetDefault("temporal.host", d.Temporal.Host)
	v.SetDefault("temporal.namespace", d.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", d.Temporal.TaskQueue)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)
	v.SetDefault("server.health_addr", d.Server.HealthAddr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Neo4j.URI != "" && c.Neo4j.Password == "" {
		warnings = append(warnings, fmt.Sprintf("neo4j uri '%s' is configured but password is empty", c.Neo4j.URI))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0] and will be clamped", c.Tracing.SampleRate))
	}

	if _, ok := parseLevel(c.Log.Level); !ok {
		warnings = append(warnings, fmt.Sprintf("log level '%s' is unknown, using info", c.Log.Level))
	}

	if c.Scan.Workers > 256 {
		warnings = append(warnings, fmt.Sprintf("scan workers %d is unusually high", c.Scan.Workers))
	}

	if c.Store.CacheSize <= 0 {
		warnings = append(warnings, "store cache_size is not positive, snapshot caching is disabled")
	}

	return warnings
}

// Check returns a *ir.ConfigurationError when the configuration cannot
// drive an analysis.
func (c *Config) Check() error {
	if c.Scan.Root == "" {
		return &ir.ConfigurationError{Field: "scan.root", Reason: "root directory is required"}
	}
	if c.Scan.Language == "" {
		return &ir.ConfigurationError{Field: "scan.language", Reason: "language is required"}
	}
	if c.Scan.Workers < 0 {
		return &ir.ConfigurationError{Field: "scan.workers", Value: fmt.Sprint(c.Scan.Workers), Reason: "must not be negative"}
	}
	if !c.Graph.Include.Any() {
		return &ir.ConfigurationError{
			Field:  "graph.include",
			Reason: "at least one of common, uncommon or custom must be included",
		}
	}
	if err := c.Preset.Check(); err != nil {
		return err
	}
	for _, f := range c.Output.Formats {
		if !knownFormats[f] {
			return &ir.ConfigurationError{Field: "output.formats", Value: f, Reason: "unknown format"}
		}
	}
	return nil
}

// Load reads configuration from an optional file, a .env file in the
// working directory and the environment, in increasing precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) {
				return nil, &ir.IOError{Path: path, Op: "read config", Err: pathErr.Err}
			}
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

// NewLogger builds the slog logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
