// Package config loads the nestcore YAML configuration: nest blocks, laying
// species, items, world pacing, storage, archive blobs, audit transport and
// the admin HTTP listener.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"nestcore/internal/audit"
	"nestcore/internal/blob"
	"nestcore/internal/core"
	"nestcore/internal/nest"
	"nestcore/internal/world"
	"nestcore/pkg/domain"
)

// Config represents the application configuration.
type Config struct {
	Blocks  map[string]BlockConfig   `yaml:"blocks"`
	Species map[string]SpeciesConfig `yaml:"species"`
	Items   map[string]ItemConfig    `yaml:"items"`
	World   WorldConfig              `yaml:"world"`
	Storage core.StorageConfig       `yaml:"storage"`
	Blob    blob.Config              `yaml:"blob"`
	Audit   AuditConfig              `yaml:"audit"`
	HTTP    HTTPConfig               `yaml:"http"`
	Metrics MetricsConfig            `yaml:"metrics"`
}

// BlockConfig describes a nest block type.
type BlockConfig struct {
	QuantitySlots      int      `yaml:"quantity_slots"`
	InventoryClassName string   `yaml:"inventory_class_name,omitempty"`
	Accepts            []string `yaml:"accepts,omitempty"`
	SuitableOccupiers  []string `yaml:"suitable_occupiers,omitempty"`
}

// SpeciesConfig is the laying profile of a creature code.
type SpeciesConfig struct {
	EggTypes       []string `yaml:"egg_types"`
	Chick          string   `yaml:"chick,omitempty"`
	IncubationDays float64  `yaml:"incubation_days"`
}

// ItemConfig registers an item code.
type ItemConfig struct {
	PlaceSound string `yaml:"place_sound,omitempty"`
}

// WorldConfig paces the simulated calendar.
type WorldConfig struct {
	DaysPerSecond float64       `yaml:"days_per_second"`
	StartDay      float64       `yaml:"start_day"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	StackLimit    int           `yaml:"stack_limit"`
}

// AuditConfig selects audit sinks. The log sink is always on; NATS is used
// when a URL is set.
type AuditConfig struct {
	audit.NATSConfig `yaml:",inline"`
	RingSize         int `yaml:"ring_size"`
}

// HTTPConfig configures the admin listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration: one single-slot henbox, the
// chicken as the only laying species and a sqlite store.
func Default() *Config {
	return &Config{
		Blocks: map[string]BlockConfig{
			"henbox": {QuantitySlots: 1, SuitableOccupiers: []string{"chicken-hen"}},
		},
		Species: map[string]SpeciesConfig{
			"chicken-hen": {EggTypes: []string{nest.DefaultEggItem}, Chick: "game:chicken-baby", IncubationDays: 5},
		},
		Items: map[string]ItemConfig{
			nest.DefaultEggItem: {},
		},
		World:   WorldConfig{DaysPerSecond: 1.0 / 60, TickInterval: nest.TickInterval, StackLimit: world.DefaultStackLimit},
		Storage: core.StorageConfig{Driver: core.StorageSQLite},
		Blob:    blob.Config{Driver: blob.DriverFilesystem},
		Audit:   AuditConfig{RingSize: audit.DefaultRingSize},
		HTTP:    HTTPConfig{Addr: ":8090"},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads a configuration file. Variables from .env files next to the
// file and in the working directory are loaded first without overriding
// the environment; ${VAR} references are then expanded. An empty path
// returns the defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	loadEnvFiles(path)
	if path == "" {
		cfg := Default()
		applyEnvOverrides(cfg)
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := Default()
	defaults := *cfg
	// Catalog sections replace the defaults wholesale instead of merging.
	cfg.Blocks, cfg.Species, cfg.Items = nil, nil, nil
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(raw))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Blocks == nil {
		cfg.Blocks = defaults.Blocks
	}
	if cfg.Species == nil {
		cfg.Species = defaults.Species
	}
	if cfg.Items == nil {
		cfg.Items = defaults.Items
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadEnvFiles(path string) {
	seen := map[string]bool{}
	candidates := []string{".env"}
	if path != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(path), ".env")}, candidates...)
	}
	for _, c := range candidates {
		abs, err := filepath.Abs(c)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		_ = godotenv.Load(abs)
	}
}

// applyEnvOverrides lets NESTCORE_* variables win over file values.
func applyEnvOverrides(cfg *Config) {
	env := core.StorageConfigFromEnv()
	if env.Driver != "" {
		cfg.Storage.Driver = env.Driver
	}
	if env.SQLitePath != "" {
		cfg.Storage.SQLitePath = env.SQLitePath
	}
	if env.PostgresDSN != "" {
		cfg.Storage.PostgresDSN = env.PostgresDSN
	}

	b := blob.ConfigFromEnv()
	if b.Driver != "" {
		cfg.Blob.Driver = b.Driver
	}
	if b.Root != "" {
		cfg.Blob.Root = b.Root
	}
	for dst, src := range map[*string]string{
		&cfg.Blob.S3.Bucket:   b.S3.Bucket,
		&cfg.Blob.S3.Region:   b.S3.Region,
		&cfg.Blob.S3.Endpoint: b.S3.Endpoint,
		&cfg.Blob.S3.Prefix:   b.S3.Prefix,
	} {
		if src != "" {
			*dst = src
		}
	}
	if b.S3.PathStyle {
		cfg.Blob.S3.PathStyle = true
	}

	if v := os.Getenv("NESTCORE_AUDIT_NATS_URL"); v != "" {
		cfg.Audit.URL = v
	}
	if v := os.Getenv("NESTCORE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Blocks) == 0 {
		errs = append(errs, errors.New("at least one nest block is required"))
	}
	for code, b := range c.Blocks {
		if b.QuantitySlots <= 0 {
			errs = append(errs, fmt.Errorf("block %s: quantity_slots must be positive", code))
		}
	}
	for code, s := range c.Species {
		if s.IncubationDays < 0 {
			errs = append(errs, fmt.Errorf("species %s: incubation_days must not be negative", code))
		}
		for _, egg := range s.EggTypes {
			if _, ok := c.Items[egg]; !ok {
				errs = append(errs, fmt.Errorf("species %s: egg type %s is not a registered item", code, egg))
			}
		}
	}
	if c.World.DaysPerSecond < 0 {
		errs = append(errs, errors.New("world.days_per_second must not be negative"))
	}
	if c.World.TickInterval <= 0 {
		errs = append(errs, errors.New("world.tick_interval must be positive"))
	}
	switch c.Storage.Driver {
	case "", core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	return errors.Join(errs...)
}

// BlockConfigs returns the nest block configurations ordered by code.
func (c *Config) BlockConfigs() []nest.BlockConfig {
	out := make([]nest.BlockConfig, 0, len(c.Blocks))
	for code, b := range c.Blocks {
		out = append(out, nest.BlockConfig{
			Code:               code,
			QuantitySlots:      b.QuantitySlots,
			InventoryClassName: b.InventoryClassName,
			Accepts:            append([]string(nil), b.Accepts...),
			SuitableOccupiers:  append([]string(nil), b.SuitableOccupiers...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Catalog converts the species and item sections for world.Catalog.
func (c *Config) Catalog() (map[string]world.Species, map[string]world.Item) {
	species := make(map[string]world.Species, len(c.Species))
	for code, s := range c.Species {
		species[code] = world.Species{
			EggTypes:       append([]string(nil), s.EggTypes...),
			Chick:          domain.SpeciesID(s.Chick),
			IncubationDays: s.IncubationDays,
		}
	}
	items := make(map[string]world.Item, len(c.Items))
	for code, it := range c.Items {
		items[code] = world.Item{PlaceSound: it.PlaceSound}
	}
	return species, items
}

// WorldOptions builds the world from the configuration.
func (c *Config) WorldOptions() world.Options {
	species, items := c.Catalog()
	return world.Options{
		StartDay:      c.World.StartDay,
		DaysPerSecond: c.World.DaysPerSecond,
		StackLimit:    c.World.StackLimit,
		Species:       species,
		Items:         items,
	}
}
