// Package config loads the router's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/azybler/tour_router/pkg/graph"
)

var validate = validator.New()

// Config is the top-level configuration. Command-line flags override it.
type Config struct {
	Graph   GraphConfig   `yaml:"graph"`
	POIs    POIConfig     `yaml:"pois"`
	Profile ProfileConfig `yaml:"profile"`
	Spatial SpatialConfig `yaml:"spatial"`
	Routing RoutingConfig `yaml:"routing"`
	Logging LoggingConfig `yaml:"logging"`
}

// GraphConfig locates the graph file (text or snapshot).
type GraphConfig struct {
	Path string `yaml:"path"`
}

// POIConfig locates the optional points-of-interest file.
type POIConfig struct {
	Path string `yaml:"path"`
	// MaxSnapMeters bounds nearest-POI lookups.
	MaxSnapMeters float64 `yaml:"max_snap_meters" validate:"gte=0"`
}

// ProfileConfig selects how edges are costed. An empty ClassWeights keeps
// the built-in car weights.
type ProfileConfig struct {
	Name         string             `yaml:"name"`
	Weighted     bool               `yaml:"weighted"`
	ClassWeights map[string]float64 `yaml:"class_weights" validate:"dive,gt=0"`
	Excluded     []string           `yaml:"excluded"`
}

// Custom reports whether the section overrides the profile stored with a
// graph.
func (p ProfileConfig) Custom() bool {
	return len(p.ClassWeights) > 0 || len(p.Excluded) > 0
}

// SpatialConfig tunes the nearest-node grid.
type SpatialConfig struct {
	NodesPerCell float64 `yaml:"nodes_per_cell" validate:"gt=0"`
	ExtraRings   int     `yaml:"extra_rings" validate:"gte=0,lte=64"`
}

// RoutingConfig tunes the shortest-path engine. Zero capacity sizes the
// queue from the node count.
type RoutingConfig struct {
	QueueCapacity int `yaml:"queue_capacity" validate:"gte=0"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		POIs:    POIConfig{MaxSnapMeters: 500},
		Profile: ProfileConfig{Name: "car"},
		Spatial: SpatialConfig{NodesPerCell: 4, ExtraRings: 2},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and validates the file at path on top of Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and road class names.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.BuildProfile(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// BuildProfile turns the profile section into a graph.Profile.
func (c Config) BuildProfile() (graph.Profile, error) {
	name := c.Profile.Name
	if name == "" {
		name = "car"
	}

	p := graph.DefaultProfile()
	p.Name = name
	if len(c.Profile.ClassWeights) > 0 {
		var err error
		if p, err = graph.NewProfile(name, c.Profile.ClassWeights); err != nil {
			return graph.Profile{}, err
		}
	}

	excluded := make([]uint8, 0, len(c.Profile.Excluded))
	for _, n := range c.Profile.Excluded {
		cls, ok := graph.ClassByName(n)
		if !ok {
			return graph.Profile{}, fmt.Errorf("profile %q: unknown excluded road class %q", name, n)
		}
		excluded = append(excluded, cls)
	}
	return p.Without(excluded...), nil
}
