// CLAUDE:SUMMARY Pipeline configuration with defaults and YAML source definitions.
package veraz

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/veraz/veraz/internal/collector"
)

// Policy decides what happens when a source errors or returns no offers.
type Policy string

const (
	// PolicySubstitute falls back to the source's built-in demo collector.
	PolicySubstitute Policy = "substitute"
	// PolicyError records the source as failed and moves on.
	PolicyError Policy = "error"
)

// SourceConfig declares one retailer source.
type SourceConfig struct {
	Name   string               `yaml:"name"`
	Domain string               `yaml:"domain"`
	Kind   collector.Kind       `yaml:"kind"` // api | demo
	API    *collector.APIConfig `yaml:"api,omitempty"`
}

// Config drives the pipeline. Zero values are filled in by defaults().
type Config struct {
	// ScoringVersion tags every persisted evaluation. Defaults to the
	// engine's built-in version; pin it explicitly to re-score history
	// under a new formula without losing old verdicts.
	ScoringVersion string

	// HistoryLimit caps how many of a listing's own points feed scoring.
	HistoryLimit int
	// CrossStoreLimit caps how many peer prices feed scoring.
	CrossStoreLimit int

	// OnEmptySource is the degraded-source policy.
	OnEmptySource Policy

	// DedupeSize is the capacity of the seen-offer-hash cache.
	DedupeSize int

	// Interval between scheduled cycles when running under Start.
	Interval time.Duration

	Sources []SourceConfig
}

func (c *Config) defaults() {
	if c.ScoringVersion == "" {
		c.ScoringVersion = DefaultScoringVersion
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 120
	}
	if c.CrossStoreLimit <= 0 {
		c.CrossStoreLimit = 20
	}
	if c.OnEmptySource == "" {
		c.OnEmptySource = PolicySubstitute
	}
	if c.DedupeSize <= 0 {
		c.DedupeSize = 8192
	}
	if c.Interval <= 0 {
		c.Interval = 6 * time.Hour
	}
}

func (c *Config) validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	if c.OnEmptySource != PolicySubstitute && c.OnEmptySource != PolicyError {
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, c.OnEmptySource)
	}
	return nil
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources reads source definitions from a YAML file.
func LoadSources(path string) ([]SourceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	var f sourcesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse sources %s: %w", path, err)
	}
	return f.Sources, nil
}

// DefaultSources are the built-in demo retailers, used when no sources file
// is configured.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{Name: "Salcobrand", Domain: "salcobrand.cl", Kind: collector.KindDemo},
		{Name: "Cruz Verde", Domain: "cruzverde.cl", Kind: collector.KindDemo},
	}
}
