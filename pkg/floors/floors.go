// Package floors loads the governance floor configuration.
//
// A floor is the minimum acceptable value for a governed metric. Two keys are
// not metrics: psi_min (composite score minimum) and tri_witness (quorum
// minimum). The configuration is immutable once loaded and safe to share
// between goroutines.
package floors

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Well-known keys.
const (
	Truth      = "truth"
	DeltaS     = "delta_s"
	Peace2     = "peace2"
	KappaR     = "kappa_r"
	Rasa       = "rasa"
	Amanah     = "amanah"
	PsiMin     = "psi_min"
	TriWitness = "tri_witness"
)

// PathEnv names the environment override for the floors document.
const PathEnv = "TEARFRAME_FLOORS_PATH"

// SupportedSchema is the range of floors document versions this build reads.
const SupportedSchema = "^1"

// Documented defaults, used when a key is absent from the loaded document.
var defaults = map[string]float64{
	Truth:      0.99,
	DeltaS:     0.0,
	Peace2:     1.0,
	KappaR:     0.95,
	Rasa:       0.85,
	Amanah:     0.9,
	PsiMin:     0.95,
	TriWitness: 0.95,
}

//go:embed floors.yaml
var embedded []byte

// Config maps floor names to thresholds.
type Config struct {
	values        map[string]float64
	schemaVersion string
}

// New builds a Config from a plain map. The map is copied.
func New(values map[string]float64) Config {
	c := Config{values: make(map[string]float64, len(values))}
	for k, v := range values {
		c.values[k] = v
	}
	return c
}

// Get returns the floor for key, falling back to the documented default and
// then to fallback.
func (c Config) Get(key string, fallback float64) float64 {
	if v, ok := c.values[key]; ok {
		return v
	}
	if v, ok := defaults[key]; ok {
		return v
	}
	return fallback
}

// Lookup returns the configured floor for key without applying defaults.
func (c Config) Lookup(key string) (float64, bool) {
	v, ok := c.values[key]
	return v, ok
}

// PsiMin is the composite score minimum.
func (c Config) PsiMin() float64 { return c.Get(PsiMin, 0.95) }

// TriWitness is the tri-witness quorum minimum.
func (c Config) TriWitness() float64 { return c.Get(TriWitness, 0.95) }

// Map returns a copy of the configured values.
func (c Config) Map() map[string]float64 {
	out := make(map[string]float64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Keys returns the configured keys in sorted order.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SchemaVersion is the schema_version declared by the source document, if any.
func (c Config) SchemaVersion() string { return c.schemaVersion }

// Parse reads a floors document. Both the sectioned form
//
//	schema_version: 1.0.0
//	floors:
//	  truth: 0.99
//
// and a flat key: value mapping are accepted.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse floors: %w", err)
	}

	cfg := Config{values: make(map[string]float64)}
	if v, ok := raw["schema_version"]; ok {
		version := fmt.Sprint(v)
		if err := checkSchema(version); err != nil {
			return Config{}, err
		}
		cfg.schemaVersion = version
		delete(raw, "schema_version")
	}

	entries := raw
	if section, ok := raw["floors"]; ok {
		m, ok := section.(map[string]any)
		if !ok {
			return Config{}, errors.New("parse floors: 'floors' must be a mapping")
		}
		entries = m
	}

	for key, value := range entries {
		f, err := toFloat(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse floors: key %q: %w", key, err)
		}
		cfg.values[key] = f
	}
	return cfg, nil
}

// Load reads a floors document from path. A missing file yields the embedded
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Parse(embedded)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Parse(embedded)
		}
		return Config{}, fmt.Errorf("load floors %q: %w", path, err)
	}
	return Parse(data)
}

var (
	defaultOnce sync.Once
	defaultCfg  Config
	defaultErr  error
)

// Default returns the process-wide configuration, loaded once from
// TEARFRAME_FLOORS_PATH (or the embedded document).
func Default() (Config, error) {
	defaultOnce.Do(func() {
		defaultCfg, defaultErr = Load(os.Getenv(PathEnv))
	})
	return defaultCfg, defaultErr
}

// MustDefault is Default for callers that cannot proceed without floors.
func MustDefault() Config {
	cfg, err := Default()
	if err != nil {
		panic(err)
	}
	return cfg
}

func checkSchema(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("parse floors: schema_version %q: %w", version, err)
	}
	constraint, err := semver.NewConstraint(SupportedSchema)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("parse floors: schema_version %s not supported (want %s)", version, SupportedSchema)
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
