package config

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"github.com/couchcryptid/storm-outage-risk/internal/fusion"
	"github.com/couchcryptid/storm-outage-risk/internal/severity"
	"github.com/spf13/viper"
)

// WeatherVariable declares a weather input and the global range its level
// windows span.
type WeatherVariable struct {
	Name string  `mapstructure:"name"`
	Min  float64 `mapstructure:"min"`
	Max  float64 `mapstructure:"max"`
}

// FeatureSpec configures one physical feature of a node or edge.
type FeatureSpec struct {
	Name string         `mapstructure:"name"`
	Mean severity.Range `mapstructure:"mean"`
	Std  severity.Range `mapstructure:"std"`
	// Inverted bins the largest raw value as level 1.
	Inverted  bool     `mapstructure:"inverted"`
	ManualMin *float64 `mapstructure:"manual_min"`
	ManualMax *float64 `mapstructure:"manual_max"`
}

// BinOptions returns the binning options for the feature.
func (f FeatureSpec) BinOptions() severity.BinOptions {
	return severity.BinOptions{Inverted: f.Inverted, Min: f.ManualMin, Max: f.ManualMax}
}

// ComponentSpec configures the features and fusion weights of one component kind.
type ComponentSpec struct {
	Features []FeatureSpec       `mapstructure:"features"`
	Fusion   map[string][]float64 `mapstructure:"fusion"`
}

// FeatureNames returns the configured feature names in order.
func (c ComponentSpec) FeatureNames() []string {
	names := make([]string, len(c.Features))
	for i, f := range c.Features {
		names[i] = f.Name
	}
	return names
}

// MeanRanges returns the configured mean range per feature.
func (c ComponentSpec) MeanRanges() map[string]severity.Range {
	out := make(map[string]severity.Range, len(c.Features))
	for _, f := range c.Features {
		out[f.Name] = f.Mean
	}
	return out
}

// StdRanges returns the configured std range per feature.
func (c ComponentSpec) StdRanges() map[string]severity.Range {
	out := make(map[string]severity.Range, len(c.Features))
	for _, f := range c.Features {
		out[f.Name] = f.Std
	}
	return out
}

// Weights returns the fusion weights as fusion.Weights.
func (c ComponentSpec) Weights() fusion.Weights {
	return fusion.Weights(c.Fusion)
}

// Model is the outage model: severity levels, weather level tables, per-kind
// features and fusion weights.
type Model struct {
	Levels              int               `mapstructure:"levels"`
	UnclassifiedWeather string            `mapstructure:"unclassified_weather"`
	Weather             []WeatherVariable `mapstructure:"weather"`
	Nodes               ComponentSpec     `mapstructure:"nodes"`
	Edges               ComponentSpec     `mapstructure:"edges"`
}

// LoadModel reads the model configuration file at path. The format follows
// the file extension. Feature and variable names are case-insensitive and
// normalized to lower case.
func LoadModel(path string) (*Model, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("levels", severity.DefaultLevels)
	v.SetDefault("unclassified_weather", string(fusion.PolicyReject))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read model config %s: %w", path, err)
	}

	var m Model
	if err := v.Unmarshal(&m); err != nil {
		return nil, fmt.Errorf("decode model config %s: %w", path, err)
	}
	m.normalize()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) normalize() {
	m.UnclassifiedWeather = strings.ToLower(strings.TrimSpace(m.UnclassifiedWeather))
	for i := range m.Weather {
		m.Weather[i].Name = strings.ToLower(strings.TrimSpace(m.Weather[i].Name))
	}
	for _, c := range []*ComponentSpec{&m.Nodes, &m.Edges} {
		for i := range c.Features {
			c.Features[i].Name = strings.ToLower(strings.TrimSpace(c.Features[i].Name))
		}
	}
}

// Variables returns the weather variable names in configured order, which is
// also the order of every fusion weight vector.
func (m *Model) Variables() []string {
	names := make([]string, len(m.Weather))
	for i, w := range m.Weather {
		names[i] = w.Name
	}
	return names
}

// WeatherTables builds the level table of every weather variable.
func (m *Model) WeatherTables() map[string]fusion.WeatherLevels {
	out := make(map[string]fusion.WeatherLevels, len(m.Weather))
	for _, w := range m.Weather {
		out[w.Name] = fusion.NewWeatherLevels(w.Min, w.Max, m.Levels)
	}
	return out
}

// Policy returns the unclassified weather policy.
func (m *Model) Policy() fusion.UnclassifiedPolicy {
	return fusion.UnclassifiedPolicy(m.UnclassifiedWeather)
}

// Validate checks the model before any event is processed. Errors are
// *domain.ConfigurationError.
func (m *Model) Validate() error {
	if m.Levels < 1 {
		return domain.NewConfigurationError("levels", "must be at least 1, got %d", m.Levels)
	}
	if !m.Policy().Valid() {
		return domain.NewConfigurationError("unclassified_weather", "must be %q or %q, got %q",
			fusion.PolicyReject, fusion.PolicyClamp, m.UnclassifiedWeather)
	}
	if len(m.Weather) == 0 {
		return domain.NewConfigurationError("weather", "at least one weather variable is required")
	}
	seen := make(map[string]bool, len(m.Weather))
	for i, w := range m.Weather {
		field := fmt.Sprintf("weather[%d]", i)
		switch {
		case w.Name == "":
			return domain.NewConfigurationError(field, "name is required")
		case seen[w.Name]:
			return domain.NewConfigurationError(field, "duplicate weather variable %q", w.Name)
		case w.Max <= w.Min:
			return domain.NewConfigurationError(field, "max (%g) must exceed min (%g)", w.Max, w.Min)
		}
		seen[w.Name] = true
	}

	if err := validateComponent("nodes", m.Nodes, len(m.Weather)); err != nil {
		return err
	}
	return validateComponent("edges", m.Edges, len(m.Weather))
}

func validateComponent(kind string, c ComponentSpec, numVars int) error {
	if len(c.Features) == 0 {
		return domain.NewConfigurationError(kind+".features", "at least one feature is required")
	}
	seen := make(map[string]bool, len(c.Features))
	for i, f := range c.Features {
		field := fmt.Sprintf("%s.features[%d]", kind, i)
		switch {
		case f.Name == "":
			return domain.NewConfigurationError(field, "name is required")
		case seen[f.Name]:
			return domain.NewConfigurationError(field, "duplicate feature %q", f.Name)
		case f.Std.Min < 0 || f.Std.Max < 0:
			return domain.NewConfigurationError(field+".std", "must be non-negative")
		case f.ManualMin != nil && f.ManualMax != nil && *f.ManualMax < *f.ManualMin:
			return domain.NewConfigurationError(field, "manual_max must not be below manual_min")
		}
		seen[f.Name] = true
		if _, ok := c.Fusion[f.Name]; !ok {
			return domain.NewConfigurationError(kind+".fusion."+f.Name, "no fusion weights for feature")
		}
	}
	return c.Weights().Validate(kind+".fusion", numVars)
}
