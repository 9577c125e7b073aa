package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"github.com/couchcryptid/storm-outage-risk/internal/fusion"
	"github.com/couchcryptid/storm-outage-risk/internal/severity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validModel() *Model {
	return &Model{
		Levels:              10,
		UnclassifiedWeather: "reject",
		Weather: []WeatherVariable{
			{Name: "wspd", Min: 0, Max: 40},
			{Name: "prcp", Min: 0, Max: 50},
		},
		Nodes: ComponentSpec{
			Features: []FeatureSpec{{Name: "elevation", Mean: severity.Range{Min: 0.3, Max: 0.9}, Std: severity.Range{Min: 0.1, Max: 0.2}}},
			Fusion:   map[string][]float64{"elevation": {0.5, 0.5}},
		},
		Edges: ComponentSpec{
			Features: []FeatureSpec{{Name: "length", Mean: severity.Range{Min: 0.4, Max: 0.9}, Std: severity.Range{Min: 0.1, Max: 0.1}}},
			Fusion:   map[string][]float64{"length": {0.6, 0.4}},
		},
	}
}

func TestLoadModel_YAML(t *testing.T) {
	m, err := LoadModel(filepath.Join("testdata", "model.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 10, m.Levels)
	assert.Equal(t, fusion.PolicyClamp, m.Policy())
	assert.Equal(t, []string{"wspd", "prcp"}, m.Variables())

	require.Len(t, m.Nodes.Features, 2)
	elevation := m.Nodes.Features[0]
	assert.Equal(t, "elevation", elevation.Name)
	assert.True(t, elevation.Inverted)
	assert.Nil(t, elevation.ManualMin)
	assert.Equal(t, severity.Range{Min: 0.3, Max: 0.9}, elevation.Mean)

	vegetation := m.Nodes.Features[1]
	require.NotNil(t, vegetation.ManualMin)
	require.NotNil(t, vegetation.ManualMax)
	assert.Equal(t, 1.0, *vegetation.ManualMin)
	assert.Equal(t, 7.0, *vegetation.ManualMax)

	assert.Equal(t, []float64{0.3, 0.7}, m.Nodes.Fusion["elevation"])
	assert.Equal(t, []string{"length"}, m.Edges.FeatureNames())
}

func TestLoadModel_JSONDefaultsAndNormalization(t *testing.T) {
	m, err := LoadModel(filepath.Join("testdata", "model.json"))
	require.NoError(t, err)

	assert.Equal(t, severity.DefaultLevels, m.Levels)
	assert.Equal(t, fusion.PolicyReject, m.Policy())
	assert.Equal(t, []string{"wspd"}, m.Variables())
	assert.Equal(t, []string{"elevation"}, m.Nodes.FeatureNames())
}

func TestLoadModel_MissingFile(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read model config")
}

func TestLoadModel_InvalidWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	data := []byte(`
weather:
  - {name: wspd, min: 0, max: 40}
  - {name: prcp, min: 0, max: 50}
nodes:
  features:
    - {name: elevation, mean: {min: 0.3, max: 0.9}, std: {min: 0.1, max: 0.2}}
  fusion:
    elevation: [0.5, 0.49]
edges:
  features:
    - {name: length, mean: {min: 0.4, max: 0.9}, std: {min: 0.1, max: 0.1}}
  fusion:
    length: [0.5, 0.5]
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err := LoadModel(path)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "nodes.fusion.elevation", cfgErr.Field)
}

func TestModel_Validate(t *testing.T) {
	assert.NoError(t, validModel().Validate())

	tests := []struct {
		name   string
		mutate func(m *Model)
		field  string
	}{
		{"zero levels", func(m *Model) { m.Levels = 0 }, "levels"},
		{"unknown policy", func(m *Model) { m.UnclassifiedWeather = "guess" }, "unclassified_weather"},
		{"no weather", func(m *Model) { m.Weather = nil }, "weather"},
		{"unnamed weather", func(m *Model) { m.Weather[1].Name = "" }, "weather[1]"},
		{"duplicate weather", func(m *Model) { m.Weather[1].Name = "wspd" }, "weather[1]"},
		{"empty weather range", func(m *Model) { m.Weather[0].Max = 0 }, "weather[0]"},
		{"no node features", func(m *Model) { m.Nodes.Features = nil }, "nodes.features"},
		{"duplicate feature", func(m *Model) {
			m.Edges.Features = append(m.Edges.Features, m.Edges.Features[0])
		}, "edges.features[1]"},
		{"negative std", func(m *Model) { m.Nodes.Features[0].Std.Min = -0.1 }, "nodes.features[0].std"},
		{"inverted manual bounds", func(m *Model) {
			lo, hi := 5.0, 1.0
			m.Nodes.Features[0].ManualMin, m.Nodes.Features[0].ManualMax = &lo, &hi
		}, "nodes.features[0]"},
		{"feature without weights", func(m *Model) { delete(m.Edges.Fusion, "length") }, "edges.fusion.length"},
		{"wrong arity", func(m *Model) { m.Edges.Fusion["length"] = []float64{1} }, "edges.fusion.length"},
		{"weights off by a percent", func(m *Model) { m.Nodes.Fusion["elevation"] = []float64{0.5, 0.49} }, "nodes.fusion.elevation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validModel()
			tt.mutate(m)

			err := m.Validate()
			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestModel_WeightsWithinTolerance(t *testing.T) {
	m := validModel()
	m.Nodes.Fusion["elevation"] = []float64{0.5, 0.499999}
	assert.NoError(t, m.Validate())
}

func TestModel_WeatherTables(t *testing.T) {
	m := validModel()
	tables := m.WeatherTables()

	require.Len(t, tables["wspd"], 10)
	assert.Equal(t, fusion.Window{Min: 0, Max: 4}, tables["wspd"][0])
	assert.Equal(t, 50.0, tables["prcp"][9].Max)
}

func TestComponentSpec_Ranges(t *testing.T) {
	c := validModel().Nodes

	assert.Equal(t, map[string]severity.Range{"elevation": {Min: 0.3, Max: 0.9}}, c.MeanRanges())
	assert.Equal(t, map[string]severity.Range{"elevation": {Min: 0.1, Max: 0.2}}, c.StdRanges())
	assert.Equal(t, fusion.Weights{"elevation": {0.5, 0.5}}, c.Weights())
}
