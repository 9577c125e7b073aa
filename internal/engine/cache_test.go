package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingAssessor struct {
	calls int
	err   error
}

func (m *countingAssessor) Assess(_ context.Context, event domain.WeatherEvent) (domain.Assessment, error) {
	m.calls++
	if m.err != nil {
		return domain.Assessment{}, m.err
	}
	return domain.Assessment{
		EventID:            event.ID,
		UnclassifiedValues: m.calls,
		Nodes: []domain.NodeRisk{{
			Num:         0,
			Probability: domain.Bound{Low: 0.2, High: 0.4},
			Levels:      map[string]int{"elevation": 3},
			Impacts:     map[string]domain.Bound{"elevation": {Low: 0.5, High: 0.7}},
		}},
		Edges: []domain.EdgeRisk{{Num: 0, Levels: map[string]int{"length": 1}}},
	}, nil
}

func cacheEvent(id string, wspd float64) domain.WeatherEvent {
	return domain.WeatherEvent{
		ID:         id,
		BeginTime:  time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC),
		NodeSeries: map[string][]domain.Hourly{"wspd": {{wspd, wspd + 1}}},
	}
}

func TestCachedAssessor_Hit(t *testing.T) {
	inner := &countingAssessor{}
	cached, err := NewCachedAssessor(inner, 10)
	require.NoError(t, err)

	a1, err := cached.Assess(context.Background(), cacheEvent("storm-1", 10))
	require.NoError(t, err)
	a2, err := cached.Assess(context.Background(), cacheEvent("storm-1", 10))
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedAssessor_CallerMutationsDoNotReachCache(t *testing.T) {
	cached, err := NewCachedAssessor(&countingAssessor{}, 10)
	require.NoError(t, err)

	first, err := cached.Assess(context.Background(), cacheEvent("storm-1", 10))
	require.NoError(t, err)
	first.Nodes[0].Probability.Low = 0.9
	first.Nodes[0].Levels["elevation"] = 10
	first.Edges[0].Levels["length"] = 10

	hit, err := cached.Assess(context.Background(), cacheEvent("storm-1", 10))
	require.NoError(t, err)
	hit.Nodes[0].Impacts["elevation"] = domain.Bound{}

	again, err := cached.Assess(context.Background(), cacheEvent("storm-1", 10))
	require.NoError(t, err)
	assert.InDelta(t, 0.2, again.Nodes[0].Probability.Low, 0)
	assert.Equal(t, 3, again.Nodes[0].Levels["elevation"])
	assert.Equal(t, domain.Bound{Low: 0.5, High: 0.7}, again.Nodes[0].Impacts["elevation"])
	assert.Equal(t, 1, again.Edges[0].Levels["length"])
}

func TestCachedAssessor_SameIDDifferentWeatherMisses(t *testing.T) {
	inner := &countingAssessor{}
	cached, err := NewCachedAssessor(inner, 10)
	require.NoError(t, err)

	_, _ = cached.Assess(context.Background(), cacheEvent("storm-1", 10))
	_, _ = cached.Assess(context.Background(), cacheEvent("storm-1", 20))

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, cached.Len())
}

func TestCachedAssessor_ErrorsAreNotCached(t *testing.T) {
	inner := &countingAssessor{err: domain.ErrUnclassifiedWeather}
	cached, err := NewCachedAssessor(inner, 10)
	require.NoError(t, err)

	_, err = cached.Assess(context.Background(), cacheEvent("storm-1", 10))
	require.True(t, errors.Is(err, domain.ErrUnclassifiedWeather))
	_, err = cached.Assess(context.Background(), cacheEvent("storm-1", 10))
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, cached.Len())
}

func TestCachedAssessor_Eviction(t *testing.T) {
	inner := &countingAssessor{}
	cached, err := NewCachedAssessor(inner, 2)
	require.NoError(t, err)

	ctx := context.Background()
	_, _ = cached.Assess(ctx, cacheEvent("a", 1))
	_, _ = cached.Assess(ctx, cacheEvent("b", 2))
	_, _ = cached.Assess(ctx, cacheEvent("a", 1)) // promotes "a"
	_, _ = cached.Assess(ctx, cacheEvent("c", 3)) // evicts "b"
	require.Equal(t, 3, inner.calls)

	_, _ = cached.Assess(ctx, cacheEvent("a", 1))
	assert.Equal(t, 3, inner.calls, "a should still be cached")

	_, _ = cached.Assess(ctx, cacheEvent("b", 2))
	assert.Equal(t, 4, inner.calls, "b should have been evicted")
}

func TestNewCachedAssessor_InvalidSize(t *testing.T) {
	_, err := NewCachedAssessor(&countingAssessor{}, 0)
	require.Error(t, err)
}
