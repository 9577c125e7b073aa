package engine

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
)

// EventAssessor is anything that can assess one weather event.
type EventAssessor interface {
	Assess(ctx context.Context, event domain.WeatherEvent) (domain.Assessment, error)
}

// CachedAssessor wraps an EventAssessor with an LRU cache keyed by the
// content of the event, so resubmitting an identical event returns the
// assessment computed the first time. Failed assessments are not cached.
// Callers receive their own copy and may modify it.
type CachedAssessor struct {
	inner EventAssessor
	cache *lru.Cache[[sha256.Size]byte, domain.Assessment]
}

// NewCachedAssessor creates a cache decorator holding up to maxEntries
// assessments.
func NewCachedAssessor(inner EventAssessor, maxEntries int) (*CachedAssessor, error) {
	cache, err := lru.New[[sha256.Size]byte, domain.Assessment](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("assessment cache: %w", err)
	}
	return &CachedAssessor{inner: inner, cache: cache}, nil
}

func (c *CachedAssessor) Assess(ctx context.Context, event domain.WeatherEvent) (domain.Assessment, error) {
	// json.Marshal sorts map keys, so equal events hash equally.
	data, err := json.Marshal(event)
	if err != nil {
		return c.inner.Assess(ctx, event)
	}
	key := sha256.Sum256(data)
	if a, ok := c.cache.Get(key); ok {
		return cloneAssessment(a), nil
	}
	a, err := c.inner.Assess(ctx, event)
	if err != nil {
		return a, err
	}
	c.cache.Add(key, cloneAssessment(a))
	return a, nil
}

func cloneAssessment(a domain.Assessment) domain.Assessment {
	a.Nodes = slices.Clone(a.Nodes)
	for i := range a.Nodes {
		a.Nodes[i].Levels = maps.Clone(a.Nodes[i].Levels)
		a.Nodes[i].Impacts = maps.Clone(a.Nodes[i].Impacts)
	}
	a.Edges = slices.Clone(a.Edges)
	for i := range a.Edges {
		a.Edges[i].Levels = maps.Clone(a.Edges[i].Levels)
		a.Edges[i].Impacts = maps.Clone(a.Edges[i].Impacts)
	}
	return a
}

// Len returns the number of cached assessments.
func (c *CachedAssessor) Len() int { return c.cache.Len() }
