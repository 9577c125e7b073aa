package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseRawEvent deserializes a RawEvent's value into a WeatherEvent. The
// message key is used as the event ID when the payload carries none.
func ParseRawEvent(raw RawEvent) (WeatherEvent, error) {
	event, err := decodeWeatherEvent(raw.Value)
	if err != nil {
		return WeatherEvent{}, err
	}
	if event.ID == "" {
		event.ID = strings.TrimSpace(string(raw.Key))
	}
	return event, validateWeatherEvent(event)
}

// ParseWeatherEvent decodes and validates a weather event payload.
func ParseWeatherEvent(data []byte) (WeatherEvent, error) {
	event, err := decodeWeatherEvent(data)
	if err != nil {
		return WeatherEvent{}, err
	}
	return event, validateWeatherEvent(event)
}

func decodeWeatherEvent(data []byte) (WeatherEvent, error) {
	var event WeatherEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return WeatherEvent{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	event.ID = strings.TrimSpace(event.ID)
	return event, nil
}

func validateWeatherEvent(event WeatherEvent) error {
	if event.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if len(event.NodeSeries) == 0 && len(event.NodeImpacts) == 0 {
		return fmt.Errorf("%w: event %s has neither node_series nor node_impacts", ErrInvalidEvent, event.ID)
	}
	if !event.BeginTime.IsZero() && !event.EndTime.IsZero() && event.EndTime.Before(event.BeginTime) {
		return fmt.Errorf("%w: event %s ends before it begins", ErrInvalidEvent, event.ID)
	}
	return nil
}

// ParseImpactTable converts stringified "(low, high)" cells into bounds,
// keyed by feature and indexed by component num.
func ParseImpactTable(cells map[string][]string) (map[string][]Bound, error) {
	out := make(map[string][]Bound, len(cells))
	for feature, column := range cells {
		bounds := make([]Bound, len(column))
		for i, cell := range column {
			b, err := ParseBoundCell(cell)
			if err != nil {
				return nil, fmt.Errorf("feature %s, component %d: %w", feature, i, err)
			}
			bounds[i] = b
		}
		out[feature] = bounds
	}
	return out, nil
}

// FormatImpactTable renders bounds in the persisted "(low, high)" cell format.
func FormatImpactTable(impacts map[string][]Bound) map[string][]string {
	out := make(map[string][]string, len(impacts))
	for feature, bounds := range impacts {
		column := make([]string, len(bounds))
		for i, b := range bounds {
			column[i] = FormatBoundCell(b)
		}
		out[feature] = column
	}
	return out
}

// NewAssessment assembles an Assessment for event over the network
// identified by networkID and stamps it with the current time.
func NewAssessment(networkID string, event WeatherEvent, nodes []NodeRisk, edges []EdgeRisk) Assessment {
	return Assessment{
		ID:          generateID(networkID, event.ID),
		NetworkID:   networkID,
		EventID:     event.ID,
		BeginTime:   event.BeginTime,
		EndTime:     event.EndTime,
		Nodes:       nodes,
		Edges:       edges,
		ProcessedAt: clock.Now(),
	}
}

// generateID produces a deterministic assessment ID so replaying an event
// against the same network overwrites rather than duplicates downstream.
func generateID(networkID, eventID string) string {
	hash := sha256.Sum256([]byte(networkID + "|" + eventID))
	short := hex.EncodeToString(hash[:8])
	if networkID == "" {
		return short
	}
	return networkID + "-" + short
}
