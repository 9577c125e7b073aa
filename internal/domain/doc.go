// Package domain models power-distribution networks, the weather events that
// threaten them, and the outage-risk assessments produced for each event.
//
// # Network snapshots
//
// A [Network] is materialized upstream from circuit models and geospatial
// layers. Every node and edge carries a flat map of physical features, e.g.
//
//	nodes: elevation (m), vegetation (land-cover severity 1-7), flood zone
//	edges: length (km), vegetation along the right of way, canopy cover
//
// Component nums double as indices: node nums and edge nums must each run
// 0..n-1 (see [Network.Normalize]). Node 0 is the substation and the root of
// the radial dependency tree.
//
// # Weather events
//
// A [WeatherEvent] arrives as JSON on the source topic. Raw hourly series are
// keyed by weather variable (e.g. "wspd" in m/s, "prcp" in mm), with one row
// per component ordered by num:
//
//	{"id": "ev-2021-02-15", "node_series": {"wspd": [[3.1, 4.0, null], ...]}}
//
// null marks a missing hour and decodes to NaN ([Hourly]). Edges without their
// own series inherit the mean of their endpoints. Collaborators that already
// fused the weather may send the persisted impact table instead, one
// "(low, high)" string per feature and component ([ParseBoundCell]).
//
// # Assessments
//
// An [Assessment] holds, per node, the node's own probability interval, the
// interval after upstream propagation, and its midpoint for color mapping;
// per edge, the edge's own interval. All intervals are [low, high] in [0, 1].
//
// # ID Generation
//
// Assessment IDs are deterministic SHA-256 hashes of network|event, so
// replaying an event against the same network yields the same ID. See
// [generateID].
package domain
