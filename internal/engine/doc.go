// Package engine runs the outage-risk inference for one network snapshot:
// severity binning and impact tables are built once per network, then every
// weather event is fused, converted to per-component probability intervals
// and propagated from the substation outward.
package engine
