// Package fusion turns raw weather time series into per-feature impact
// intervals for every network component.
//
// Each weather variable is scored against its [WeatherLevels] table: the
// minimum and maximum of a component's series over the event become the low
// and high scores. [FuseImpact] then combines the variables with per-feature
// [Weights] (a weighted sum, one matrix-vector product per feature), and
// [FuseBounds] pairs the low and high results into rounded intervals.
package fusion
