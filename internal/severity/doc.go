// Package severity discretizes continuous physical features into ordinal
// severity levels and maps each level to the mean and standard deviation of
// the impact a component at that level can withstand.
//
// # Binning
//
// [BinRanges] splits a feature's observed domain into L equal-width intervals.
// Features where a smaller raw value means more exposure (elevation) are
// binned inverted, so level 1 holds the largest raw value. Manual bounds
// override the sample extremes, and a domain whose values are all identical
// is widened by [DegenerateEpsilon].
//
// [ClassifyLevel] is tolerant of both interval directions and never fails:
// values outside every interval fall back to the highest level.
//
// # Impact tables
//
// [BuildImpactTable] turns configured (min, max) pairs into per-level lookup
// tables by linear interpolation over L+1 points, discarding the first so the
// lowest level never sits exactly on the configured minimum.
package severity
