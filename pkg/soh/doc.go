// Package soh classifies battery State-of-Health (SoH) and derives the numbers
// shown on the dashboard and in exported reports. It contains:
//
//   - Category and Status: the five health buckets and their display tags
//   - Classify: the ratio -> Status mapping
//   - PredictionResult: the record produced by a predictor for one upload
//   - DisplayMetrics: percent, degradation bar width and the trend curve
//
// Everything in this package is pure and safe for concurrent use. No function
// here returns an error; out-of-range and NaN inputs are classified rather than
// rejected.
package soh
