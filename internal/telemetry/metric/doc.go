// Package metric provides Prometheus metrics for save and load operations.
//
// Metrics live in a private registry rather than the process-wide default,
// so several orchestrators (and tests) can coexist. Metrics include:
//
//   - operation counters by kind and result
//   - operation duration histograms
//   - encoded slot size
//   - fragments that failed to apply on load
//   - operations in flight
//   - slot files written or removed, as seen by the directory watcher
package metric
