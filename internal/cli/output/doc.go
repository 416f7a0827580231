// Package output renders savekeep-cli results.
//
// Every command produces a view value. The table formatter asks the view
// for a Table; the json and yaml formatters encode the view directly, so
// struct tags on view types define the machine-readable shape.
//
// ProgressBar turns fractional operation progress into a single
// redrawn terminal line.
package output
