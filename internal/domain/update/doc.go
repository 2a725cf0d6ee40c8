// Package update holds the value types of one update run: the per-app state
// machine, the ordered action log, step failures and the final report.
package update
