// Package inspect implements the read-only subcommands: printing bundle
// paths, verifying external tooling on demand and showing the last run report.
package inspect
