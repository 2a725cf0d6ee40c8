// Package updater runs the update workflow over the configured applications.
//
// The Orchestrator verifies external tooling once, then for every application,
// in name order, checks the bundle and runs the dependencies, code and extras
// steps. A failing application is marked failed and the run continues with the
// others unless fail-fast is set; every failure ends up in the report.
// Run (command.go) is the CLI entry point wiring configuration, the run lock,
// the report repository and the summary output around the Orchestrator.
package updater
