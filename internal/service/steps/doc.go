// Package steps performs the three mutation steps of an update
// (dependencies, code, extras) against one bundle directory.
//
// Executor is the capability the orchestrator depends on. FileExecutor
// writes one artifact per step inside the bundle, each write a full atomic
// overwrite; DryRunExecutor only logs.
package steps
