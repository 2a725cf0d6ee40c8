// Package integration exercises the update workflow end to end against a
// project laid out in a temporary directory.
package integration
