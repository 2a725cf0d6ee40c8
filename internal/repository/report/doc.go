// Package report persists update run reports.
//
// FileRepository stores the last report as JSON on disk, encoded through
// protobuf's structpb/protojson so the file stays a plain, stable JSON object
// that other tooling can read.
package report
