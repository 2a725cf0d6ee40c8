// Package tools verifies that external tooling required by the update
// workflow is installed.
//
// Verification runs the tool, which on macOS may pop up the Xcode Command
// Line Tools installer when git is missing. Callers therefore build and call
// a Verifier only from workflows that need the tool, never at startup.
package tools
