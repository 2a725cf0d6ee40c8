// Package config loads, validates and saves the project configuration
// (appbundle.yaml): where bundles live, which platform and output format
// they target, and the descriptors of every application.
package config
