// Package app contains the application descriptors the update workflow
// operates on.
//
// AppConfig identifies one application; Collection keys them by name and
// hands them out in a stable, sorted order.
package app
