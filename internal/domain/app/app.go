package app

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

var (
	// ErrUnknownApp is returned when a requested application is not configured.
	ErrUnknownApp = errors.New("unknown application")

	errNameRequired = errors.New("application name is required")
	errDuplicateApp = errors.New("duplicate application")
)

// AppConfig identifies one application of the project.
//
//nolint:revive // app.AppConfig mirrors the configuration vocabulary.
type AppConfig struct {
	// Name is the unique key of the application.
	Name string
	// Bundle is the reverse-domain bundle identifier, e.g. com.example.
	Bundle string
	// Version is the application version string.
	Version string
	// Description is a one-line human description.
	Description string
	// Requires lists the third-party dependencies installed into the bundle.
	Requires []string
	// Sources lists paths, relative to the project base, that make up the code.
	Sources []string
	// Icon is an optional icon resource path.
	Icon string
	// Splash is an optional splash screen resource path.
	Splash string
}

// AppID returns the fully qualified application identifier.
func (a *AppConfig) AppID() string {
	return a.Bundle + "." + a.Name
}

// Clone returns a deep copy of the descriptor.
func (a *AppConfig) Clone() *AppConfig {
	if a == nil {
		return nil
	}

	cloned := *a
	cloned.Requires = slices.Clone(a.Requires)
	cloned.Sources = slices.Clone(a.Sources)

	return &cloned
}

// Collection maps application names to their descriptors.
type Collection struct {
	apps map[string]*AppConfig
}

// NewCollection builds a collection keyed by AppConfig.Name.
// Duplicate names are rejected.
func NewCollection(apps ...*AppConfig) (*Collection, error) {
	c := &Collection{
		apps: make(map[string]*AppConfig, len(apps)),
	}

	for _, a := range apps {
		if a == nil || a.Name == "" {
			return nil, errNameRequired
		}

		if _, exists := c.apps[a.Name]; exists {
			return nil, fmt.Errorf("%w: %s", errDuplicateApp, a.Name)
		}

		c.apps[a.Name] = a.Clone()
	}

	return c, nil
}

// Len returns the number of applications.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}

	return len(c.apps)
}

// Names returns the application names in sorted order.
func (c *Collection) Names() []string {
	if c == nil {
		return nil
	}

	names := make([]string, 0, len(c.apps))
	for name := range c.apps {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Get returns a copy of the named application.
func (c *Collection) Get(name string) (*AppConfig, bool) {
	if c == nil {
		return nil, false
	}

	a, ok := c.apps[name]
	if !ok {
		return nil, false
	}

	return a.Clone(), true
}

// Apps returns copies of every application in Names order.
func (c *Collection) Apps() []*AppConfig {
	names := c.Names()
	result := make([]*AppConfig, 0, len(names))

	for _, name := range names {
		result = append(result, c.apps[name].Clone())
	}

	return result
}

// Select narrows the collection to the given names.
// An empty selection returns the whole collection.
func (c *Collection) Select(names ...string) (*Collection, error) {
	if len(names) == 0 {
		return c, nil
	}

	selected := make([]*AppConfig, 0, len(names))

	for _, name := range names {
		a, ok := c.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownApp, name)
		}

		if slices.ContainsFunc(selected, func(s *AppConfig) bool { return s.Name == name }) {
			continue
		}

		selected = append(selected, a)
	}

	return NewCollection(selected...)
}
