package updater

import "errors"

var (
	errUnknownStep   = errors.New("unknown update step")
	errNoApps        = errors.New("no applications selected")
	errOptionsNotSet = errors.New("options are not set")
)
