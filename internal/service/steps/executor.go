package steps

import (
	"context"

	"github.com/oshokin/appbundle/internal/domain/app"
)

// Executor performs one update step for one application.
// bundlePath must be an existing directory; implementations never write outside it.
type Executor interface {
	InstallDependencies(ctx context.Context, a *app.AppConfig, bundlePath string) error
	InstallCode(ctx context.Context, a *app.AppConfig, bundlePath string) error
	InstallExtras(ctx context.Context, a *app.AppConfig, bundlePath string) error
}
