package updater

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/oshokin/appbundle/internal/domain/update"
)

// RenderSummary prints one line per application and a closing total.
func RenderSummary(w io.Writer, r *update.Report) error {
	var (
		okMark      = color.New(color.FgGreen).SprintFunc()
		failMark    = color.New(color.FgRed).SprintFunc()
		skipMark    = color.New(color.FgHiMagenta).SprintFunc()
		headingLine = color.New(color.Bold).SprintfFunc()
	)

	mode := ""
	if r.DryRun {
		mode = " [dry run]"
	}

	if _, err := fmt.Fprintln(w, headingLine("Update %s (%s/%s)%s", r.RunID, r.Platform, r.OutputFormat, mode)); err != nil {
		return err
	}

	done := 0

	for _, result := range r.Apps {
		var line string

		switch {
		case result.State == update.StateDone:
			done++
			line = fmt.Sprintf("  %s %s", okMark("[ok]"), result.App)
		case result.Failure != nil:
			line = fmt.Sprintf("  %s %s: %s step: %v",
				failMark("[failed]"), result.App, result.Failure.Step, result.Failure.Err)
		default:
			line = fmt.Sprintf("  %s %s", skipMark("[skipped]"), result.App)
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%d of %d applications updated.\n", done, len(r.Apps))

	return err
}
