package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/appbundle/internal/config"
	"github.com/oshokin/appbundle/internal/domain/update"
)

// Repository defines persistence operations for run reports.
type Repository interface {
	Load(ctx context.Context) (*update.Report, error)
	Save(ctx context.Context, report *update.Report) error
}

// FileRepository persists the last run report to a JSON file.
type FileRepository struct {
	// path is the filesystem location of the report file.
	path string
	// mu protects concurrent access to the report file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when no report has been written yet.
	ErrNotFound = errors.New("report not found")

	errReportIsNotSet = errors.New("report is not set")
	errMalformed      = errors.New("malformed report")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the report file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the last report from disk.
func (r *FileRepository) Load(_ context.Context) (*update.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read report file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode report file: %w", err)
	}

	return fromStruct(document.AsMap())
}

// Save writes the report to disk, replacing the previous one.
func (r *FileRepository) Save(_ context.Context, report *update.Report) error {
	if report == nil {
		return errReportIsNotSet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := structpb.NewStruct(toMap(report))
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}

	return nil
}

// toMap converts the report into structpb-compatible values.
func toMap(report *update.Report) map[string]any {
	apps := make([]any, 0, len(report.Apps))

	for _, result := range report.Apps {
		entry := map[string]any{
			"app":   result.App,
			"state": result.State.String(),
		}

		if result.Failure != nil {
			entry["failed_step"] = result.Failure.Step.String()
			entry["error"] = result.Failure.Err.Error()
		}

		apps = append(apps, entry)
	}

	actions := make([]any, 0, len(report.Actions))

	for _, action := range report.Actions {
		actions = append(actions, map[string]any{
			"seq":  action.Seq,
			"kind": action.Kind.String(),
			"app":  action.App,
		})
	}

	return map[string]any{
		"run_id":        report.RunID,
		"platform":      report.Platform,
		"output_format": report.OutputFormat,
		"dry_run":       report.DryRun,
		"started_at":    report.StartedAt.UTC().Format(time.RFC3339Nano),
		"finished_at":   report.FinishedAt.UTC().Format(time.RFC3339Nano),
		"succeeded":     report.Succeeded(),
		"apps":          apps,
		"actions":       actions,
	}
}

// fromStruct is the inverse of toMap.
func fromStruct(document map[string]any) (*update.Report, error) {
	startedAt, err := parseTime(document["started_at"])
	if err != nil {
		return nil, err
	}

	finishedAt, err := parseTime(document["finished_at"])
	if err != nil {
		return nil, err
	}

	report := &update.Report{
		RunID:        stringValue(document["run_id"]),
		Platform:     stringValue(document["platform"]),
		OutputFormat: stringValue(document["output_format"]),
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
	}

	report.DryRun, _ = document["dry_run"].(bool)

	apps, _ := document["apps"].([]any)
	for _, raw := range apps {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: app entry", errMalformed)
		}

		state, ok := update.ParseState(stringValue(entry["state"]))
		if !ok {
			return nil, fmt.Errorf("%w: state %v", errMalformed, entry["state"])
		}

		result := update.AppResult{
			App:   stringValue(entry["app"]),
			State: state,
		}

		if step := stringValue(entry["failed_step"]); step != "" {
			result.Failure = update.NewStepError(
				update.StepKind(step),
				result.App,
				errors.New(stringValue(entry["error"])), //nolint:err113 // Restored message of a past failure.
			)
		}

		report.Apps = append(report.Apps, result)
	}

	actions, _ := document["actions"].([]any)
	for _, raw := range actions {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: action entry", errMalformed)
		}

		seq, _ := entry["seq"].(float64)

		report.Actions = append(report.Actions, update.Action{
			Seq:  int(seq),
			Kind: update.StepKind(stringValue(entry["kind"])),
			App:  stringValue(entry["app"]),
		})
	}

	return report, nil
}

func parseTime(value any) (time.Time, error) {
	s := stringValue(value)
	if s == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", errMalformed, err)
	}

	return t, nil
}

func stringValue(value any) string {
	s, _ := value.(string)
	return s
}
