package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/calvinalkan/tasktree/internal/task"

	"github.com/google/uuid"
)

// DefaultTaskBin is the Taskwarrior executable looked up on PATH.
const DefaultTaskBin = "task"

// Taskwarrior talks to a Taskwarrior installation through its command line.
type Taskwarrior struct {
	bin    string
	rc     map[string]string
	runner Runner
}

// TaskwarriorOptions configures NewTaskwarrior.
type TaskwarriorOptions struct {
	Bin    string            // executable, defaults to DefaultTaskBin
	RC     map[string]string // rc.<key>=<value> overrides passed on every call
	Runner Runner            // defaults to ExecRunner
}

// NewTaskwarrior returns a client for the task binary described by opts.
func NewTaskwarrior(opts TaskwarriorOptions) *Taskwarrior {
	bin := opts.Bin
	if bin == "" {
		bin = DefaultTaskBin
	}

	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	return &Taskwarrior{
		bin:    bin,
		rc:     maps.Clone(opts.RC),
		runner: runner,
	}
}

// fixedRC are the settings the client depends on. Overrides of the same keys
// are dropped.
var fixedRC = []string{"confirmation=off", "verbose=nothing", "json.array=on"} //nolint:gochecknoglobals // package-level constant

// baseArgs are prepended to every invocation so output stays machine-readable
// and destructive commands never prompt.
func (tw *Taskwarrior) baseArgs() []string {
	args := make([]string, 0, len(fixedRC)+len(tw.rc))
	fixed := make(map[string]bool, len(fixedRC))

	for _, kv := range fixedRC {
		key, _, _ := strings.Cut(kv, "=")
		fixed[key] = true
		args = append(args, "rc."+kv)
	}

	for _, key := range slices.Sorted(maps.Keys(tw.rc)) {
		if fixed[key] {
			continue
		}

		args = append(args, "rc."+key+"="+tw.rc[key])
	}

	return args
}

func (tw *Taskwarrior) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	full := append(tw.baseArgs(), args...)

	out, err := tw.runner.Run(ctx, stdin, tw.bin, full...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", task.ErrStore, err)
	}

	return out, nil
}

func uuidFilter(id uuid.UUID) string {
	return "uuid:" + id.String()
}

// ExportAll implements Store.
func (tw *Taskwarrior) ExportAll(ctx context.Context) ([]task.Task, error) {
	out, err := tw.run(ctx, nil, "export")
	if err != nil {
		return nil, err
	}

	tasks, err := task.DecodeList(out)
	if err != nil {
		return nil, fmt.Errorf("%w: export: %w", task.ErrStore, err)
	}

	return tasks, nil
}

// ExportOne implements Store.
func (tw *Taskwarrior) ExportOne(ctx context.Context, id uuid.UUID) ([]task.Task, error) {
	out, err := tw.run(ctx, nil, uuidFilter(id), "export")
	if err != nil {
		return nil, err
	}

	tasks, err := task.DecodeList(out)
	if err != nil {
		return nil, fmt.Errorf("%w: export %s: %w", task.ErrStore, id, err)
	}

	return tasks, nil
}

// QueryIDs implements Store. The filter is passed to Taskwarrior as a single
// argument, which Taskwarrior splits itself, inside parentheses so that an
// "or" in it cannot escape the status predicate.
func (tw *Taskwarrior) QueryIDs(ctx context.Context, filter string, statuses []task.Status) ([]uuid.UUID, error) {
	var args []string

	if f := strings.TrimSpace(filter); f != "" {
		args = append(args, "(", f, ")")
	}

	args = append(args, statusPredicate(statuses)...)
	args = append(args, "_uuids")

	out, err := tw.run(ctx, nil, args...)
	if err != nil {
		return nil, err
	}

	fields := strings.Fields(string(out))
	ids := make([]uuid.UUID, 0, len(fields))

	for _, field := range fields {
		id, parseErr := uuid.Parse(field)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: query: unexpected output %q", task.ErrStore, field)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// statusPredicate renders "( status:a or status:b )".
func statusPredicate(statuses []task.Status) []string {
	if len(statuses) == 0 {
		return nil
	}

	args := []string{"("}

	for i, st := range statuses {
		if i > 0 {
			args = append(args, "or")
		}

		args = append(args, "status:"+string(st))
	}

	return append(args, ")")
}

// Create implements Store. Verbosity is raised to new-uuid so the
// acknowledgement carries the full uuid of the created task.
func (tw *Taskwarrior) Create(ctx context.Context, description string, parent *uuid.UUID) (string, error) {
	args := []string{"rc.verbose=new-uuid", "add", description}
	if parent != nil {
		args = append(args, "partof:"+parent.String())
	}

	out, err := tw.run(ctx, nil, args...)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

// Done implements Store.
func (tw *Taskwarrior) Done(ctx context.Context, id uuid.UUID) error {
	_, err := tw.run(ctx, nil, uuidFilter(id), "done")

	return err
}

// Pending implements Store.
func (tw *Taskwarrior) Pending(ctx context.Context, id uuid.UUID) error {
	_, err := tw.run(ctx, nil, uuidFilter(id), "modify", "status:pending")

	return err
}

// Delete implements Store.
func (tw *Taskwarrior) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := tw.run(ctx, nil, uuidFilter(id), "delete")

	return err
}

// SetParent implements Store. A nil parent clears the attribute.
func (tw *Taskwarrior) SetParent(ctx context.Context, id uuid.UUID, parent *uuid.UUID) error {
	value := ""
	if parent != nil {
		value = parent.String()
	}

	_, err := tw.run(ctx, nil, uuidFilter(id), "modify", "partof:"+value)

	return err
}

// SetDescription implements Store.
func (tw *Taskwarrior) SetDescription(ctx context.Context, id uuid.UUID, description string) error {
	_, err := tw.run(ctx, nil, uuidFilter(id), "modify", "description:"+strconv.Quote(description))

	return err
}

// Import implements Store by piping a JSON array to "task import -".
func (tw *Taskwarrior) Import(ctx context.Context, tasks []task.Task) error {
	data, err := task.EncodeList(tasks)
	if err != nil {
		return fmt.Errorf("%w: import: %w", task.ErrStore, err)
	}

	_, err = tw.run(ctx, data, "import", "-")

	return err
}
