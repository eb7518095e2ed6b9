package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/calvinalkan/tasktree/internal/config"
	"github.com/calvinalkan/tasktree/internal/task"

	flag "github.com/spf13/pflag"
)

// ImportCmd returns the import command.
func ImportCmd(cfg *config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("import", flag.ContinueOnError),
		Usage: "import <file>",
		Short: "Load tasks from a JSON export",
		Long: `Import tasks from a JSON array in the store's export format. Tasks are
matched by uuid: existing ones are replaced, new ones are added.

Use "-" to read from stdin.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execImport(ctx, io, cfg, args)
		},
	}
}

func execImport(ctx context.Context, o *IO, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: import file", errEmptyValue)
	}

	data, err := readImport(o, cfg, args[0])
	if err != nil {
		return err
	}

	tasks, err := task.DecodeList(data)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		o.Println("Imported 0 tasks")

		return nil
	}

	s, err := openSession(ctx, o, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = s.Close() }()

	err = s.store.Import(ctx, tasks)
	if err != nil {
		return err
	}

	o.Println("Imported", len(tasks), "tasks")

	return nil
}

func readImport(o *IO, cfg *config.Config, arg string) ([]byte, error) {
	if arg == "-" {
		if o.In() == nil {
			return nil, nil
		}

		data, err := io.ReadAll(o.In())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}

		return data, nil
	}

	path := arg
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.EffectiveCwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return data, nil
}
