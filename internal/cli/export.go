package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/calvinalkan/tasktree/internal/config"
	"github.com/calvinalkan/tasktree/internal/task"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
)

// ExportCmd returns the export command.
func ExportCmd(cfg *config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("export", flag.ContinueOnError),
		Usage: "export [file]",
		Short: "Write every task as a JSON array",
		Long: `Export every task in the store, in any status, as a JSON array in the
store's export format.

Without a file (or with "-") the array is written to stdout. A file is
replaced atomically.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execExport(ctx, io, cfg, args)
		},
	}
}

func execExport(ctx context.Context, o *IO, cfg *config.Config, args []string) error {
	s, err := openSession(ctx, o, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = s.Close() }()

	tasks, err := s.store.ExportAll(ctx)
	if err != nil {
		return err
	}

	data, err := task.EncodeList(tasks)
	if err != nil {
		return err
	}

	data = append(data, '\n')

	if len(args) == 0 || args[0] == "-" {
		_, err = o.Out().Write(data)

		return err
	}

	path := args[0]
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.EffectiveCwd, path)
	}

	err = writeFileAtomic(path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	o.Println("Exported", len(tasks), "tasks to", path)

	return nil
}

// writeFileAtomic replaces path with the content of r and sets its mode,
// which atomic.WriteFile leaves alone for new files. Missing parent
// directories are created.
func writeFileAtomic(path string, r io.Reader) error {
	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return err
	}

	err = atomic.WriteFile(path, r)
	if err != nil {
		return err
	}

	return os.Chmod(path, 0o600)
}
