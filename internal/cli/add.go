package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calvinalkan/tasktree/internal/config"

	flag "github.com/spf13/pflag"
)

var (
	errDescriptionRequired = errors.New("description is required")
	errEmptyValue          = errors.New("empty value not allowed")
)

// AddCmd returns the add command.
func AddCmd(cfg *config.Config) *Command {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.StringP("parent", "p", "", "Parent task ID")

	return &Command{
		Flags: fs,
		Usage: "add <description> [flags]",
		Short: "Create a task, prints its uuid",
		Long: `Create a new task. Prints the task uuid on success.

With --parent the task is created as a child of that task. The parent is
shown in the tree even if the current filter would not list it.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execAdd(ctx, io, cfg, fs, args)
		},
	}
}

func execAdd(ctx context.Context, io *IO, cfg *config.Config, fs *flag.FlagSet, args []string) error {
	description := strings.TrimSpace(strings.Join(args, " "))
	if description == "" {
		return errDescriptionRequired
	}

	parentArg, _ := fs.GetString("parent")
	if fs.Changed("parent") && parentArg == "" {
		return fmt.Errorf("%w: --parent", errEmptyValue)
	}

	return withSession(ctx, io, cfg, func(s *session) error {
		id, err := s.add(ctx, parentArg, description)
		if err != nil {
			return err
		}

		io.Println(id.String())

		return nil
	})
}
