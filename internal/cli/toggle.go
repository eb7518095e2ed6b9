package cli

import (
	"context"
	"errors"

	"github.com/calvinalkan/tasktree/internal/config"

	flag "github.com/spf13/pflag"
)

var errIDRequired = errors.New("task id is required")

// DoneCmd returns the done command.
func DoneCmd(cfg *config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("done", flag.ContinueOnError),
		Usage: "done <id>",
		Short: "Toggle a task between done and pending",
		Long: `Mark a task done, or mark a completed task pending again.

Deleted tasks are left as they are. The id may be any unambiguous prefix of
the task uuid.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execToggle(ctx, io, cfg, args, (*session).toggleDone)
		},
	}
}

// DeleteCmd returns the delete command.
func DeleteCmd(cfg *config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("delete", flag.ContinueOnError),
		Usage: "delete <id>",
		Short: "Toggle a task between deleted and pending",
		Long: `Delete a task, or restore a deleted task to pending.

The id may be any unambiguous prefix of the task uuid.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execToggle(ctx, io, cfg, args, (*session).toggleDeleted)
		},
	}
}

func execToggle(
	ctx context.Context,
	io *IO,
	cfg *config.Config,
	args []string,
	toggle func(*session, context.Context, string) error,
) error {
	if len(args) == 0 {
		return errIDRequired
	}

	return withSession(ctx, io, cfg, func(s *session) error {
		err := toggle(s, ctx, args[0])
		if err != nil {
			return err
		}

		io.Printf("%s", renderTree(s.engine.Tree()))

		return nil
	})
}
