package cli

import (
	"context"

	"github.com/calvinalkan/tasktree/internal/config"

	flag "github.com/spf13/pflag"
)

// MoveCmd returns the move command.
func MoveCmd(cfg *config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("move", flag.ContinueOnError),
		Usage: "move <id> [<parent-id>]",
		Short: "Move a task below another, or to the top level",
		Long: `Move a task, with its subtree, below another task. Without a parent
the task becomes a top-level task.

The node is moved in the tree first; the new part-of relation is then
written to the store.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execMove(ctx, io, cfg, args)
		},
	}
}

func execMove(ctx context.Context, io *IO, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errIDRequired
	}

	parentArg := ""
	if len(args) > 1 {
		parentArg = args[1]
	}

	return withSession(ctx, io, cfg, func(s *session) error {
		err := s.move(ctx, args[0], parentArg)
		if err != nil {
			return err
		}

		io.Printf("%s", renderTree(s.engine.Tree()))

		return nil
	})
}
