package cli

import (
	"context"
	"strings"

	"github.com/calvinalkan/tasktree/internal/config"

	flag "github.com/spf13/pflag"
)

// DescribeCmd returns the describe command.
func DescribeCmd(cfg *config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("describe", flag.ContinueOnError),
		Usage: "describe <id> <description>",
		Short: "Change the description of a task",
		Long: `Change the description of a task.

The new text is written to the node, stored, and the node is rebuilt from
the store once the edit is complete.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execDescribe(ctx, io, cfg, args)
		},
	}
}

func execDescribe(ctx context.Context, io *IO, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errIDRequired
	}

	description := strings.TrimSpace(strings.Join(args[1:], " "))
	if description == "" {
		return errDescriptionRequired
	}

	return withSession(ctx, io, cfg, func(s *session) error {
		err := s.describe(ctx, args[0], description)
		if err != nil {
			return err
		}

		err = s.engine.RunPending(ctx)
		if err != nil {
			return err
		}

		io.Printf("%s", renderTree(s.engine.Tree()))

		return nil
	})
}
