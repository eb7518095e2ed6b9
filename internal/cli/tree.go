package cli

import (
	"context"
	"strings"

	"github.com/calvinalkan/tasktree/internal/config"

	flag "github.com/spf13/pflag"
)

// TreeCmd returns the tree command.
func TreeCmd(cfg *config.Config) *Command {
	fs := flag.NewFlagSet("tree", flag.ContinueOnError)
	fs.Bool("check", false, "Verify tree, index and cache agree after building")

	return &Command{
		Flags: fs,
		Usage: "tree [filter...]",
		Short: "Show the task tree",
		Long: `Build and print the task tree.

Pending, waiting and recurring tasks matching the filter are listed together
with all their ancestors, whatever the ancestors' status. Without a filter
the configured default filter is used.

Filter words follow the store's syntax: project:<name>, +tag, -tag and plain
words matched against the description.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execTree(ctx, io, cfg, fs, args)
		},
	}
}

func execTree(ctx context.Context, io *IO, cfg *config.Config, fs *flag.FlagSet, args []string) error {
	s, err := openSession(ctx, io, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = s.Close() }()

	filter := cfg.Filter
	if len(args) > 0 {
		filter = strings.Join(args, " ")
	}

	err = s.engine.OnFilterSubmitted(ctx, filter)
	if err != nil {
		return err
	}

	if check, _ := fs.GetBool("check"); check {
		err = s.engine.Check()
		if err != nil {
			return err
		}
	}

	io.Printf("%s", renderTree(s.engine.Tree()))

	return nil
}
