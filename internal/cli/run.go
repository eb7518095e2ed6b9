// Package cli implements the tasktree command line: global flag parsing,
// configuration loading and the commands built on the engine.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/calvinalkan/tasktree/internal/config"
)

const (
	consumedOne  = 1
	consumedTwo  = 2
	consumedNone = 0
	helpFlag     = "--help"
)

var (
	errFlagRequiresArg = errors.New("flag requires an argument")
	errUnknownFlag     = errors.New("unknown flag")
)

// Run is the main entry point. Returns exit code.
// sigCh may be nil; a value on it cancels the running command.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if len(args) < 2 {
		printUsage(out, nil)

		return 0
	}

	flags, err := parseGlobalFlags(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: flags.workDir,
		ConfigPath:      flags.configPath,
		BackendOverride: flags.backend,
		DBPathOverride:  flags.dbPath,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	commands := allCommands(&cfg)

	if len(flags.remaining) == 0 || flags.remaining[0] == "-h" || flags.remaining[0] == helpFlag {
		printUsage(out, commands)

		return 0
	}

	name := flags.remaining[0]

	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd.Run(ctx, NewIO(in, out, errOut), flags.remaining[1:])
		}
	}

	fprintln(errOut, "error: unknown command:", name)
	printUsage(errOut, commands)

	return 1
}

func allCommands(cfg *config.Config) []*Command {
	return []*Command{
		TreeCmd(cfg),
		AddCmd(cfg),
		DoneCmd(cfg),
		DeleteCmd(cfg),
		DescribeCmd(cfg),
		MoveCmd(cfg),
		ShellCmd(cfg),
		ExportCmd(cfg),
		ImportCmd(cfg),
		PrintConfigCmd(cfg),
	}
}

type globalFlags struct {
	workDir    string
	configPath string
	backend    string
	dbPath     string
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		consumed, err := parseFlag(args, idx, &flags)
		if err != nil {
			return globalFlags{}, err
		}

		if consumed == 0 {
			// Not a flag, this is the command
			flags.remaining = args[idx:]

			break
		}

		idx += consumed
	}

	return flags, nil
}

// valueFlag matches a flag that takes a value, in the "--name value" and
// "--name=value" forms.
func valueFlag(args []string, idx int, names []string, dst *string) (int, bool, error) {
	arg := args[idx]

	for _, name := range names {
		if arg == name {
			if idx+1 >= len(args) {
				return consumedNone, true, fmt.Errorf("%w: %s", errFlagRequiresArg, arg)
			}

			*dst = args[idx+1]

			return consumedTwo, true, nil
		}

		if strings.HasPrefix(name, "--") {
			if after, ok := strings.CutPrefix(arg, name+"="); ok {
				*dst = after

				return consumedOne, true, nil
			}
		}
	}

	return consumedNone, false, nil
}

// parseFlag tries to parse a flag at args[idx]. Returns number of args consumed (0 if not a flag).
func parseFlag(args []string, idx int, flags *globalFlags) (int, error) {
	arg := args[idx]

	// -C<dir> shorthand
	if after, ok := strings.CutPrefix(arg, "-C"); ok && after != "" {
		flags.workDir = after

		return consumedOne, nil
	}

	for _, f := range []struct {
		names []string
		dst   *string
	}{
		{[]string{"-C", "--cwd"}, &flags.workDir},
		{[]string{"-c", "--config"}, &flags.configPath},
		{[]string{"--backend"}, &flags.backend},
		{[]string{"--db"}, &flags.dbPath},
	} {
		consumed, matched, err := valueFlag(args, idx, f.names, f.dst)
		if matched {
			return consumed, err
		}
	}

	// -h/--help flags
	if arg == "-h" || arg == helpFlag {
		flags.remaining = []string{helpFlag}

		return len(args) - idx, nil
	}

	// Unknown flag
	if strings.HasPrefix(arg, "-") && arg != "-" {
		return consumedNone, fmt.Errorf("%w: %s", errUnknownFlag, arg)
	}

	// Not a flag
	return consumedNone, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, commands []*Command) {
	fprintln(w, `tasktree - browse and edit a task store as a tree

Usage: tasktree [options] <command> [args]

Options:
  -C, --cwd <dir>       Run as if started in <dir>
  -c, --config <file>   Use specified config file
      --backend <name>  Task store: taskwarrior or sqlite
      --db <path>       SQLite database path (sqlite backend)

Commands:`)

	if commands == nil {
		commands = allCommands(&config.Config{})
	}

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}
}
