package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/calvinalkan/tasktree/internal/config"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

// lineReader is the part of liner.State the shell loop needs.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// scanReader reads lines from a non-terminal input.
type scanReader struct {
	scanner *bufio.Scanner
}

func (r *scanReader) Prompt(string) (string, error) {
	if !r.scanner.Scan() {
		err := r.scanner.Err()
		if err == nil {
			err = io.EOF
		}

		return "", err
	}

	return r.scanner.Text(), nil
}

func (*scanReader) AppendHistory(string) {}

const shellPrompt = "tasktree> "

// shellCommands maps command names to their usage line.
var shellCommands = map[string]string{ //nolint:gochecknoglobals // static table
	"tree":     "tree [filter...]        rebuild the tree, optionally with a new filter",
	"show":     "show                    print the current tree",
	"done":     "done <id>               toggle done/pending",
	"delete":   "delete <id>             toggle deleted/pending",
	"add":      "add <description>       create a top-level task",
	"child":    "child <id> <desc>       create a task below <id>",
	"describe": "describe <id> <desc>    change a description",
	"move":     "move <id> [<parent>]    move a task below <parent>, or to the top level",
	"forget":   "forget <id>             drop a task from the view until the next tree",
	"check":    "check                   verify tree, index and cache agree",
	"help":     "help                    show this list",
	"quit":     "quit                    leave the shell",
}

// ShellCmd returns the shell command.
func ShellCmd(cfg *config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Short: "Interactive tree session",
		Long: `Start an interactive session over one engine. The tree, cache and index
live for the whole session, so edits are reconciled incrementally instead of
by a full rebuild. Type 'help' inside the shell for its commands.

History is kept in history_file when that is configured.`,
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			return execShell(ctx, io, cfg)
		},
	}
}

func execShell(ctx context.Context, o *IO, cfg *config.Config) error {
	s, err := openSession(ctx, o, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = s.Close() }()

	var reader lineReader

	if f, ok := o.In().(*os.File); ok && f == os.Stdin {
		state := liner.NewLiner()
		defer func() { _ = state.Close() }()

		state.SetCtrlCAborts(true)
		state.SetCompleter(completeShell)

		history := historyPath(cfg)
		if history != "" {
			if hf, openErr := os.Open(history); openErr == nil {
				_, _ = state.ReadHistory(hf)
				_ = hf.Close()
			}

			defer func() {
				saveErr := saveHistory(state, history)
				if saveErr != nil {
					o.Warn("cannot save history", saveErr.Error())
				}
			}()
		}

		reader = state
	} else {
		in := o.In()
		if in == nil {
			in = strings.NewReader("")
		}

		reader = &scanReader{scanner: bufio.NewScanner(in)}
	}

	err = s.load(ctx)
	if err != nil {
		o.ErrPrintln("error:", err)
	}

	o.Printf("%s", renderTree(s.engine.Tree()))

	return shellLoop(ctx, o, s, reader)
}

func shellLoop(ctx context.Context, o *IO, s *session, reader lineReader) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, err := reader.Prompt(shellPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		reader.AppendHistory(line)

		quit, err := shellDispatch(ctx, o, s, line)
		if err != nil {
			o.ErrPrintln("error:", err)
		}

		// Deferred work runs once the command that queued it has returned.
		err = s.engine.RunPending(ctx)
		if err != nil {
			o.ErrPrintln("error:", err)
		}

		if quit {
			return nil
		}
	}
}

// shellDispatch runs one shell line. It reports whether the shell should
// exit.
func shellDispatch(ctx context.Context, o *IO, s *session, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	render := func(err error) (bool, error) {
		if err != nil {
			return false, err
		}

		err = s.engine.RunPending(ctx)
		o.Printf("%s", renderTree(s.engine.Tree()))

		return false, err
	}

	switch cmd {
	case "quit", "exit", "q":
		return true, nil

	case "help", "?":
		printShellHelp(o)

		return false, nil

	case "show", "ls":
		return render(nil)

	case "tree", "filter":
		filter := s.cfg.Filter
		if len(args) > 0 {
			filter = strings.Join(args, " ")
		}

		return render(s.engine.OnFilterSubmitted(ctx, filter))

	case "done":
		if len(args) == 0 {
			return false, errIDRequired
		}

		return render(s.toggleDone(ctx, args[0]))

	case "delete", "del":
		if len(args) == 0 {
			return false, errIDRequired
		}

		return render(s.toggleDeleted(ctx, args[0]))

	case "add":
		return shellAdd(ctx, o, s, "", args)

	case "child":
		if len(args) == 0 {
			return false, errIDRequired
		}

		return shellAdd(ctx, o, s, args[0], args[1:])

	case "describe":
		if len(args) < 2 {
			return false, errDescriptionRequired
		}

		return render(s.describe(ctx, args[0], strings.Join(args[1:], " ")))

	case "move", "mv":
		if len(args) == 0 {
			return false, errIDRequired
		}

		parent := ""
		if len(args) > 1 {
			parent = args[1]
		}

		return render(s.move(ctx, args[0], parent))

	case "forget":
		if len(args) == 0 {
			return false, errIDRequired
		}

		return render(s.forget(ctx, args[0]))

	case "check":
		err := s.engine.Check()
		if err != nil {
			return false, err
		}

		o.Println("ok")

		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
}

func shellAdd(ctx context.Context, o *IO, s *session, parent string, args []string) (bool, error) {
	description := strings.Join(args, " ")
	if description == "" {
		return false, errDescriptionRequired
	}

	id, err := s.add(ctx, parent, description)
	if err != nil {
		return false, err
	}

	o.Println("Created", id.String())

	return false, nil
}

func printShellHelp(o *IO) {
	names := make([]string, 0, len(shellCommands))
	for name := range shellCommands {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		o.Println("  " + shellCommands[name])
	}
}

func completeShell(line string) []string {
	var out []string

	for name := range shellCommands {
		if strings.HasPrefix(name, strings.ToLower(line)) {
			out = append(out, name)
		}
	}

	sort.Strings(out)

	return out
}

func historyPath(cfg *config.Config) string {
	if cfg.HistoryFile == "" {
		return ""
	}

	if filepath.IsAbs(cfg.HistoryFile) {
		return cfg.HistoryFile
	}

	return filepath.Join(cfg.EffectiveCwd, cfg.HistoryFile)
}

func saveHistory(state *liner.State, path string) error {
	var buf bytes.Buffer

	_, err := state.WriteHistory(&buf)
	if err != nil {
		return err
	}

	return writeFileAtomic(path, &buf)
}
