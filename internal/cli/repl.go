package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/shlex"

	"dezolver/internal/grading/model"
)

// REPL is the interactive grader console.
type REPL struct {
	client *Client
	userID int64
}

// NewREPL creates a console bound to one user identity.
func NewREPL(client *Client, userID int64) *REPL {
	return &REPL{client: client, userID: userID}
}

// Run reads commands until EOF or "exit".
func (r *REPL) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "grader> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("submit"),
			readline.PcItem("status"),
			readline.PcItem("watch"),
			readline.PcItem("langs"),
			readline.PcItem("help"),
			readline.PcItem("exit"),
		),
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		args, err := shlex.Split(strings.TrimSpace(line))
		if err != nil {
			fmt.Printf("parse error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		if args[0] == "exit" || args[0] == "quit" {
			return nil
		}
		if err := r.dispatch(ctx, args); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (r *REPL) dispatch(ctx context.Context, args []string) error {
	switch args[0] {
	case "submit":
		return r.cmdSubmit(ctx, args[1:])
	case "status":
		return r.cmdStatus(ctx, args[1:])
	case "watch":
		return r.cmdWatch(ctx, args[1:])
	case "langs":
		return r.cmdLangs(ctx)
	case "help":
		printHelp()
		return nil
	default:
		return fmt.Errorf("unknown command %q, try help", args[0])
	}
}

func (r *REPL) cmdSubmit(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: submit <problem_id> <language> <source_file>")
	}
	problemID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid problem id %q", args[0])
	}
	source, err := os.ReadFile(args[2])
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}

	snap, err := r.client.Submit(ctx, problemID, r.userID, args[1], string(source))
	if err != nil {
		return err
	}
	fmt.Printf("submitted %s (%s)\n", snap.SubmissionID, snap.Status)
	return nil
}

func (r *REPL) cmdStatus(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: status <submission_id>")
	}
	snap, err := r.client.Status(ctx, args[0])
	if err != nil {
		return err
	}
	printSnapshot(*snap)
	return nil
}

func (r *REPL) cmdWatch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: watch <submission_id>")
	}
	return r.client.Watch(ctx, args[0], func(snap model.StatusSnapshot) {
		printSnapshot(snap)
	})
}

func (r *REPL) cmdLangs(ctx context.Context) error {
	langs, err := r.client.Languages(ctx)
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(langs, ", "))
	return nil
}

func printSnapshot(snap model.StatusSnapshot) {
	line := fmt.Sprintf("[%s] %s", snap.SubmissionID, snap.Status)
	if snap.Status.IsTerminal() {
		line += fmt.Sprintf("  score=%d time=%dms memory=%dKB", snap.Score, snap.TimeUsedMs, snap.MemoryUsedKB)
		if snap.CompletedAt > 0 {
			line += "  completed=" + time.Unix(snap.CompletedAt, 0).Format(time.RFC3339)
		}
	}
	fmt.Println(line)
}

func printHelp() {
	fmt.Print(`commands:
  submit <problem_id> <language> <source_file>   submit code for grading
  status <submission_id>                         show current status
  watch  <submission_id>                         follow status until terminal
  langs                                          list supported languages
  exit                                           leave the console
`)
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.grader_history"
}
