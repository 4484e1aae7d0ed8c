package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"dezolver/internal/grading/model"
)

// CommandSpec describes how to compile and run one language. Argv entries may
// use the placeholders {source}, {dir} and {binary}.
type CommandSpec struct {
	// SourceFile is the file name the source code is written to, e.g. "main.py".
	SourceFile string `yaml:"sourceFile"`
	// Compile is optional; a non-zero exit is reported as ExitCompileError.
	Compile []string `yaml:"compile"`
	// Run executes the program with the test input on stdin.
	Run []string `yaml:"run"`
}

// CommandSandbox is a reference Sandbox adapter that executes submissions as
// local processes. It enforces the time limit via the context deadline and
// classifies outcomes; it provides no isolation and is meant for development
// and tests, with hardened engines substituted behind the same interface.
type CommandSandbox struct {
	workRoot string
	specs    map[model.Language]CommandSpec
}

// NewCommandSandbox creates a command sandbox writing per-run workspaces
// under workRoot.
func NewCommandSandbox(workRoot string, specs map[model.Language]CommandSpec) (*CommandSandbox, error) {
	if workRoot == "" {
		return nil, fmt.Errorf("work root is required")
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one language spec is required")
	}
	return &CommandSandbox{workRoot: workRoot, specs: specs}, nil
}

// Run implements Sandbox.
func (s *CommandSandbox) Run(ctx context.Context, req Request) (Outcome, error) {
	spec, ok := s.specs[req.Language]
	if !ok {
		return Outcome{ExitClass: ExitSandboxError}, fmt.Errorf("no command spec for language %q", req.Language)
	}

	dir, err := os.MkdirTemp(s.workRoot, "run-")
	if err != nil {
		return Outcome{ExitClass: ExitSandboxError}, fmt.Errorf("create workspace failed: %w", err)
	}
	defer os.RemoveAll(dir)

	sourcePath := filepath.Join(dir, spec.SourceFile)
	if err := os.WriteFile(sourcePath, []byte(req.SourceCode), 0644); err != nil {
		return Outcome{ExitClass: ExitSandboxError}, fmt.Errorf("write source failed: %w", err)
	}

	if len(spec.Compile) > 0 {
		compileCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		out, err := s.execute(compileCtx, spec.Compile, dir, sourcePath, "")
		cancel()
		if err != nil {
			return Outcome{ExitClass: ExitSandboxError}, err
		}
		if out.ExitCode != 0 {
			out.ExitClass = ExitCompileError
			return out, nil
		}
	}

	timeout := time.Duration(req.TimeLimitMs) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := s.execute(runCtx, spec.Run, dir, sourcePath, req.Stdin)
	if err != nil {
		return Outcome{ExitClass: ExitSandboxError}, err
	}

	switch {
	case out.ElapsedMs > req.TimeLimitMs:
		out.ExitClass = ExitTimeout
	case req.MemoryLimitKB > 0 && out.PeakMemoryKB > req.MemoryLimitKB:
		out.ExitClass = ExitMemoryExceeded
	case out.ExitCode != 0:
		out.ExitClass = ExitNonZero
	default:
		out.ExitClass = ExitOK
	}
	return out, nil
}

func (s *CommandSandbox) execute(ctx context.Context, argv []string, dir, sourcePath, stdin string) (Outcome, error) {
	if len(argv) == 0 {
		return Outcome{}, fmt.Errorf("empty command")
	}
	expanded := make([]string, len(argv))
	for i, arg := range argv {
		arg = strings.ReplaceAll(arg, "{source}", sourcePath)
		arg = strings.ReplaceAll(arg, "{dir}", dir)
		arg = strings.ReplaceAll(arg, "{binary}", filepath.Join(dir, "program"))
		expanded[i] = arg
	}

	cmd := exec.CommandContext(ctx, expanded[0], expanded[1:]...)
	cmd.Dir = dir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	out := Outcome{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ElapsedMs: elapsed.Milliseconds(),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
		out.PeakMemoryKB = peakMemoryKB(cmd.ProcessState)
	}

	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			out.ExitClass = ExitTimeout
			if out.ExitCode == 0 {
				out.ExitCode = -1
			}
			return out, nil
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return out, fmt.Errorf("start process failed: %w", runErr)
		}
	}
	return out, nil
}
