package sandbox

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// ValidationResult is the outcome of one command run inside the sandbox.
// A failing command is a result, not an error.
type ValidationResult struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
}

// Validate runs command through the configured shell with the sandbox as its
// working directory and waits for it to finish. ExitCode is -1 when the
// command could not be started or was killed by ctx.
func (s *Sandbox) Validate(ctx context.Context, command string) ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, command)
}

func (s *Sandbox) run(ctx context.Context, command string) ValidationResult {
	cmd := exec.CommandContext(ctx, s.shell, "-c", command)
	cmd.Dir = s.path
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			if stderr.Len() == 0 {
				stderr.WriteString(err.Error())
			}
		}
	}

	s.logger.Debug("sandbox validate", slog.String("command", command), slog.Int("exit_code", exitCode))
	return ValidationResult{
		Success:  exitCode == 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

// Check is a named validation command. Triggers are doublestar globs matched
// against each modified path and its base name; a check without triggers
// always runs.
type Check struct {
	Name     string   `yaml:"name" json:"name"`
	Command  string   `yaml:"command" json:"command"`
	Triggers []string `yaml:"triggers,omitempty" json:"triggers,omitempty"`
	Required bool     `yaml:"required" json:"required"`
}

// CheckResult is one executed check.
type CheckResult struct {
	Check
	ValidationResult
	Duration time.Duration
}

// CheckReport aggregates a RunChecks call. Passed is true when every
// required check that ran succeeded.
type CheckReport struct {
	Passed  bool
	Results []CheckResult
}

// RunChecks runs, in order, every check triggered by the current modified
// set.
func (s *Sandbox) RunChecks(ctx context.Context, checks []Check) CheckReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := CheckReport{Passed: true}
	for _, c := range checks {
		if len(c.Triggers) > 0 && !matchesAny(c.Triggers, s.modified) {
			continue
		}
		start := time.Now()
		res := s.run(ctx, c.Command)
		report.Results = append(report.Results, CheckResult{
			Check:            c,
			ValidationResult: res,
			Duration:         time.Since(start),
		})
		if c.Required && !res.Success {
			report.Passed = false
		}
	}
	return report
}

// matchesAny reports whether any path, or its base name, matches any pattern.
func matchesAny(patterns, paths []string) bool {
	for _, pattern := range patterns {
		for _, p := range paths {
			if ok, _ := doublestar.Match(pattern, p); ok {
				return true
			}
			if ok, _ := doublestar.Match(pattern, filepath.Base(p)); ok {
				return true
			}
		}
	}
	return false
}
