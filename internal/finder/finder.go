// Package finder runs an interactive picker over the clip history. The
// picker is either an external dmenu-style program that reads lines on
// stdin and prints the chosen one, or the built-in terminal picker.
package finder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/config"
)

// ErrCancelled is returned when the user dismissed the picker.
var ErrCancelled = errors.New("finder: selection cancelled")

// Finder lets the user choose one of lines and returns its index.
type Finder interface {
	Select(ctx context.Context, lines []string) (int, error)
}

// Lines renders clips as "<index>: <preview>" with previews truncated to
// width runes.
func Lines(clips []clip.Clip, width int) []string {
	out := make([]string, len(clips))
	for i, c := range clips {
		out[i] = strconv.Itoa(i) + ": " + c.Preview(width)
	}
	return out
}

// ParseIndex extracts the leading index from a picker's output and
// checks it against n lines. Empty output is a cancel.
func ParseIndex(output string, n int) (int, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	if line == "" {
		return 0, ErrCancelled
	}
	head, _, ok := strings.Cut(line, ":")
	if !ok {
		return 0, fmt.Errorf("finder: unexpected output %q", line)
	}
	i, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return 0, fmt.Errorf("finder: unexpected output %q", line)
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("finder: index %d out of range", i)
	}
	return i, nil
}

// New returns the finder named by kind, configured from m.
func New(m *config.Menu, kind config.Finder) (Finder, error) {
	t := m.Tuning(kind)
	switch kind {
	case config.FinderRofi:
		return &Exec{Program: "rofi", Args: []string{"-dmenu", "-l", strconv.Itoa(t.MenuLength), "-p", config.ProjectName}}, nil
	case config.FinderDmenu:
		return &Exec{Program: "dmenu", Args: []string{"-l", strconv.Itoa(t.MenuLength)}}, nil
	case config.FinderSkim:
		return &Exec{Program: "sk", Args: []string{"--no-multi"}}, nil
	case config.FinderCustom:
		return &Exec{Program: m.CustomFinder.Program, Args: m.CustomFinder.Args}, nil
	case config.FinderBuiltin:
		return &Builtin{Prompt: config.ProjectName}, nil
	default:
		return nil, fmt.Errorf("finder: unknown finder %q", kind)
	}
}

// Exec runs an external picker.
type Exec struct {
	Program string
	Args    []string
}

// Select feeds lines to the program and parses the line it prints. An
// exit status of 1 is a cancel, as dmenu, rofi and fzf report it.
func (e *Exec) Select(ctx context.Context, lines []string) (int, error) {
	cmd := exec.CommandContext(ctx, e.Program, e.Args...)
	cmd.Stdin = strings.NewReader(strings.Join(lines, "\n") + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return 0, ErrCancelled
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return 0, fmt.Errorf("finder: %s: %w (stderr: %s)", e.Program, err, msg)
		}
		return 0, fmt.Errorf("finder: %s: %w", e.Program, err)
	}
	return ParseIndex(stdout.String(), len(lines))
}
