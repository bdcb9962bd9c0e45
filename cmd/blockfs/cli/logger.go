// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// NewCommandLogger creates a structured logger for CLI operations at
// the given level. When stderr is a terminal it uses slog.TextHandler
// for human-readable output; when piped or redirected it uses
// slog.JSONHandler so scripts and log collectors can parse it.
//
//	logger := cli.NewCommandLogger(slog.LevelInfo).With("image", path)
func NewCommandLogger(level slog.Level) *slog.Logger {
	return newLogger(os.Stderr, level, term.IsTerminal(int(os.Stderr.Fd())))
}

func newLogger(w io.Writer, level slog.Level, terminal bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if terminal {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// Confirm asks a yes/no question on stderr and reads the answer from
// stdin. When stdin is not a terminal nobody can answer, so Confirm
// returns false without prompting.
func Confirm(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, nil
	}
	return confirm(os.Stdin, os.Stderr, question)
}

func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
