// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "blockfs",
		Subcommands: []*Command{
			{Name: "mkfs", Run: func(args []string) error { called = "mkfs"; return nil }},
			{Name: "mount", Run: func(args []string) error { called = "mount"; return nil }},
		},
	}

	if err := root.Execute([]string{"mount"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "mount" {
		t.Errorf("dispatched to %q, want %q", called, "mount")
	}
}

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "blockfs",
		Subcommands: []*Command{
			{
				Name: "snapshot",
				Subcommands: []*Command{
					{
						Name: "export",
						Run: func(args []string) error {
							called = "snapshot export"
							receivedArgs = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := root.Execute([]string{"snapshot", "export", "disk.img"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "snapshot export" {
		t.Errorf("dispatched to %q, want %q", called, "snapshot export")
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "disk.img" {
		t.Errorf("args = %v, want [disk.img]", receivedArgs)
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var blockCount int
	var force bool
	var receivedArgs []string

	command := &Command{
		Name: "mkfs",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("mkfs", pflag.ContinueOnError)
			flagSet.IntVar(&blockCount, "block-count", 256, "blocks")
			flagSet.BoolVarP(&force, "force", "f", false, "overwrite")
			return flagSet
		},
		Run: func(args []string) error {
			receivedArgs = args
			return nil
		},
	}

	if err := command.Execute([]string{"--block-count", "512", "-f", "disk.img"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if blockCount != 512 || !force {
		t.Errorf("block-count=%d force=%v, want 512 true", blockCount, force)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "disk.img" {
		t.Errorf("args = %v, want [disk.img]", receivedArgs)
	}
}

func TestCommand_Execute_Errors(t *testing.T) {
	newRoot := func() *Command {
		return &Command{
			Name:   "blockfs",
			Stderr: &bytes.Buffer{},
			Subcommands: []*Command{
				{
					Name: "inspect",
					Flags: func() *pflag.FlagSet {
						flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
						flagSet.Bool("verbose", false, "more detail")
						return flagSet
					},
					Run: func(args []string) error { return nil },
				},
			},
		}
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no subcommand", nil, "subcommand required"},
		{"typo in command", []string{"inpsect"}, `did you mean "inspect"`},
		{"unrelated command", []string{"format-everything"}, `unknown command "format-everything"`},
		{"typo in flag", []string{"inspect", "--verbos"}, "did you mean --verbose"},
		{"flag on group", []string{"--verbose"}, "subcommand required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newRoot().Execute(tt.args)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	var output bytes.Buffer
	root := &Command{
		Name:        "blockfs",
		Description: "Single-block filesystem images.",
		Stderr:      &output,
		Subcommands: []*Command{
			{Name: "mkfs", Summary: "Format an image"},
		},
		Examples: []Example{
			{Description: "Format a fresh image", Command: "blockfs mkfs disk.img"},
		},
	}

	if err := root.Execute([]string{"--help"}); err != nil {
		t.Fatalf("Execute(--help) error: %v", err)
	}
	help := output.String()
	for _, want := range []string{
		"Single-block filesystem images.",
		"blockfs <command> [flags]",
		"mkfs",
		"Format an image",
		"# Format a fresh image",
		"Run 'blockfs <command> --help'",
	} {
		if !strings.Contains(help, want) {
			t.Errorf("help output missing %q:\n%s", want, help)
		}
	}
}

func TestCommand_Execute_VersionOnEveryForm(t *testing.T) {
	for _, args := range [][]string{
		{"--version"},
		{"snapshot", "--version"},
		{"snapshot", "export", "disk.img", "--version"},
	} {
		var stdout bytes.Buffer
		ran := false
		root := &Command{
			Name:    "blockfs",
			Version: func() string { return "blockfs v1.2.3" },
			Stdout:  &stdout,
			Subcommands: []*Command{
				{
					Name: "snapshot",
					Subcommands: []*Command{
						{Name: "export", Run: func(args []string) error { ran = true; return nil }},
					},
				},
			},
		}
		if err := root.Execute(args); err != nil {
			t.Fatalf("Execute(%v) error: %v", args, err)
		}
		if stdout.String() != "blockfs v1.2.3\n" {
			t.Errorf("Execute(%v) printed %q", args, stdout.String())
		}
		if ran {
			t.Errorf("Execute(%v) ran the command instead of printing the version", args)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"mkfs", "", 4},
		{"mount", "mount", 0},
		{"mkfs", "mfks", 2},
		{"inspect", "inpsect", 2},
		{"kitten", "sitting", 3},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var prompt bytes.Buffer
		got, err := confirm(strings.NewReader(tt.answer), &prompt, "Overwrite disk.img?")
		if err != nil {
			t.Fatalf("confirm(%q) error: %v", tt.answer, err)
		}
		if got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.answer, got, tt.want)
		}
		if prompt.String() != "Overwrite disk.img? [y/N] " {
			t.Errorf("prompt = %q", prompt.String())
		}
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var text, json bytes.Buffer
	newLogger(&text, slog.LevelInfo, true).Info("mounted", "image", "disk.img")
	newLogger(&json, slog.LevelInfo, false).Info("mounted", "image", "disk.img")

	if !strings.Contains(text.String(), "image=disk.img") {
		t.Errorf("terminal output is not text: %q", text.String())
	}
	if !strings.Contains(json.String(), `"image":"disk.img"`) {
		t.Errorf("piped output is not JSON: %q", json.String())
	}

	var filtered bytes.Buffer
	newLogger(&filtered, slog.LevelWarn, false).Info("dropped")
	if filtered.Len() != 0 {
		t.Errorf("info record passed a warn-level logger: %q", filtered.String())
	}
}
