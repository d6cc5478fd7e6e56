package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/sandeepkv93/todoflow/internal/agent"
	"github.com/sandeepkv93/todoflow/internal/config"
)

func TestGlobalFlagsLayering(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "todoflow.yaml")
	if err := os.WriteFile(cfgPath, []byte("db_path: from-file.db\nlog_level: debug\npublisher: none\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TODOFLOW_LOG_LEVEL", "warn")

	fs := pflag.NewFlagSet("todoflow", pflag.ContinueOnError)
	flags := &globalFlags{}
	flags.register(fs)
	if err := fs.Parse([]string{"--config", cfgPath, "--db", "from-flag.db"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := flags.load(fs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "from-flag.db" {
		t.Fatalf("flag should win for db path, got %q", cfg.DBPath)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("env should override file, got %q", cfg.LogLevel)
	}
	if cfg.Publisher != config.PublisherNone {
		t.Fatalf("file value should survive, got %q", cfg.Publisher)
	}
}

func TestGlobalFlagsRejectInvalidPublisher(t *testing.T) {
	fs := pflag.NewFlagSet("todoflow", pflag.ContinueOnError)
	flags := &globalFlags{}
	flags.register(fs)
	if err := fs.Parse([]string{"--publisher", "kafka"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := flags.load(fs); err == nil {
		t.Fatal("expected invalid publisher error")
	}
}

func TestAddListCompleteRoundTrip(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	run := func(args ...string) string {
		t.Helper()
		root := newRootCmd()
		var out strings.Builder
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(append([]string{"--db", db, "--publisher", "none", "--log-level", "error"}, args...))
		if err := root.Execute(); err != nil {
			t.Fatalf("%v: %v\n%s", args, err, out.String())
		}
		return out.String()
	}

	created := run("add", "Pay", "rent", "--due", "2025-01-31 09:00", "--every", "monthly")
	fields := strings.Fields(created)
	if len(fields) < 2 || fields[0] != "created" {
		t.Fatalf("unexpected add output: %q", created)
	}
	id := fields[1]

	done := run("complete", id[:8])
	if !strings.Contains(done, "is completed") || !strings.Contains(done, "next occurrence") {
		t.Fatalf("unexpected complete output: %q", done)
	}

	listed := run("list", "--status", "pending")
	if !strings.Contains(listed, "Pay rent") {
		t.Fatalf("expected the next occurrence to be listed, got %q", listed)
	}
}

func TestCompleteToolName(t *testing.T) {
	got := completeToolName("comp")
	if len(got) != 1 || got[0] != string(agent.ToolCompleteTask)+" " {
		t.Fatalf("unexpected completions: %v", got)
	}
}
