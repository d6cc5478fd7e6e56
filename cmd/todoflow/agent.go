package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/todoflow/internal/agent"
	"github.com/sandeepkv93/todoflow/internal/config"
)

func agentCmd(cfg func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Interactive tool-call shell: tool_name {json args}",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStack(cmd.Context(), cfg(), stackOptions{})
			if err != nil {
				return err
			}
			defer st.Close()

			r := &repl{dispatcher: agent.NewDispatcher(st.service), out: cmd.OutOrStdout()}
			return r.run(cmd.Context())
		},
	}
}

type repl struct {
	dispatcher *agent.Dispatcher
	out        io.Writer
	line       *liner.State
}

func agentHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".todoflow_history")
}

func (r *repl) run(ctx context.Context) error {
	r.line = liner.NewLiner()
	defer r.line.Close()
	r.line.SetCtrlCAborts(true)
	r.line.SetCompleter(completeToolName)

	if f, err := os.Open(agentHistoryFile()); err == nil {
		_, _ = r.line.ReadHistory(f)
		f.Close()
	}
	defer r.saveHistory()

	fmt.Fprintln(r.out, "todoflow agent shell. Type 'tools' for the tool list, 'exit' to quit.")
	for {
		input, err := r.line.Prompt("todoflow> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		switch input {
		case "exit", "quit":
			return nil
		case "tools", "help":
			r.printTools()
			continue
		}
		fmt.Fprintln(r.out, r.eval(ctx, input))
	}
}

func (r *repl) eval(ctx context.Context, input string) string {
	call, err := agent.ParseCall(input)
	if err != nil {
		return "error: " + err.Error()
	}
	text, err := r.dispatcher.Call(ctx, string(call.Name), call.Args)
	if err != nil {
		return "error: " + err.Error()
	}
	return text
}

func (r *repl) printTools() {
	b, err := json.MarshalIndent(agent.Tools(), "", "  ")
	if err != nil {
		fmt.Fprintln(r.out, "error:", err)
		return
	}
	fmt.Fprintln(r.out, string(b))
}

func (r *repl) saveHistory() {
	path := agentHistoryFile()
	if path == "" {
		return
	}
	if f, err := os.Create(path); err == nil {
		_, _ = r.line.WriteHistory(f)
		f.Close()
	}
}

func completeToolName(line string) []string {
	var out []string
	for _, t := range agent.Tools() {
		if strings.HasPrefix(string(t.Name), strings.ToLower(line)) {
			out = append(out, string(t.Name)+" ")
		}
	}
	return out
}
