// Copyright 2025 The Cortex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/cortexkb/cortex/pkg/agent"
)

// QueryCmd answers one question, or starts an interactive session when no
// question is given and stdin is a terminal.
type QueryCmd struct {
	Text []string `arg:"" optional:"" help:"Question to ask. Omit for an interactive session."`

	Trace bool `help:"Print the reasoning trace after the answer."`
	JSON  bool `help:"Print the full response as JSON."`
}

func (c *QueryCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := buildApp(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(c.Text) > 0 {
		return c.ask(ctx, a, strings.Join(c.Text, " "), nil)
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return c.interactive(ctx, a)
	}

	// Piped input: treat all of stdin as one question.
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	query := strings.TrimSpace(string(input))
	if query == "" {
		return fmt.Errorf("no query given")
	}
	return c.ask(ctx, a, query, nil)
}

func (c *QueryCmd) interactive(ctx context.Context, a *app) error {
	fmt.Println("Cortex interactive session. Type /quit to exit.")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	session := map[string]any{}
	var history []string

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}
		switch query {
		case "/quit", "/exit":
			return nil
		}

		if len(history) > 0 {
			session["chat_history"] = strings.Join(history, "\n")
		}
		if err := c.ask(ctx, a, query, session); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		history = append(history, query)
	}
}

func (c *QueryCmd) ask(ctx context.Context, a *app, query string, session map[string]any) error {
	response := a.orchestrator.ProcessQuery(ctx, query, session)

	if c.JSON {
		out, err := json.MarshalIndent(response.ToMap(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(response.Answer)

	if len(response.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, source := range response.Sources {
			line := "  - " + source.Document
			if source.PageNumber > 0 {
				line += fmt.Sprintf(" (page %d)", source.PageNumber)
			}
			if source.ConfidenceScore > 0 {
				line += fmt.Sprintf(" [%.2f]", source.ConfidenceScore)
			}
			fmt.Println(line)
		}
	}

	if c.Trace {
		fmt.Println()
		fmt.Println("Reasoning trace:")
		printTrace(response.ReasoningTrace)
	}
	return nil
}

func printTrace(trace []agent.TraceEntry) {
	for _, entry := range trace {
		line := "  " + entry.Step
		if entry.Tool != "" {
			line += " tool=" + entry.Tool
		}
		if entry.Strategy != "" {
			line += " strategy=" + entry.Strategy
		}
		if entry.Intent != "" {
			line += " intent=" + entry.Intent
		}
		if entry.Complexity != "" {
			line += " complexity=" + entry.Complexity
		}
		if entry.Reason != "" {
			line += " reason=" + strconv.Quote(entry.Reason)
		}
		if entry.Error != "" {
			line += " error=" + strconv.Quote(entry.Error)
		}
		fmt.Println(line)
	}
}
