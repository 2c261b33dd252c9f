// Package cli provides the terminal executor for a conversation session:
// a turn-by-turn read loop over stdin with slash commands for switching,
// browsing, and ending conversations.
//
// Example usage:
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//
//	    "github.com/pcl-labs/navigator/pkg/executor/cli"
//	    "github.com/pcl-labs/navigator/pkg/session"
//	)
//
//	func main() {
//	    conv := session.NewConversation(sctx, store, provider, library)
//	    executor := cli.NewExecutor(conv, sctx, store, cfg)
//
//	    if err := executor.Run(context.Background()); err != nil {
//	        log.Fatal(err)
//	    }
//	}
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/pcl-labs/navigator/pkg/config"
	"github.com/pcl-labs/navigator/pkg/session"
	"github.com/pcl-labs/navigator/pkg/store"
)

// Executor is a CLI-based executor that enables turn-by-turn conversation
// through terminal input/output. Each user line becomes a persisted turn
// followed by a generated reply; slash commands manage the conversation
// lifecycle.
type Executor struct {
	conv   *session.Conversation
	sctx   *session.Context
	store  *store.Store
	cfg    *config.Config
	reader *bufio.Reader
	writer io.Writer
	errOut io.Writer
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*Executor)

// WithReader sets a custom input reader (default is os.Stdin).
func WithReader(r io.Reader) ExecutorOption {
	return func(e *Executor) {
		e.reader = bufio.NewReader(r)
	}
}

// WithWriter sets a custom output writer (default is os.Stdout).
func WithWriter(w io.Writer) ExecutorOption {
	return func(e *Executor) {
		e.writer = w
		e.errOut = w
	}
}

// NewExecutor creates a new CLI executor for the given conversation
// session.
func NewExecutor(conv *session.Conversation, sctx *session.Context, s *store.Store, cfg *config.Config, opts ...ExecutorOption) *Executor {
	e := &Executor{
		conv:   conv,
		sctx:   sctx,
		store:  s,
		cfg:    cfg,
		reader: bufio.NewReader(os.Stdin),
		writer: os.Stdout,
		errOut: os.Stderr,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run starts the conversation loop. It returns when the user quits, input
// reaches EOF, or the context is canceled. The active conversation is
// crystallized on the way out, whatever the exit path.
func (e *Executor) Run(ctx context.Context) error {
	if e.conv.ConversationID() == uuid.Nil {
		if err := e.conv.StartNew(ctx); err != nil {
			fmt.Fprintf(e.errOut, "warning: %v\n", err)
		}
	}

	fmt.Fprintf(e.writer, "Conversation %s. Type /help for commands, /quit to exit.\n\n", e.conv.ConversationID())

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		default:
		}

		fmt.Fprint(e.writer, "> ")
		input, err := e.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				e.shutdown()
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := e.handleCommand(ctx, input); quit {
				e.shutdown()
				return nil
			}
			continue
		}

		e.handleTurn(ctx, input)
	}
}

// handleTurn persists the user's message and prints the generated reply.
// A failed reply leaves the user turn saved and the loop running.
func (e *Executor) handleTurn(ctx context.Context, input string) {
	if err := e.conv.PostUserTurn(ctx, input); err != nil {
		fmt.Fprintf(e.errOut, "error: message not saved: %v\n", err)
		return
	}
	reply, err := e.conv.GenerateReply(ctx)
	if err != nil {
		fmt.Fprintf(e.errOut, "error: no reply: %v\n", err)
		return
	}
	fmt.Fprintf(e.writer, "\n%s\n\n", reply)
}

// handleCommand dispatches a slash command. Returns true when the loop
// should exit.
func (e *Executor) handleCommand(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/new":
		if err := e.conv.StartNew(ctx); err != nil {
			fmt.Fprintf(e.errOut, "warning: previous conversation not crystallized: %v\n", err)
		}
		fmt.Fprintf(e.writer, "Started conversation %s\n", e.conv.ConversationID())

	case "/open":
		e.handleOpen(ctx, fields)

	case "/history":
		e.handleHistory(ctx)

	case "/lang":
		if len(fields) < 2 {
			fmt.Fprintln(e.errOut, "usage: /lang <code>")
			return false
		}
		if err := e.cfg.SaveLanguage(e.sctx.UserID, fields[1]); err != nil {
			fmt.Fprintf(e.errOut, "error: preference not saved: %v\n", err)
			return false
		}
		e.sctx.Language = fields[1]
		fmt.Fprintf(e.writer, "Language set to %s\n", fields[1])

	case "/help":
		fmt.Fprintln(e.writer, "Commands:")
		fmt.Fprintln(e.writer, "  /new          Crystallize the current conversation and start a new one")
		fmt.Fprintln(e.writer, "  /open <id>    Switch to an existing conversation")
		fmt.Fprintln(e.writer, "  /history      List your conversations, newest first")
		fmt.Fprintln(e.writer, "  /lang <code>  Save your language preference")
		fmt.Fprintln(e.writer, "  /quit         Crystallize and exit")

	default:
		fmt.Fprintf(e.errOut, "unknown command %s (try /help)\n", fields[0])
	}
	return false
}

func (e *Executor) handleOpen(ctx context.Context, fields []string) {
	if len(fields) < 2 {
		fmt.Fprintln(e.errOut, "usage: /open <conversation-id>")
		return
	}
	id, err := uuid.Parse(fields[1])
	if err != nil {
		fmt.Fprintf(e.errOut, "error: invalid conversation id: %v\n", err)
		return
	}
	if err := e.conv.Select(ctx, id); err != nil {
		fmt.Fprintf(e.errOut, "error: %v\n", err)
		return
	}
	fmt.Fprintf(e.writer, "Switched to conversation %s (%d turns)\n", id, len(e.conv.Turns()))
}

func (e *Executor) handleHistory(ctx context.Context) {
	entries, err := e.store.Summaries().History(ctx, e.sctx.Key, e.sctx.UserID)
	if err != nil {
		fmt.Fprintf(e.errOut, "error: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(e.writer, "No conversations yet.")
		return
	}
	for _, entry := range entries {
		fmt.Fprintf(e.writer, "  %s  %s  %s\n", entry.ConversationID, entry.CreatedAt.Format("2006-01-02 15:04"), entry.Title)
	}
}

// shutdown crystallizes the active conversation before the key goes away.
func (e *Executor) shutdown() {
	fmt.Fprintln(e.writer, "\nShutting down...")
	if err := e.conv.Flush(context.Background()); err != nil {
		fmt.Fprintf(e.errOut, "warning: final crystallization failed: %v\n", err)
	}
}
