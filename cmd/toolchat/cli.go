package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/hupe1980/toolchat"
	"github.com/hupe1980/toolchat/core"
)

// cli drives one terminal session over a ToolChat.
type cli struct {
	chat     *toolchat.ToolChat
	out      io.Writer
	threadID string
}

func newCLI(chat *toolchat.ToolChat, out io.Writer) *cli {
	return &cli{chat: chat, out: out, threadID: toolchat.NewThreadID()}
}

// send runs one user message on the current thread and renders its events.
// Ctrl-C cancels the run; the thread keeps every completed cycle.
func (c *cli) send(ctx context.Context, text string) error {
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, events, err := c.chat.StartOrResume(runCtx, c.threadID, text)
	if err != nil {
		return err
	}
	return render(c.out, events)
}

// render writes a run's events as they arrive and returns the error of a
// Failed event. Reporting it is left to the caller.
func render(w io.Writer, events <-chan core.StreamEvent) error {
	var runErr error
	for ev := range events {
		switch ev := ev.(type) {
		case core.TextDelta:
			fmt.Fprint(w, ev.Text)
		case core.ToolStarted:
			fmt.Fprintf(w, "\n[tool] %s ...\n", ev.Name)
		case core.ToolFinished:
			status := "done"
			if ev.IsError {
				status = "failed"
			}
			fmt.Fprintf(w, "[tool] %s %s: %s\n", ev.Name, status, oneLine(ev.Summary))
		case core.Completed:
			fmt.Fprintln(w)
		case core.Failed:
			fmt.Fprintln(w)
			runErr = ev.Err
		}
	}
	return runErr
}

func (c *cli) listThreads(ctx context.Context) error {
	ids, err := c.chat.ListThreads(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(c.out, "no threads")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(c.out, id)
	}
	return nil
}

func (c *cli) printHistory(ctx context.Context, threadID string) error {
	thread, err := c.chat.GetHistory(ctx, threadID)
	if err != nil {
		return err
	}
	writeHistory(c.out, thread)
	return nil
}

// writeHistory prints the user and assistant turns of a thread; tool
// traffic is shown as a compact trace line.
func writeHistory(w io.Writer, thread core.Thread) {
	if len(thread.Messages) == 0 {
		fmt.Fprintf(w, "thread %s is empty\n", thread.ID)
		return
	}
	for _, m := range thread.Messages {
		switch m.Role {
		case core.RoleUser:
			fmt.Fprintf(w, "you: %s\n", m.Content)
		case core.RoleAssistant:
			if m.HasToolCalls() {
				names := make([]string, len(m.ToolCalls))
				for i, call := range m.ToolCalls {
					names[i] = call.Name
				}
				fmt.Fprintf(w, "  [calls %s]\n", strings.Join(names, ", "))
				continue
			}
			fmt.Fprintf(w, "assistant: %s\n", m.Content)
		case core.RoleTool:
			fmt.Fprintf(w, "  [%s] %s\n", m.Name, oneLine(m.Content))
		}
	}
}

func (c *cli) clearThreads(ctx context.Context) error {
	ids, err := c.chat.ListThreads(ctx)
	if err != nil {
		return err
	}
	if err := c.chat.DeleteThreads(ctx, ids...); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "deleted %d threads\n", len(ids))
	return nil
}

// command handles a slash command. It reports false when the session ends.
func (c *cli) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return false, nil
	case "/new":
		c.threadID = toolchat.NewThreadID()
		fmt.Fprintf(c.out, "new thread %s\n", c.threadID)
	case "/threads":
		return true, c.listThreads(ctx)
	case "/history":
		return true, c.printHistory(ctx, c.threadID)
	case "/switch":
		if len(fields) != 2 {
			return true, errors.New("usage: /switch THREAD_ID")
		}
		c.threadID = fields[1]
		fmt.Fprintf(c.out, "switched to thread %s\n", c.threadID)
	default:
		return true, fmt.Errorf("unknown command %s", fields[0])
	}
	return true, nil
}

// handle processes one input line.
func (c *cli) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return true, nil
	}
	if strings.HasPrefix(line, "/") {
		return c.command(ctx, line)
	}
	return true, c.send(ctx, line)
}

// interactive reads lines from in until EOF or /quit. A terminal gets a
// line editor with history; anything else is read line by line.
func (c *cli) interactive(ctx context.Context, in *os.File) error {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return c.readLines(ctx, in)
	}

	t := term.NewTerminal(in, "> ")
	c.out = t
	fmt.Fprintf(t, "thread %s (type /quit to exit)\n", c.threadID)

	for {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		if width, height, err := term.GetSize(fd); err == nil {
			_ = t.SetSize(width, height)
		}

		line, err := t.ReadLine()
		if restoreErr := term.Restore(fd, oldState); restoreErr != nil {
			return restoreErr
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		more, err := c.handle(ctx, line)
		if err != nil {
			fmt.Fprintln(t, "error:", err)
		}
		if !more {
			return nil
		}
	}
}

func (c *cli) readLines(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		more, err := c.handle(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintln(c.out, "error:", err)
		}
		if !more {
			return nil
		}
	}
	return scanner.Err()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
