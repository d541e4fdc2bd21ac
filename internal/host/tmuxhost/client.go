// Package tmuxhost implements host.Host on a tmux server. A panelctx window is
// a tmux session, a tab is a tmux window index and the split path comes from
// the window layout.
package tmuxhost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/regenrek/panelctx/internal/host"
	"github.com/regenrek/panelctx/internal/identity"
	"github.com/regenrek/panelctx/internal/limits"
	"github.com/regenrek/panelctx/internal/logging"
	"github.com/regenrek/panelctx/internal/panel"
)

type Options struct {
	Bin string
	// DefaultWindow names the session created for placements without a window.
	DefaultWindow     string
	PollInterval      time.Duration
	ShellReadyTimeout time.Duration
}

// Client drives tmux through its CLI.
type Client struct {
	bin               string
	defaultWindow     string
	poll              time.Duration
	shellReadyTimeout time.Duration
	run               func(ctx context.Context, name string, args ...string) *exec.Cmd

	events    chan host.Event
	startOnce sync.Once
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

var _ host.Host = (*Client)(nil)

// New resolves the tmux binary and returns a Client.
func New(opts Options) (*Client, error) {
	bin := strings.TrimSpace(opts.Bin)
	if bin == "" {
		bin = "tmux"
	}
	resolved, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("tmux not found: %w", err)
	}
	c := newClient(resolved, opts)
	return c, nil
}

func newClient(bin string, opts Options) *Client {
	c := &Client{
		bin:               bin,
		defaultWindow:     strings.TrimSpace(opts.DefaultWindow),
		poll:              opts.PollInterval,
		shellReadyTimeout: opts.ShellReadyTimeout,
		run:               exec.CommandContext,
		events:            make(chan host.Event, 64),
		stop:              make(chan struct{}),
	}
	if c.defaultWindow == "" {
		c.defaultWindow = identity.AppSlug
	}
	if c.poll <= 0 {
		c.poll = 500 * time.Millisecond
	}
	if c.shellReadyTimeout <= 0 {
		c.shellReadyTimeout = 5 * time.Second
	}
	return c
}

// WithExec allows tests to override the exec implementation.
func (c *Client) WithExec(fn func(context.Context, string, ...string) *exec.Cmd) {
	c.run = fn
}

// tmuxError carries stderr of a failed tmux invocation.
type tmuxError struct {
	args   []string
	stderr string
	err    error
}

func (e *tmuxError) Error() string {
	if e.stderr == "" {
		return fmt.Sprintf("tmux %s: %v", e.args[0], e.err)
	}
	return fmt.Sprintf("tmux %s: %v: %s", e.args[0], e.err, e.stderr)
}

func (e *tmuxError) Unwrap() error { return e.err }

func (e *tmuxError) mentions(s string) bool {
	return strings.Contains(strings.ToLower(e.stderr), s)
}

func (c *Client) output(ctx context.Context, args ...string) (string, error) {
	cmd := c.run(ctx, c.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", &tmuxError{args: args, stderr: strings.TrimSpace(stderr.String()), err: err}
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func (c *Client) exec(ctx context.Context, args ...string) error {
	_, err := c.output(ctx, args...)
	return err
}

// classify maps tmux complaints about missing targets onto host errors.
func classify(err error, pane host.PaneID) error {
	var te *tmuxError
	if errors.As(err, &te) && (te.mentions("can't find pane") || te.mentions("can't find window")) {
		return fmt.Errorf("%w: %s: %v", host.ErrPaneNotFound, pane, err)
	}
	return err
}

func (c *Client) sessionExists(ctx context.Context, session string) (bool, error) {
	err := c.exec(ctx, "has-session", "-t", "="+session)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, err
}

// tmuxWindow is one row of list-windows output.
type tmuxWindow struct {
	index string
	name  string
}

// holds reports whether tab names this window by index or by name.
func (w tmuxWindow) holds(tab string) bool {
	return w.index == tab || w.name == tab
}

func (c *Client) windows(ctx context.Context, session string) ([]tmuxWindow, error) {
	out, err := c.output(ctx, "list-windows", "-t", "="+session, "-F", "#{window_index}\t#{window_name}")
	if err != nil {
		return nil, err
	}
	var windows []tmuxWindow
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		index, name, _ := strings.Cut(line, "\t")
		windows = append(windows, tmuxWindow{index: strings.TrimSpace(index), name: name})
	}
	return windows, nil
}

func (c *Client) freeSessionName(ctx context.Context) (string, error) {
	for i := 1; ; i++ {
		name := c.defaultWindow
		if i > 1 {
			name += "-" + strconv.Itoa(i)
		}
		exists, err := c.sessionExists(ctx, name)
		if err != nil {
			return "", err
		}
		if !exists {
			return name, nil
		}
	}
}

func (c *Client) CreatePane(ctx context.Context, at host.Placement) (host.PaneID, error) {
	session := strings.TrimSpace(at.Window)
	if session == "" {
		name, err := c.freeSessionName(ctx)
		if err != nil {
			return "", err
		}
		return c.newSession(ctx, name, "")
	}
	exists, err := c.sessionExists(ctx, session)
	if err != nil {
		return "", err
	}
	if !exists {
		return c.newSession(ctx, session, at.Tab)
	}
	target := "=" + session + ":"
	args := []string{"new-window", "-d", "-P", "-F", "#{pane_id}"}
	if tab := strings.TrimSpace(at.Tab); tab != "" {
		windows, err := c.windows(ctx, session)
		if err != nil {
			return "", err
		}
		for _, w := range windows {
			if w.holds(tab) {
				return "", fmt.Errorf("%w: %s:%s", host.ErrTargetOccupied, session, tab)
			}
		}
		if isIndex(tab) {
			target += tab
		} else {
			args = append(args, "-n", tab)
		}
	}
	args = append(args, "-t", target)
	out, err := c.output(ctx, args...)
	if err != nil {
		return "", err
	}
	return paneIDFrom(out, "new-window")
}

// newSession creates a detached session. A numeric tab moves the first window
// to that index and a tag names it, so the location reproduces.
func (c *Client) newSession(ctx context.Context, session, tab string) (host.PaneID, error) {
	tab = strings.TrimSpace(tab)
	args := []string{"new-session", "-d", "-s", session}
	if tab != "" && !isIndex(tab) {
		args = append(args, "-n", tab)
	}
	args = append(args, "-P", "-F", "#{pane_id}\t#{window_index}")
	out, err := c.output(ctx, args...)
	if err != nil {
		return "", err
	}
	id, idx, _ := strings.Cut(out, "\t")
	pane, err := paneIDFrom(id, "new-session")
	if err != nil {
		return "", err
	}
	if isIndex(tab) && tab != strings.TrimSpace(idx) {
		if err := c.exec(ctx, "move-window", "-s", "="+session+":"+strings.TrimSpace(idx), "-t", "="+session+":"+tab); err != nil {
			slog.Debug("tmuxhost: move-window failed", slog.String("session", session), slog.Any("err", err))
		}
	}
	return pane, nil
}

func (c *Client) Split(ctx context.Context, pane host.PaneID, dir panel.Direction) (host.PaneID, error) {
	flag := "-h"
	if dir == panel.Down {
		flag = "-v"
	}
	out, err := c.output(ctx, "split-window", "-d", flag, "-t", string(pane), "-P", "-F", "#{pane_id}")
	if err != nil {
		return "", classify(err, pane)
	}
	return paneIDFrom(out, "split-window")
}

func (c *Client) ClosePane(ctx context.Context, pane host.PaneID) error {
	return classify(c.exec(ctx, "kill-pane", "-t", string(pane)), pane)
}

func (c *Client) SetLabel(ctx context.Context, pane host.PaneID, label string) error {
	args := []string{"set-option", "-p", "-t", string(pane), identity.PaneLabelOption, label}
	if label == "" {
		args = []string{"set-option", "-p", "-u", "-t", string(pane), identity.PaneLabelOption}
	}
	return classify(c.exec(ctx, args...), pane)
}

// Spawn waits until the pane runs a live process and printed something
// (usually the prompt). A pane that stays silent until the timeout counts as
// ready; a dead pane does not.
func (c *Client) Spawn(ctx context.Context, pane host.PaneID) error {
	deadline := time.Now().Add(c.shellReadyTimeout)
	for {
		out, err := c.output(ctx, "display-message", "-p", "-t", string(pane), "#{pane_pid}\t#{pane_dead}")
		if err != nil {
			return classify(err, pane)
		}
		pid, dead, _ := strings.Cut(out, "\t")
		if strings.TrimSpace(dead) == "1" {
			return fmt.Errorf("tmuxhost: pane %s process exited", pane)
		}
		if n, _ := strconv.Atoi(strings.TrimSpace(pid)); n > 0 {
			screen, err := c.output(ctx, "capture-pane", "-p", "-t", string(pane))
			if err != nil {
				return classify(err, pane)
			}
			if strings.TrimSpace(screen) != "" {
				return nil
			}
		}
		if time.Now().After(deadline) {
			slog.Debug("tmuxhost: no shell output before timeout", slog.String("pane", string(pane)))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// SendInput types data literally in chunks. A trailing host.Enter is sent as
// the Enter key.
func (c *Client) SendInput(ctx context.Context, pane host.PaneID, data []byte) error {
	text, submit := strings.CutSuffix(string(data), host.Enter)
	slog.Debug("tmuxhost: send", slog.String("pane", string(pane)), logging.PayloadAttr("payload", data))
	if text != "" {
		for _, chunk := range limits.Chunks(text) {
			if err := c.exec(ctx, "send-keys", "-t", string(pane), "-l", "--", chunk); err != nil {
				return classify(err, pane)
			}
		}
	}
	if submit {
		if err := c.exec(ctx, "send-keys", "-t", string(pane), "Enter"); err != nil {
			return classify(err, pane)
		}
	}
	return nil
}

// Focus selects the pane and its window, and switches the client when running
// inside tmux.
func (c *Client) Focus(ctx context.Context, pane host.PaneID) error {
	if err := c.exec(ctx, "select-window", "-t", string(pane)); err != nil {
		return classify(err, pane)
	}
	if err := c.exec(ctx, "select-pane", "-t", string(pane)); err != nil {
		return classify(err, pane)
	}
	if os.Getenv("TMUX") != "" {
		if err := c.exec(ctx, "switch-client", "-t", string(pane)); err != nil {
			return classify(err, pane)
		}
	}
	return nil
}

func paneIDFrom(out, command string) (host.PaneID, error) {
	id := strings.TrimSpace(out)
	if !strings.HasPrefix(id, "%") {
		return "", fmt.Errorf("tmux %s returned invalid pane id %q", command, id)
	}
	return host.PaneID(id), nil
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}
