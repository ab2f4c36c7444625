package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// TerminalChannel prints notifications to the terminal. Used by the
// foreground run command so new filings show up as they land.
type TerminalChannel struct {
	mu      sync.Mutex
	writer  io.Writer
	enabled bool
}

// NewTerminalChannel creates a terminal channel writing to stdout.
func NewTerminalChannel() *TerminalChannel {
	return &TerminalChannel{writer: os.Stdout, enabled: true}
}

// Name returns the name of the channel.
func (t *TerminalChannel) Name() string {
	return "terminal"
}

// IsEnabled returns whether the channel is enabled.
func (t *TerminalChannel) IsEnabled() bool {
	return t.enabled
}

// Send prints the notification.
func (t *TerminalChannel) Send(_ context.Context, n Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.writer, "\n🔔 %s\n%s\n", n.Title, n.Message)
	return err
}
