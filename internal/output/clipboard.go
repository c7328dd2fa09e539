// Package output exports the assembled transcript to the clipboard.
package output

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"

	"github.com/rbright/livescribe/internal/config"
)

const commandTimeout = 2 * time.Second

// ErrClipboardUnavailable is returned when no clipboard tool exists and no clipboard_cmd is set.
var ErrClipboardUnavailable = errors.New("no clipboard utility found (install wl-clipboard, xclip or xsel, or set clipboard_cmd)")

// Committer writes transcript text to the clipboard.
//
// A configured clipboard command wins over the system clipboard.
type Committer struct {
	argv   []string
	write  func(string) error
	logger zerolog.Logger
}

// NewCommitter constructs a clipboard committer from the clipboard_cmd config.
func NewCommitter(cmd config.CommandConfig, logger zerolog.Logger) *Committer {
	return &Committer{
		argv:   cmd.Argv,
		write:  writeSystemClipboard,
		logger: logger.With().Str("component", "output").Logger(),
	}
}

// Backend names the clipboard sink in use.
func (c *Committer) Backend() string {
	if len(c.argv) > 0 {
		return c.argv[0]
	}
	return "system"
}

// Commit writes transcript to the clipboard. Empty text is a no-op.
func (c *Committer) Commit(ctx context.Context, transcript string) error {
	if transcript == "" {
		return nil
	}

	if len(c.argv) > 0 {
		cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()
		if err := runCommandWithInput(cmdCtx, c.argv, transcript); err != nil {
			return fmt.Errorf("set clipboard: %w", err)
		}
	} else if err := c.write(transcript); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}

	c.logger.Debug().Str("backend", c.Backend()).Int("bytes", len(transcript)).Msg("transcript copied")
	return nil
}

func writeSystemClipboard(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnavailable
	}
	return clipboard.WriteAll(text)
}

// Available reports whether the system clipboard has a usable backend.
func Available() bool {
	return !clipboard.Unsupported
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
