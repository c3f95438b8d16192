// Package export saves transcripts to files and the clipboard.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mattn/go-shellwords"
)

const (
	FilenameMeeting = "meeting_transcript.txt"
	FilenamePlain   = "transcript.txt"
)

// ErrClipboardUnavailable is returned when no clipboard is configured.
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// Filename returns the download name for the active representation.
func Filename(meeting bool) string {
	if meeting {
		return FilenameMeeting
	}
	return FilenamePlain
}

// FileSaver stores an exported transcript.
type FileSaver interface {
	Save(name, text string) (string, error)
}

// DirSaver writes exports into a directory, creating it on demand.
type DirSaver struct {
	Dir string
}

// Save writes text to Dir/name and returns the written path.
func (d DirSaver) Save(name, text string) (string, error) {
	if d.Dir == "" {
		return "", errors.New("export dir not configured")
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(d.Dir, filepath.Base(name))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// Clipboard writes text to a system clipboard.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// NopClipboard always fails.
type NopClipboard struct{}

func (NopClipboard) WriteText(context.Context, string) error {
	return ErrClipboardUnavailable
}

// CommandClipboard pipes text to the stdin of a command such as
// "xclip -selection clipboard" or "pbcopy".
type CommandClipboard struct {
	args []string
}

// NewCommandClipboard parses a command line. An empty line yields an error.
func NewCommandClipboard(commandLine string) (*CommandClipboard, error) {
	args, err := shellwords.Parse(commandLine)
	if err != nil {
		return nil, fmt.Errorf("parse clipboard command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrClipboardUnavailable
	}
	return &CommandClipboard{args: args}, nil
}

// NewClipboard returns a CommandClipboard for commandLine, or NopClipboard
// when commandLine is empty or unparsable.
func NewClipboard(commandLine string) Clipboard {
	if commandLine == "" {
		return NopClipboard{}
	}
	c, err := NewCommandClipboard(commandLine)
	if err != nil {
		return NopClipboard{}
	}
	return c
}

func (c *CommandClipboard) WriteText(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	cmd.Stdin = bytes.NewBufferString(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return fmt.Errorf("clipboard command %s: %w: %s", c.args[0], err, msg)
		}
		return fmt.Errorf("clipboard command %s: %w", c.args[0], err)
	}
	return nil
}
