package export

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestFilename(t *testing.T) {
	if got := Filename(true); got != "meeting_transcript.txt" {
		t.Errorf("expected meeting filename, got %q", got)
	}
	if got := Filename(false); got != "transcript.txt" {
		t.Errorf("expected plain filename, got %q", got)
	}
}

func TestDirSaver_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path, err := DirSaver{Dir: dir}.Save("transcript.txt", "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("expected written text, got %q", data)
	}
}

func TestDirSaver_StripsDirectories(t *testing.T) {
	dir := t.TempDir()
	path, err := DirSaver{Dir: dir}.Save("../../escape.txt", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("expected file inside %s, got %s", dir, path)
	}
}

func TestDirSaver_NoDir(t *testing.T) {
	if _, err := (DirSaver{}).Save("transcript.txt", "x"); err == nil {
		t.Error("expected error without a directory")
	}
}

func TestNopClipboard(t *testing.T) {
	err := NopClipboard{}.WriteText(context.Background(), "x")
	if !errors.Is(err, ErrClipboardUnavailable) {
		t.Errorf("expected ErrClipboardUnavailable, got %v", err)
	}
}

func TestNewCommandClipboard(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
		args    int
	}{
		{"simple", "pbcopy", false, 1},
		{"with args", "xclip -selection clipboard", false, 3},
		{"quoted", `sh -c "cat > /dev/null"`, false, 3},
		{"empty", "", true, 0},
		{"unterminated quote", `sh -c "cat`, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCommandClipboard(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
			if err == nil && len(c.args) != tt.args {
				t.Errorf("expected %d args, got %v", tt.args, c.args)
			}
		})
	}
}

func TestNewClipboard_FallsBackToNop(t *testing.T) {
	if _, ok := NewClipboard("").(NopClipboard); !ok {
		t.Error("expected NopClipboard for empty command")
	}
	if _, ok := NewClipboard(`"broken`).(NopClipboard); !ok {
		t.Error("expected NopClipboard for unparsable command")
	}
	if _, ok := NewClipboard("pbcopy").(*CommandClipboard); !ok {
		t.Error("expected CommandClipboard")
	}
}

func TestCommandClipboard_WriteText(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	out := filepath.Join(t.TempDir(), "clip.txt")
	c, err := NewCommandClipboard("sh -c 'cat > " + out + "'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.WriteText(context.Background(), "copied text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "copied text" {
		t.Errorf("expected clipboard contents, got %q", data)
	}
}

func TestCommandClipboard_Failure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	c, _ := NewCommandClipboard("sh -c 'exit 3'")
	if err := c.WriteText(context.Background(), "x"); err == nil {
		t.Error("expected error from failing command")
	}
}
