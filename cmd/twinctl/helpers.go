package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/templui/twinboard/internal/capture"
	"github.com/templui/twinboard/internal/model"
)

// readMediaFile loads a sample from disk. The MIME type comes from mimeType
// when set, otherwise from the file extension.
func readMediaFile(kind model.MediaKind, path, mimeType string) (capture.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return capture.File{}, fmt.Errorf("read %s: %w", path, err)
	}
	if mimeType == "" {
		mimeType = model.MimeForExtension(kind, filepath.Ext(path))
	}
	if mimeType == "" {
		return capture.File{}, fmt.Errorf("cannot tell the %s format of %s (pass --mime)", kind, filepath.Base(path))
	}
	return capture.File{Name: filepath.Base(path), MimeType: mimeType, Bytes: data}, nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.1fs", s)
}

// progressPrinter writes a single updating progress line.
func progressPrinter(w io.Writer, label string) func(sent, total int64) {
	return func(sent, total int64) {
		pct := 0.0
		if total > 0 {
			pct = float64(sent) * 100 / float64(total)
		}
		fmt.Fprintf(w, "\r%s %s / %s (%.0f%%)", label, formatBytes(sent), formatBytes(total), pct)
		if sent >= total {
			fmt.Fprintln(w)
		}
	}
}

// prompter reads line answers from the command's stdin.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// wait blocks until the user presses Enter, without printing.
func (p *prompter) wait() error {
	_, err := p.in.ReadString('\n')
	if err == io.EOF {
		return nil
	}
	return err
}

func (p *prompter) confirm(question string) (bool, error) {
	answer, err := p.ask(question + " [y/N]")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
