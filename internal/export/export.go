// Package export turns a project into documents: Markdown (the source
// format), HTML via goldmark sanitized by bluemonday and PDF via pandoc when
// it is installed. The terminal preview renders the same Markdown with
// glamour.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/treykane/cli-notation/internal/logging"
	"github.com/treykane/cli-notation/internal/score"
)

var exportLog = logging.New("export")

const (
	dirPermission  = 0o700
	filePermission = 0o600
)

// ErrPandocMissing is returned for PDF export when pandoc is not on PATH.
var ErrPandocMissing = errors.New("pdf export unavailable: install pandoc")

// Format is an export target.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// ParseFormat accepts the format names used by the CLI and HTTP API.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unknown export format %q", value)
	}
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/markdown; charset=utf-8"
	}
}

var (
	markdown  = goldmark.New(goldmark.WithExtensions(extension.Table))
	sanitizer = bluemonday.UGCPolicy()
)

// HTML converts a Markdown document to a sanitized HTML fragment. Project
// and element text is user input and is served as-is by the HTTP API.
func HTML(md []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := markdown.Convert(md, &out); err != nil {
		return nil, fmt.Errorf("convert markdown to html: %w", err)
	}
	return sanitizer.SanitizeBytes(out.Bytes()), nil
}

// Write exports p into dir and returns the written path. The file is named
// after the project.
func Write(ctx context.Context, p score.Project, dir string, format Format) (string, error) {
	if err := os.MkdirAll(dir, dirPermission); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	base := filepath.Join(dir, Slug(p.Name, p.ID))
	md := Markdown(p)

	var path string
	switch format {
	case FormatMarkdown:
		path = base + ".md"
		if err := os.WriteFile(path, md, filePermission); err != nil {
			return "", fmt.Errorf("write markdown: %w", err)
		}
	case FormatHTML:
		path = base + ".html"
		body, err := HTML(md)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(path, body, filePermission); err != nil {
			return "", fmt.Errorf("write html: %w", err)
		}
	case FormatPDF:
		path = base + ".pdf"
		if err := pandoc(ctx, md, path); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
	exportLog.Info("exported project", "project", p.ID, "format", format, "path", path)
	return path, nil
}

func pandoc(ctx context.Context, md []byte, pdfPath string) error {
	bin, err := exec.LookPath("pandoc")
	if err != nil {
		return ErrPandocMissing
	}
	cmd := exec.CommandContext(ctx, bin, "-f", "markdown", "-o", pdfPath)
	cmd.Stdin = bytes.NewReader(md)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		line := strings.TrimSpace(stderr.String())
		if line == "" {
			line = err.Error()
		}
		return fmt.Errorf("pdf export failed: %s", line)
	}
	return nil
}

// Slug makes a file name from a project name, falling back to its id.
func Slug(name, id string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = id
	}
	if slug == "" {
		slug = "project"
	}
	return slug
}
