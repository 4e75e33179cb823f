// Package export compiles markup notes to PDF with an external compiler.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/noteid"
	"github.com/starford/marginalia/internal/parser"
)

// Dir is the vault subdirectory holding exported documents.
const Dir = ".pdf"

// DefaultCommand is the compiler invocation used when none is configured.
var DefaultCommand = []string{"typst", "compile"}

// ErrNoCommand is returned when a build is requested without a compiler
// command configured.
var ErrNoCommand = errors.New("export: no compiler command configured")

// Builder runs the compiler for markup notes.
type Builder struct {
	vault   string
	enabled bool
	command []string
	logger  *slog.Logger
}

// NewBuilder creates a builder writing into <vault>/.pdf. command is the
// compiler invocation; the note path and target path are appended to it.
func NewBuilder(vault string, enabled bool, command []string, logger *slog.Logger) *Builder {
	return &Builder{
		vault:   vault,
		enabled: enabled,
		command: command,
		logger:  logger,
	}
}

// Enabled reports whether documents are kept up to date automatically.
func (b *Builder) Enabled() bool { return b.enabled }

// PathFor returns where the document of the note called name is written.
// The file does not need to exist.
func (b *Builder) PathFor(name string) string {
	return filepath.Join(b.vault, Dir, noteid.Canonicalize(name)+".pdf")
}

// Build compiles note and returns the document path. Without force it does
// nothing (and returns "") unless the builder is enabled. Notes that are not
// markup fail with apperr.ErrUnhandledFiletype.
func (b *Builder) Build(ctx context.Context, note *models.Note, force bool) (string, error) {
	if !b.enabled && !force {
		return "", nil
	}
	if ext := strings.TrimPrefix(filepath.Ext(note.Path), "."); ext != parser.MarkupExtension {
		return "", fmt.Errorf("export %s: %w", note.Path, apperr.ErrUnhandledFiletype)
	}
	if len(b.command) == 0 {
		return "", ErrNoCommand
	}

	target := b.PathFor(note.Name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("export: mkdir: %w", err)
	}

	args := append(append([]string(nil), b.command[1:]...), note.Path, target)
	cmd := exec.CommandContext(ctx, b.command[0], args...)
	cmd.Dir = b.vault
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("export: %s: %w: %s", b.command[0], err, strings.TrimSpace(string(out)))
	}

	b.logger.Debug("export: built", slog.String("note", note.Path), slog.String("target", target))
	return target, nil
}
