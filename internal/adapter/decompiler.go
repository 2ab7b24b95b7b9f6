package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	m "hydra.dev/pkg/hydra/internal/model"
)

// ErrDecompileUnavailable means no decompiler can serve the request.
var ErrDecompileUnavailable = errors.New("decompiler unavailable")

// Decompiler turns bytecode into abstract bodies plus a confidence score.
type Decompiler interface {
	Decompile(ctx context.Context, bytecode []byte) (m.Decompilation, error)
}

type unavailableDecompiler struct{}

// NewUnavailableDecompiler returns a Decompiler that always fails with
// ErrDecompileUnavailable. It backs runs where decompilation is disabled.
func NewUnavailableDecompiler() Decompiler {
	return unavailableDecompiler{}
}

func (unavailableDecompiler) Decompile(context.Context, []byte) (m.Decompilation, error) {
	return m.Decompilation{}, ErrDecompileUnavailable
}

// CommandDecompiler runs an external executable that reads bytecode on
// stdin and writes a YAML document on stdout:
//
//	confidence: 0.85
//	functions:
//	  value:
//	    - {op: load_field, local: self, struct: Coin, field: value, borrow: imm}
//
// Callees and structs written without a module refer to the decompiled
// module itself.
type CommandDecompiler struct {
	command string
	args    []string
}

// NewCommandDecompiler constructs a CommandDecompiler. An empty command
// yields the unavailable decompiler.
func NewCommandDecompiler(command string, args ...string) Decompiler {
	if strings.TrimSpace(command) == "" {
		return NewUnavailableDecompiler()
	}

	return &CommandDecompiler{command: command, args: args}
}

// Decompile runs the command under ctx.
func (d *CommandDecompiler) Decompile(ctx context.Context, bytecode []byte) (m.Decompilation, error) {
	cmd := exec.CommandContext(ctx, d.command, d.args...)
	cmd.Stdin = bytes.NewReader(bytecode)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return m.Decompilation{}, ctxErr
		}

		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return m.Decompilation{}, fmt.Errorf("%w: %w", ErrDecompileUnavailable, err)
		}

		return m.Decompilation{}, fmt.Errorf("run decompiler: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return ParseDecompilation(stdout.Bytes())
}

type decompilationDoc struct {
	Confidence float64                     `yaml:"confidence"`
	Functions  map[string][]instructionDoc `yaml:"functions"`
}

// ParseDecompilation decodes decompiler output. Confidence is clamped to [0, 1].
func ParseDecompilation(data []byte) (m.Decompilation, error) {
	var doc decompilationDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return m.Decompilation{}, fmt.Errorf("decode decompiler output: %w", err)
	}

	out := m.Decompilation{
		Functions:  make(map[string]m.Body, len(doc.Functions)),
		Confidence: clampConfidence(doc.Confidence),
	}

	for name, instrs := range doc.Functions {
		body, err := convertInstructions(instrs, "")
		if err != nil {
			return m.Decompilation{}, fmt.Errorf("function %s: %w", name, err)
		}

		out.Functions[name] = m.Body{Instructions: body}
	}

	return out, nil
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}

	return c
}
