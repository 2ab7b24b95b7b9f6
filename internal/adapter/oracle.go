package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	m "hydra.dev/pkg/hydra/internal/model"
)

// ErrOracleUnreachable means the program verifier's verdict for a module is
// not available.
var ErrOracleUnreachable = errors.New("invariant oracle unreachable")

// Oracle reports whether a module's closed-world local invariants hold.
type Oracle interface {
	Verify(ctx context.Context, mod *m.Module) (m.Verdict, error)
}

type verdictsDoc struct {
	Verdicts []verdictDoc `yaml:"verdicts"`
}

type verdictDoc struct {
	Module   string       `yaml:"module"`
	Passed   bool         `yaml:"passed"`
	Findings []findingDoc `yaml:"findings"`
}

type findingDoc struct {
	Function string `yaml:"function"`
	Message  string `yaml:"message"`
	File     string `yaml:"file"`
	Line     int    `yaml:"line"`
}

// fileOracle serves verdicts exported by the program verifier into a YAML
// file. The file is read once, on first use.
type fileOracle struct {
	fs   SourceFSAdapter
	path m.Path

	once     sync.Once
	verdicts map[m.ModuleID]m.Verdict
	err      error
}

// NewFileOracle constructs an Oracle backed by the verdict file at path.
func NewFileOracle(fs SourceFSAdapter, path m.Path) Oracle {
	return &fileOracle{fs: fs, path: path}
}

func (o *fileOracle) Verify(ctx context.Context, mod *m.Module) (m.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return m.Verdict{}, err
	}

	o.once.Do(o.load)

	if o.err != nil {
		return m.Verdict{}, o.err
	}

	verdict, ok := o.verdicts[mod.ID]
	if !ok {
		return m.Verdict{}, fmt.Errorf("%w: no verdict for %s in %s", ErrOracleUnreachable, mod.ID, o.path)
	}

	return verdict, nil
}

func (o *fileOracle) load() {
	data, err := o.fs.ReadFile(o.path)
	if err != nil {
		o.err = fmt.Errorf("%w: read %s: %w", ErrOracleUnreachable, o.path, err)
		return
	}

	var doc verdictsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		o.err = fmt.Errorf("%w: decode %s: %w", ErrOracleUnreachable, o.path, err)
		return
	}

	o.verdicts = make(map[m.ModuleID]m.Verdict, len(doc.Verdicts))

	for _, vd := range doc.Verdicts {
		verdict := m.Verdict{Module: m.ModuleID(vd.Module), Passed: vd.Passed}

		for _, fd := range vd.Findings {
			verdict.Findings = append(verdict.Findings, m.Finding{
				Function: fd.Function,
				Message:  fd.Message,
				Location: m.Location{File: fd.File, Line: fd.Line},
			})
		}

		o.verdicts[verdict.Module] = verdict
	}
}
