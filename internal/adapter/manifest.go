package adapter

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	m "hydra.dev/pkg/hydra/internal/model"
)

// ErrInvalidManifest marks a manifest that cannot describe a batch.
var ErrInvalidManifest = errors.New("invalid manifest")

// ManifestLoader reads the modules of a certification batch.
type ManifestLoader interface {
	Load(ctx context.Context, paths []m.Path) ([]*m.Module, error)
}

type manifestLoader struct {
	fs SourceFSAdapter
}

// NewManifestLoader constructs a ManifestLoader reading YAML manifests
// through fs.
func NewManifestLoader(fs SourceFSAdapter) ManifestLoader {
	return &manifestLoader{fs: fs}
}

type manifestDoc struct {
	Modules []moduleDoc `yaml:"modules"`
}

type moduleDoc struct {
	ID           string        `yaml:"id"`
	Origin       string        `yaml:"origin"`
	Bytecode     string        `yaml:"bytecode"`
	Dependencies []string      `yaml:"dependencies"`
	Structs      []structDoc   `yaml:"structs"`
	Functions    []functionDoc `yaml:"functions"`
}

type structDoc struct {
	Name     string     `yaml:"name"`
	Internal bool       `yaml:"internal"`
	Fields   []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type functionDoc struct {
	Name       string            `yaml:"name"`
	Visibility string            `yaml:"visibility"`
	Params     []fieldDoc        `yaml:"params"`
	Returns    string            `yaml:"returns"`
	Location   locationDoc       `yaml:"location"`
	Confidence float64           `yaml:"confidence"`
	Body       *[]instructionDoc `yaml:"body"`
}

type locationDoc struct {
	File   string `yaml:"file"`
	Line   int    `yaml:"line"`
	Offset int    `yaml:"offset"`
}

type instructionDoc struct {
	Op     string             `yaml:"op"`
	Dest   string             `yaml:"dest"`
	Local  string             `yaml:"local"`
	Struct string             `yaml:"struct"`
	Field  string             `yaml:"field"`
	Borrow string             `yaml:"borrow"`
	Callee string             `yaml:"callee"`
	Args   []string           `yaml:"args"`
	Arms   [][]instructionDoc `yaml:"arms"`
	Line   int                `yaml:"line"`
}

// Load expands every path pattern and decodes the manifests found. YAML files
// without a modules list (such as hydra.yaml) are skipped. Module IDs must be
// unique across the batch.
func (l *manifestLoader) Load(ctx context.Context, paths []m.Path) ([]*m.Module, error) {
	var modules []*m.Module

	seen := map[m.ModuleID]m.Path{}

	for _, pattern := range paths {
		files, err := ExpandPath(l.fs, pattern)
		if err != nil {
			return nil, err
		}

		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			loaded, err := l.loadFile(file)
			if err != nil {
				return nil, err
			}

			for _, mod := range loaded {
				if prev, dup := seen[mod.ID]; dup {
					return nil, fmt.Errorf("%w: module %s declared in %s and %s", ErrInvalidManifest, mod.ID, prev, file)
				}

				seen[mod.ID] = file
				modules = append(modules, mod)
			}
		}
	}

	return modules, nil
}

func (l *manifestLoader) loadFile(file m.Path) ([]*m.Module, error) {
	data, err := l.fs.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", file, err)
	}

	var doc manifestDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, file, err)
	}

	if len(doc.Modules) == 0 {
		slog.Debug("Skipping YAML file without modules", "file", file)
		return nil, nil
	}

	if hash, err := l.fs.HashFile(file); err == nil {
		slog.Debug("Loaded manifest", "file", file, "modules", len(doc.Modules), "sha256", hash)
	}

	modules := make([]*m.Module, 0, len(doc.Modules))

	for _, md := range doc.Modules {
		mod, err := convertModule(md, file)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, file, err)
		}

		modules = append(modules, mod)
	}

	return modules, nil
}

func convertModule(md moduleDoc, file m.Path) (*m.Module, error) {
	id := m.ModuleID(strings.TrimSpace(md.ID))
	if id == "" {
		return nil, errors.New("module without id")
	}

	origin, err := parseOrigin(md.Origin)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", id, err)
	}

	mod := &m.Module{
		ID:            id,
		Origin:        origin,
		Functions:     make(map[string]*m.Function, len(md.Functions)),
		Structs:       make(map[string]*m.StructDef, len(md.Structs)),
		Certification: m.Pending,
	}

	if md.Bytecode != "" {
		mod.Bytecode, err = hex.DecodeString(strings.TrimPrefix(md.Bytecode, "0x"))
		if err != nil {
			return nil, fmt.Errorf("module %s: bytecode: %w", id, err)
		}
	}

	if origin == m.BytecodeOnly && len(mod.Bytecode) == 0 {
		return nil, fmt.Errorf("module %s: bytecode-only module without bytecode", id)
	}

	for _, dep := range md.Dependencies {
		mod.Dependencies = append(mod.Dependencies, m.ModuleID(dep))
	}

	internal := map[string]bool{}
	for _, sd := range md.Structs {
		internal[sd.Name] = sd.Internal
	}

	types := typeResolver{self: id, internal: internal}

	for _, sd := range md.Structs {
		def := &m.StructDef{Module: id, Name: sd.Name, Internal: sd.Internal}

		for _, fd := range sd.Fields {
			def.Fields = append(def.Fields, m.Field{Name: fd.Name, Type: types.parse(fd.Type, sd.Name+"."+fd.Name)})
		}

		if _, dup := mod.Structs[sd.Name]; dup {
			return nil, fmt.Errorf("module %s: duplicate struct %s", id, sd.Name)
		}

		mod.Structs[sd.Name] = def
	}

	for _, fd := range md.Functions {
		fn, err := convertFunction(fd, types, file)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", id, err)
		}

		if _, dup := mod.Functions[fn.Name]; dup {
			return nil, fmt.Errorf("module %s: duplicate function %s", id, fn.Name)
		}

		mod.Functions[fn.Name] = fn
	}

	return mod, nil
}

func convertFunction(fd functionDoc, types typeResolver, file m.Path) (*m.Function, error) {
	if fd.Name == "" {
		return nil, errors.New("function without name")
	}

	visibility, err := parseVisibility(fd.Visibility)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", fd.Name, err)
	}

	fn := &m.Function{
		Module:         types.self,
		Name:           fd.Name,
		Visibility:     visibility,
		DeclaredReturn: m.Unit(),
		Location:       m.Location{File: fd.Location.File, Line: fd.Location.Line, Offset: fd.Location.Offset},
		Confidence:     clampConfidence(fd.Confidence),
	}

	if fn.Location.File == "" {
		fn.Location.File = string(file)
	}

	if strings.TrimSpace(fd.Returns) != "" {
		fn.DeclaredReturn = types.parse(fd.Returns, fd.Name+" return")
	}

	for _, pd := range fd.Params {
		fn.Parameters = append(fn.Parameters, m.Parameter{Binding: pd.Name, Type: types.parse(pd.Type, fd.Name+"."+pd.Name)})
	}

	if fd.Body != nil {
		instrs, err := convertInstructions(*fd.Body, types.self)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", fd.Name, err)
		}

		fn.Body = &m.Body{Instructions: instrs}
	}

	return fn, nil
}

// convertInstructions decodes an abstract body. self qualifies callees and
// structs written without a module; an empty self leaves them unqualified.
func convertInstructions(docs []instructionDoc, self m.ModuleID) ([]m.Instruction, error) {
	out := make([]m.Instruction, 0, len(docs))

	for i, doc := range docs {
		instr := m.Instruction{
			Op:       m.OpKind(doc.Op),
			Dest:     doc.Dest,
			Local:    doc.Local,
			Field:    doc.Field,
			Borrow:   m.Borrow(doc.Borrow),
			Args:     doc.Args,
			Location: m.Location{Line: doc.Line},
		}

		switch instr.Op {
		case m.OpCall:
			if doc.Callee == "" {
				return nil, fmt.Errorf("instruction %d: call without callee", i)
			}

			module, name := splitQualified(doc.Callee, self)
			instr.Callee = m.FunctionID{Module: module, Name: name}
		case m.OpLoadField:
			module, name := splitQualified(doc.Struct, self)
			instr.Struct = m.StructRef{Module: module, Name: name}
		case m.OpBranch:
			for j, arm := range doc.Arms {
				converted, err := convertInstructions(arm, self)
				if err != nil {
					return nil, fmt.Errorf("instruction %d arm %d: %w", i, j, err)
				}

				instr.Arms = append(instr.Arms, converted)
			}
		case m.OpLoadLocal, m.OpReturn:
		default:
			// Unknown operations are kept so the analysis degrades them to
			// InvRef with a diagnostic instead of rejecting the batch.
			slog.Warn("Unrecognized instruction", "op", doc.Op, "index", i)
		}

		out = append(out, instr)
	}

	return out, nil
}

func parseOrigin(s string) (m.Origin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(m.SourceAvailable):
		return m.SourceAvailable, nil
	case string(m.BytecodeOnly), "bytecode-only", "bytecode_only":
		return m.BytecodeOnly, nil
	}

	return "", fmt.Errorf("unknown origin %q", s)
}

func parseVisibility(s string) (m.Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(m.VisibilityPrivate):
		return m.VisibilityPrivate, nil
	case string(m.VisibilityPublic):
		return m.VisibilityPublic, nil
	case string(m.VisibilityFriend), "public(friend)":
		return m.VisibilityFriend, nil
	}

	return "", fmt.Errorf("unknown visibility %q", s)
}

// splitQualified splits "0x1::coin::Coin" into its module and name. An
// unqualified name belongs to self.
func splitQualified(s string, self m.ModuleID) (m.ModuleID, string) {
	idx := strings.LastIndex(s, "::")
	if idx < 0 {
		return self, s
	}

	return m.ModuleID(s[:idx]), s[idx+2:]
}
