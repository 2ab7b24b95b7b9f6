package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hydra.dev/pkg/hydra/internal/adapter"
	"hydra.dev/pkg/hydra/internal/controller"
	"hydra.dev/pkg/hydra/internal/decompile"
	m "hydra.dev/pkg/hydra/internal/model"
)

// CertifyArgs contains the arguments for certifying a batch of modules.
type CertifyArgs struct {
	Paths    []m.Path
	Reports  m.Path
	Parallel int

	MinConfidence      float64
	StructuralExposure bool

	// Decompile enables decompile-then-analyze for bytecode-only modules.
	Decompile bool
	// Selective restricts decompilation to modules reachable from
	// uncertain functions.
	Selective bool

	Diagnostics bool
}

// ListArgs contains the arguments for listing the modules of a batch.
type ListArgs struct {
	Paths []m.Path
}

// ViewArgs contains the arguments for showing a saved report.
type ViewArgs struct {
	Reports m.Path
	// RunID selects a report; empty means the most recent one.
	RunID string
}

// Workflow defines the certification workflow.
type Workflow interface {
	Certify(ctx context.Context, args CertifyArgs) (m.BatchResult, error)
	List(ctx context.Context, args ListArgs) error
	View(ctx context.Context, args ViewArgs) (m.BatchResult, error)
}

type workflow struct {
	adapter.ManifestLoader
	adapter.Oracle
	adapter.ReportStore
	controller.UI
	SourceSelector

	guard decompile.Guard
	now   func() time.Time
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
// A nil guard disables decompilation regardless of CertifyArgs.
func NewWorkflow(
	loader adapter.ManifestLoader,
	oracle adapter.Oracle,
	reportStore adapter.ReportStore,
	ui controller.UI,
	selector SourceSelector,
	guard decompile.Guard,
) Workflow {
	return &workflow{
		ManifestLoader: loader,
		Oracle:         oracle,
		ReportStore:    reportStore,
		UI:             ui,
		SourceSelector: selector,
		guard:          guard,
		now:            time.Now,
	}
}

// run is the mutable state of one Certify call.
type run struct {
	id       string
	parallel int

	modules map[m.ModuleID]*m.Module
	order   []m.ModuleID
	paths   map[m.ModuleID]m.AnalysisPath

	verdicts map[m.ModuleID]*m.Verdict

	// attempted holds every fingerprint requested in this run; failed
	// fingerprints stay on the provisional result until the run ends.
	attempted   map[string]error
	noBytecode  map[m.ModuleID]bool
	diagnostics map[m.ModuleID][]m.Diagnostic
	calls       int
	spentUSD    float64
}

func (r *run) moduleList() []*m.Module {
	out := make([]*m.Module, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.modules[id])
	}

	return out
}

func (w *workflow) Certify(ctx context.Context, args CertifyArgs) (m.BatchResult, error) {
	r := &run{
		id:          uuid.NewString(),
		parallel:    max(args.Parallel, 1),
		modules:     map[m.ModuleID]*m.Module{},
		paths:       map[m.ModuleID]m.AnalysisPath{},
		verdicts:    map[m.ModuleID]*m.Verdict{},
		attempted:   map[string]error{},
		noBytecode:  map[m.ModuleID]bool{},
		diagnostics: map[m.ModuleID][]m.Diagnostic{},
	}
	logger := slog.With("run", r.id)

	var startOptions []controller.StartOption
	if args.Diagnostics {
		startOptions = append(startOptions, controller.WithDiagnostics())
	}

	if err := w.Start(ctx, startOptions...); err != nil {
		logger.Error("Failed to start UI", "error", err)
		return m.BatchResult{}, fmt.Errorf("start ui: %w", err)
	}
	defer w.Close(ctx)

	loaded, err := w.Load(ctx, args.Paths)
	if err != nil {
		logger.Error("Failed to load modules", "error", err)
		return m.BatchResult{}, fmt.Errorf("load modules: %w", err)
	}

	w.DisplayRunInfo(ctx, r.id, len(loaded), r.parallel)
	logger.Info("Certifying batch", "modules", len(loaded), "parallel", r.parallel)

	for _, mod := range loaded {
		prepared, path := w.Prepare(mod)
		r.modules[prepared.ID] = prepared
		r.paths[prepared.ID] = path
		r.order = append(r.order, prepared.ID)
	}

	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })

	if err := w.collectVerdicts(ctx, r); err != nil {
		return m.BatchResult{}, fmt.Errorf("collect verdicts: %w", err)
	}

	if args.Decompile && w.guard != nil {
		if err := w.decompileUncertain(ctx, r, args.Selective); err != nil {
			return m.BatchResult{}, fmt.Errorf("decompile: %w", err)
		}
	}

	results, err := w.classify(ctx, r, ClassifierOptions{
		StructuralExposure: args.StructuralExposure,
		MinConfidence:      args.MinConfidence,
	})
	if err != nil {
		return m.BatchResult{}, fmt.Errorf("classify: %w", err)
	}

	summary := Summarize(results, args.MinConfidence)
	summary.DecompilerCalls = r.calls
	summary.SpentUSD = r.spentUSD

	batch := m.BatchResult{
		RunID:      r.id,
		FinishedAt: w.now(),
		Modules:    results,
		Summary:    summary,
	}

	for _, result := range results {
		w.DisplayModuleResult(ctx, result)
	}

	if err := w.DisplayBatchResult(ctx, batch); err != nil {
		logger.Error("Failed to display result", "error", err)
		return batch, fmt.Errorf("display: %w", err)
	}

	if args.Reports != "" {
		path, err := w.SaveReport(args.Reports, batch)
		if err != nil {
			logger.Error("Failed to save report", "error", err)
			return batch, fmt.Errorf("save report: %w", err)
		}

		logger.Info("Report saved", "path", path)
	}

	logger.Info("Batch certified",
		"certified", summary.CertifiedModules,
		"violated", summary.ViolatedModules,
		"indeterminate", summary.IndeterminateModules,
		"decompilerCalls", summary.DecompilerCalls,
	)

	return batch, nil
}

func (w *workflow) List(ctx context.Context, args ListArgs) error {
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start ui: %w", err)
	}
	defer w.Close(ctx)

	modules, err := w.Load(ctx, args.Paths)
	if err != nil {
		slog.Error("Failed to load modules", "error", err)
		return fmt.Errorf("load modules: %w", err)
	}

	sort.Slice(modules, func(i, j int) bool { return modules[i].ID < modules[j].ID })

	if err := w.DisplayModules(ctx, modules); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	return nil
}

func (w *workflow) View(ctx context.Context, args ViewArgs) (m.BatchResult, error) {
	if err := w.Start(ctx, controller.WithDiagnostics()); err != nil {
		return m.BatchResult{}, fmt.Errorf("start ui: %w", err)
	}
	defer w.Close(ctx)

	path := m.Path(filepath.Join(string(args.Reports), args.RunID+".yaml"))

	if args.RunID == "" {
		latest, err := w.LatestReport(args.Reports)
		if err != nil {
			return m.BatchResult{}, fmt.Errorf("find report: %w", err)
		}

		path = latest
	}

	result, err := w.LoadReport(path)
	if err != nil {
		return m.BatchResult{}, fmt.Errorf("load report: %w", err)
	}

	if err := w.DisplayBatchResult(ctx, result); err != nil {
		return result, fmt.Errorf("display: %w", err)
	}

	return result, nil
}

// collectVerdicts asks the oracle about every module. A module whose verdict
// cannot be obtained keeps a nil verdict and ends up Indeterminate.
func (w *workflow) collectVerdicts(ctx context.Context, r *run) error {
	var (
		mu    sync.Mutex
		group errgroup.Group
	)

	group.SetLimit(r.parallel)

	for _, mod := range r.moduleList() {
		group.Go(func() error {
			verdict, err := w.Verify(ctx, mod)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}

				slog.Warn("Oracle verdict unavailable", "run", r.id, "module", mod.ID, "error", err)

				return nil
			}

			mu.Lock()
			r.verdicts[mod.ID] = &verdict
			mu.Unlock()

			return nil
		})
	}

	return group.Wait()
}

// decompileUncertain repeats select-decompile-install until no new bytecode
// is worth requesting. Installed bodies may call into other bytecode-only
// modules, which only become targets on the next round.
func (w *workflow) decompileUncertain(ctx context.Context, r *run, selective bool) error {
	for round := 0; round <= len(r.order); round++ {
		prog := NewProgram(r.moduleList())
		conservative := Resolve(prog, ConservativeFixpoint())
		optimistic := Resolve(prog, OptimisticFixpoint())

		uncertain := w.Uncertain(conservative, optimistic)
		targets := w.DecompileTargets(conservative, uncertain, selective)

		batches := r.pendingFingerprints(targets)
		if len(batches) == 0 {
			return nil
		}

		slog.Debug("Decompiling",
			"run", r.id,
			"round", round,
			"uncertain", len(uncertain),
			"targets", len(targets),
			"fingerprints", len(batches),
		)

		if err := w.decompileBatches(ctx, r, batches); err != nil {
			return err
		}
	}

	return nil
}

// fingerprintBatch is every target module sharing one bytecode blob.
type fingerprintBatch struct {
	fingerprint string
	bytecode    []byte
	modules     []m.ModuleID
}

func (r *run) pendingFingerprints(targets []m.ModuleID) []fingerprintBatch {
	var batches []fingerprintBatch

	index := map[string]int{}

	for _, id := range targets {
		mod := r.modules[id]

		if len(mod.Bytecode) == 0 {
			if !r.noBytecode[id] {
				r.noBytecode[id] = true
				r.diagnose(id, m.DiagDecompileUnavailable, "no bytecode to decompile")
			}

			continue
		}

		fp := decompile.Fingerprint(mod.Bytecode)
		if _, seen := r.attempted[fp]; seen {
			continue
		}

		pos, ok := index[fp]
		if !ok {
			pos = len(batches)
			index[fp] = pos
			batches = append(batches, fingerprintBatch{fingerprint: fp, bytecode: mod.Bytecode})
		}

		batches[pos].modules = append(batches[pos].modules, id)
	}

	return batches
}

func (w *workflow) decompileBatches(ctx context.Context, r *run, batches []fingerprintBatch) error {
	var (
		mu    sync.Mutex
		group errgroup.Group
	)

	group.SetLimit(r.parallel)

	for _, batch := range batches {
		group.Go(func() error {
			outcome, err := w.guard.Decompile(ctx, batch.bytecode)

			mu.Lock()
			defer mu.Unlock()

			r.calls += outcome.Invocations
			r.spentUSD += outcome.CostUSD
			r.attempted[batch.fingerprint] = err

			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}

				kind := decompileDiagnostic(err)
				slog.Warn("Decompilation failed, keeping provisional result",
					"run", r.id,
					"fingerprint", batch.fingerprint,
					"modules", batch.modules,
					"kind", kind,
					"error", err,
				)

				for _, id := range batch.modules {
					r.diagnose(id, kind, err.Error())
				}

				return nil
			}

			for _, id := range batch.modules {
				r.modules[id] = w.Install(r.modules[id], outcome.Entry.Decompilation)
				r.paths[id] = m.PathDecompiled
			}

			return nil
		})
	}

	return group.Wait()
}

func decompileDiagnostic(err error) m.DiagnosticKind {
	switch {
	case errors.Is(err, decompile.ErrDecompileBudgetExhausted):
		return m.DiagDecompileBudgetExhausted
	case errors.Is(err, decompile.ErrDecompileTimeout):
		return m.DiagDecompileTimeout
	}

	return m.DiagDecompileUnavailable
}

func (r *run) diagnose(id m.ModuleID, kind m.DiagnosticKind, message string) {
	r.diagnostics[id] = append(r.diagnostics[id], m.Diagnostic{Kind: kind, Module: id, Message: message})
}

// classify runs the final fixpoint over every available body and classifies
// each module against it.
func (w *workflow) classify(ctx context.Context, r *run, opts ClassifierOptions) ([]m.ModuleResult, error) {
	prog := NewProgram(r.moduleList())
	res := Resolve(prog, ConservativeFixpoint())
	classifier := NewClassifier(opts)

	fixpointDiagnostics := map[m.ModuleID][]m.Diagnostic{}
	for _, d := range res.Diagnostics {
		fixpointDiagnostics[d.Module] = append(fixpointDiagnostics[d.Module], d)
	}

	results := make([]m.ModuleResult, len(r.order))

	var group errgroup.Group

	group.SetLimit(r.parallel)

	for i, id := range r.order {
		mod := r.modules[id]

		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			result := classifier.Classify(mod, res, r.verdicts[id])
			result.Path = r.paths[id]

			var diagnostics []m.Diagnostic

			diagnostics = append(diagnostics, fixpointDiagnostics[id]...)
			diagnostics = append(diagnostics, missingBodies(mod)...)
			diagnostics = append(diagnostics, r.diagnostics[id]...)
			result.Diagnostics = append(diagnostics, result.Diagnostics...)

			results[i] = result

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	confidences := res.Confidences()

	for i, id := range r.order {
		mod := r.modules[id]
		mod.Certification = results[i].Certification

		for _, fn := range mod.Functions {
			if idx, ok := prog.Lookup(fn.ID()); ok {
				fn.ResolvedValue = res.Values[idx]
				fn.Confidence = confidences[idx]
			}
		}
	}

	return results, nil
}

func missingBodies(mod *m.Module) []m.Diagnostic {
	if mod.Origin != m.BytecodeOnly {
		return nil
	}

	var out []m.Diagnostic

	for _, name := range mod.FunctionNames() {
		if mod.Functions[name].HasBody() {
			continue
		}

		out = append(out, m.Diagnostic{
			Kind:     m.DiagMissingBody,
			Module:   mod.ID,
			Function: name,
			Message:  "no body available; analyzed with the conservative default",
		})
	}

	return out
}
