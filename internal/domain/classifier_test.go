package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "hydra.dev/pkg/hydra/internal/model"
)

func classify(t *testing.T, opts ClassifierOptions, verdict *m.Verdict, fns ...*m.Function) m.ModuleResult {
	t.Helper()

	mod := newModule(coinID, m.SourceAvailable, []*m.StructDef{coinStruct()}, fns...)

	return NewClassifier(opts).Classify(mod, resolve(mod), verdict)
}

// coinMut is `public fun coin_mut(&mut self): &mut Coin`.
func coinMut() *m.Function {
	return fn("coin_mut", m.VisibilityPublic, self(m.MutableReference(coinTy)), m.MutableReference(coinTy), ret("self"))
}

// coinView is `public fun coin_view(&self): &Coin`.
func coinView() *m.Function {
	return fn("coin_view", m.VisibilityPublic, self(m.Reference(coinTy)), m.Reference(coinTy), ret("self"))
}

func TestClassify_DirectMutableLeak(t *testing.T) {
	result := classify(t, ClassifierOptions{MinConfidence: 0.7}, passed(coinID), valueMut())

	assert.Equal(t, m.Violated, result.Certification)
	require.Len(t, result.Violations, 1)

	violation := result.Violations[0]
	assert.Equal(t, m.HYDRA001, violation.Kind)
	assert.Equal(t, m.SeverityCritical, violation.Severity)
	assert.Equal(t, m.FunctionID{Module: coinID, Name: "value_mut"}, violation.Function)
	assert.Equal(t, m.Location{File: "coin.yaml", Line: 1}, violation.Location)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
}

func TestClassify_MutableBorrowOfVectorField(t *testing.T) {
	poolRef := m.StructRef{Module: coinID, Name: "Pool"}
	pool := &m.StructDef{
		Name: "Pool",
		Fields: []m.Field{
			{Name: "coins", Type: m.Vector(coinTy)},
			{Name: "coin", Type: coinTy},
			{Name: "sizes", Type: m.Vector(u64)},
		},
	}

	borrow := func(name, field string, elem m.TypeSignature) *m.Function {
		return fn(name, m.VisibilityPublic, self(m.MutableReference(m.Struct(coinID, "Pool", false))), m.MutableReference(elem),
			m.Instruction{Op: m.OpLoadField, Local: "self", Struct: poolRef, Field: field, Borrow: m.BorrowMutable, Dest: "r"},
			ret("r"))
	}

	mod := newModule(coinID, m.SourceAvailable, []*m.StructDef{coinStruct(), pool},
		borrow("coins_mut", "coins", m.Vector(coinTy)),
		borrow("coin_mut", "coin", coinTy),
		borrow("sizes_mut", "sizes", m.Vector(u64)),
	)

	res := resolve(mod)
	for name, want := range map[string]m.AbstractValue{"coins_mut": m.InvRef, "coin_mut": m.InvRef, "sizes_mut": m.OkRef} {
		got, ok := res.Value(m.FunctionID{Module: coinID, Name: name})
		require.True(t, ok)
		assert.Equal(t, want, got, name)
	}

	result := NewClassifier(ClassifierOptions{MinConfidence: 0.7}).Classify(mod, res, passed(coinID))

	assert.Equal(t, m.Violated, result.Certification)

	flagged := map[string]m.ViolationKind{}
	for _, v := range result.Violations {
		flagged[v.Function.Name] = v.Kind
	}

	assert.Equal(t, map[string]m.ViolationKind{"coins_mut": m.HYDRA001, "coin_mut": m.HYDRA001}, flagged)
}

func TestClassify_ImmutableGetterIsCertified(t *testing.T) {
	result := classify(t, ClassifierOptions{MinConfidence: 0.7}, passed(coinID), value())

	assert.Equal(t, m.Certified, result.Certification)
	assert.Empty(t, result.Violations)
}

func TestClassify_PrivateFunctionsAreIgnored(t *testing.T) {
	leak := valueMut()
	leak.Visibility = m.VisibilityPrivate

	result := classify(t, ClassifierOptions{}, passed(coinID), leak)

	assert.Equal(t, m.Certified, result.Certification)
	assert.Empty(t, result.Violations)
}

func TestClassify_StructuralExposure(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		result := classify(t, ClassifierOptions{}, passed(coinID), coinView())

		assert.Equal(t, m.Certified, result.Certification)
		assert.Empty(t, result.Violations)
	})

	t.Run("enabled", func(t *testing.T) {
		result := classify(t, ClassifierOptions{StructuralExposure: true}, passed(coinID), coinView())

		assert.Equal(t, m.Violated, result.Certification)
		require.Len(t, result.Violations, 1)
		assert.Equal(t, m.HYDRA003, result.Violations[0].Kind)
		assert.Equal(t, m.SeverityWarning, result.Violations[0].Severity)
	})

	t.Run("reported together with a direct leak", func(t *testing.T) {
		result := classify(t, ClassifierOptions{StructuralExposure: true}, passed(coinID), coinMut())

		assert.Equal(t, m.Violated, result.Certification)
		assert.Equal(t, []m.ViolationKind{m.HYDRA001, m.HYDRA003}, kinds(result.Violations))
	})
}

func TestClassify_LowConfidenceExposureIsReportedNotCounted(t *testing.T) {
	view := coinView()
	view.Confidence = 0.5

	result := classify(t, ClassifierOptions{StructuralExposure: true, MinConfidence: 0.7}, passed(coinID), view)

	assert.Equal(t, m.Certified, result.Certification)
	require.Len(t, result.Violations, 1)
	assert.InDelta(t, 0.5, result.Violations[0].Confidence, 1e-9)
	assert.InDelta(t, 0.5, result.Confidence, 1e-9)
}

func TestClassify_LowConfidenceLeakStillFails(t *testing.T) {
	leak := valueMut()
	leak.Confidence = 0.5

	result := classify(t, ClassifierOptions{MinConfidence: 0.7}, passed(coinID), leak)

	assert.Equal(t, m.Violated, result.Certification)
	assert.Equal(t, []m.ViolationKind{m.HYDRA001}, kinds(result.Violations))
}

func TestClassify_OracleVerdicts(t *testing.T) {
	t.Run("failed verdict merges findings", func(t *testing.T) {
		verdict := &m.Verdict{
			Module: coinID,
			Findings: []m.Finding{{
				Function: "split",
				Message:  "total supply not preserved",
				Location: m.Location{File: "coin.move", Line: 42},
			}},
		}

		result := classify(t, ClassifierOptions{}, verdict, value())

		assert.Equal(t, m.Violated, result.Certification)
		require.Len(t, result.Violations, 1)
		assert.Equal(t, m.HYDRA002, result.Violations[0].Kind)
		assert.Equal(t, "total supply not preserved", result.Violations[0].Message)
		assert.Equal(t, m.FunctionID{Module: coinID, Name: "split"}, result.Violations[0].Function)
	})

	t.Run("missing verdict is indeterminate", func(t *testing.T) {
		result := classify(t, ClassifierOptions{}, nil, valueMut())

		assert.Equal(t, m.Indeterminate, result.Certification)
		assert.Equal(t, []m.ViolationKind{m.HYDRA001}, kinds(result.Violations))
		require.Len(t, result.Diagnostics, 1)
		assert.Equal(t, m.DiagOracleUnreachable, result.Diagnostics[0].Kind)
	})
}

func TestClassify_BodylessPublicFunction(t *testing.T) {
	opaque := fn("withdraw", m.VisibilityPublic, nil, u64)
	opaque.Confidence = 0

	mod := newModule(coinID, m.BytecodeOnly, []*m.StructDef{coinStruct()}, opaque)
	result := NewClassifier(ClassifierOptions{MinConfidence: 0.7}).Classify(mod, resolve(mod), passed(coinID))

	assert.Equal(t, m.Violated, result.Certification)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, m.HYDRA001, result.Violations[0].Kind)
	assert.Zero(t, result.Violations[0].Confidence)
	assert.Zero(t, result.Confidence)
}

func TestSummarize(t *testing.T) {
	results := []m.ModuleResult{
		{Certification: m.Certified},
		{Certification: m.Certified},
		{
			Certification: m.Violated,
			Violations: []m.Violation{
				{Kind: m.HYDRA001, Severity: m.SeverityCritical, Confidence: 1},
				{Kind: m.HYDRA003, Severity: m.SeverityWarning, Confidence: 0.2},
			},
		},
		{Certification: m.Indeterminate},
	}

	summary := Summarize(results, 0.7)

	assert.Equal(t, 4, summary.TotalModules)
	assert.Equal(t, 2, summary.CertifiedModules)
	assert.Equal(t, 1, summary.ViolatedModules)
	assert.Equal(t, 1, summary.IndeterminateModules)
	assert.InDelta(t, 0.5, summary.CertificationRate, 1e-9)
	assert.Equal(t, 2, summary.TotalViolations)
	assert.Equal(t, 1, summary.CriticalViolations)
	assert.Equal(t, 1, summary.LowConfidenceViolations)

	assert.Zero(t, Summarize(nil, 0.7).CertificationRate)
}
