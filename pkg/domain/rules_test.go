package domain

import (
	"context"
	"errors"
	"testing"
)

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	engine.Register(staticRule{"second"})
	if got := len(engine.Rules()); got != 2 {
		t.Fatalf("expected 2 registered rules, got %d", got)
	}
	view := nestView{records: []NestBoxRecord{{Base: Base{ID: "nest-1"}, BlockCode: "henbox"}}}
	res, err := engine.Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || res.HasBlocking() {
		t.Fatalf("expected two warnings, got %+v", res.Violations)
	}
}

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(errorRule{})
	if _, err := engine.Evaluate(context.Background(), nestView{}, nil); err == nil {
		t.Fatalf("expected evaluation error")
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(_ context.Context, view RuleView, _ []Change) (Result, error) {
	var res Result
	for _, rec := range view.ListNestBoxes() {
		res.Violations = append(res.Violations, Violation{Rule: r.name, Severity: SeverityWarn, Entity: EntityNestBox, EntityID: rec.ID})
	}
	return res, nil
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{}, errors.New("boom")
}

type nestView struct{ records []NestBoxRecord }

func (v nestView) ListNestBoxes() []NestBoxRecord { return v.records }

func (v nestView) FindNestBox(id string) (NestBoxRecord, bool) {
	for _, rec := range v.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return NestBoxRecord{}, false
}
