package core

import (
	"context"
	"fmt"

	"nestcore/internal/nest"
	"nestcore/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in nest policies.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewNestCapacityRule())
	engine.Register(NewIncubationTimerRule())
	return engine
}

// changedNests returns the committed form of every nest the transaction
// created or updated. Records the transaction did not touch are never
// evaluated, so one bad stored record cannot block unrelated saves.
func changedNests(view domain.RuleView, changes []domain.Change) []domain.NestBoxRecord {
	seen := make(map[string]bool)
	var out []domain.NestBoxRecord
	for _, ch := range changes {
		if ch.Entity != domain.EntityNestBox || ch.Action == domain.ActionDelete {
			continue
		}
		after, ok := ch.After.(domain.NestBoxRecord)
		if !ok || seen[after.ID] {
			continue
		}
		seen[after.ID] = true
		if rec, ok := view.FindNestBox(after.ID); ok {
			out = append(out, rec)
		}
	}
	return out
}

// NewNestCapacityRule blocks commits that store more eggs than a nest has slots.
func NewNestCapacityRule() domain.Rule { return nestCapacityRule{} }

type nestCapacityRule struct{}

func (nestCapacityRule) Name() string { return "nest_capacity" }

func (r nestCapacityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, rec := range changedNests(view, changes) {
		if len(rec.State) == 0 {
			continue
		}
		stats := nest.InspectState(rec.State)
		if stats.Capacity <= 0 {
			res.Violations = append(res.Violations, violation(r.Name(), rec,
				fmt.Sprintf("nest %s at %s has no usable capacity", rec.ID, rec.Position)))
			continue
		}
		if stats.Occupied > stats.Capacity {
			res.Violations = append(res.Violations, violation(r.Name(), rec,
				fmt.Sprintf("nest %s at %s over capacity: %d/%d eggs", rec.ID, rec.Position, stats.Occupied, stats.Capacity)))
		}
	}
	return res, nil
}

// NewIncubationTimerRule blocks commits with a negative incubation countdown.
func NewIncubationTimerRule() domain.Rule { return incubationTimerRule{} }

type incubationTimerRule struct{}

func (incubationTimerRule) Name() string { return "incubation_timer" }

func (r incubationTimerRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, rec := range changedNests(view, changes) {
		if inc := nest.InspectState(rec.State).TimeToIncubate; inc < 0 {
			res.Violations = append(res.Violations, violation(r.Name(), rec,
				fmt.Sprintf("nest %s has negative incubation time %.3f", rec.ID, inc)))
		}
	}
	return res, nil
}

func violation(rule string, rec domain.NestBoxRecord, msg string) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityNestBox,
		EntityID: rec.ID,
	}
}
