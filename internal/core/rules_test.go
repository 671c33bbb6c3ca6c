package core

import (
	"context"
	"errors"
	"testing"

	"nestcore/internal/infra/persistence/memory"
	"nestcore/pkg/domain"
)

func nestState(t *testing.T, capacity, eggs int, inc float64) domain.AttributeTree {
	t.Helper()
	slots := domain.NewAttributeTree()
	for i := 0; i < eggs; i++ {
		item := domain.NewAttributeTree()
		item.SetString("code", eggItem)
		item.SetInt("size", 1)
		slots.SetTree(string(rune('0'+i)), item)
	}
	inv := domain.NewAttributeTree()
	inv.SetInt("qslots", capacity)
	inv.SetTree("slots", slots)
	state := domain.NewAttributeTree()
	state.SetDouble("inc", inc)
	state.SetTree("inventory", inv)
	return state
}

func TestDefaultRulesBlockInvalidState(t *testing.T) {
	cases := []struct {
		name  string
		state domain.AttributeTree
		rule  string
	}{
		{"over capacity", nestState(t, 1, 2, 0), "nest_capacity"},
		{"no capacity", nestState(t, 0, 0, 0), "nest_capacity"},
		{"negative timer", nestState(t, 2, 1, -1), "incubation_timer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.NewStore(NewDefaultRulesEngine())
			_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
				_, err := tx.CreateNestBox(domain.NestBoxRecord{BlockCode: henbox, State: tc.state})
				return err
			})
			var violation domain.RuleViolationError
			if !errors.As(err, &violation) {
				t.Fatalf("expected rule violation, got %v", err)
			}
			if got := violation.Result.Violations[0].Rule; got != tc.rule {
				t.Fatalf("rule = %s, want %s", got, tc.rule)
			}
			if len(store.ListNestBoxes()) != 0 {
				t.Fatalf("blocked record committed")
			}
		})
	}
}

func TestDefaultRulesAllowValidState(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateNestBox(domain.NestBoxRecord{BlockCode: henbox, State: nestState(t, 2, 2, 3)}); err != nil {
			return err
		}
		_, err := tx.CreateNestBox(domain.NestBoxRecord{BlockCode: henbox, Position: domain.BlockPos{X: 1}})
		return err
	})
	if err != nil || len(res.Violations) != 0 {
		t.Fatalf("valid nests rejected: %+v %v", res, err)
	}
}

func TestDefaultRulesIgnoreUntouchedRecords(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	store.ImportState(memory.Snapshot{NestBoxes: map[string]memory.NestBoxRecord{
		"legacy": {Base: domain.Base{ID: "legacy"}, BlockCode: henbox, State: nestState(t, 1, 3, -4)},
	}})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateNestBox(domain.NestBoxRecord{BlockCode: henbox, Position: domain.BlockPos{X: 1}, State: nestState(t, 2, 1, 0)})
		return err
	})
	if err != nil {
		t.Fatalf("untouched legacy record blocked commit: %v", err)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateNestBox("legacy", func(rec *domain.NestBoxRecord) error { return nil })
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("touching the legacy record should be checked, got %v", err)
	}
}
