package domain

import (
	"encoding/json"
	"testing"
)

func TestAttributeTreeTypedAccessors(t *testing.T) {
	tree := NewAttributeTree()
	tree.SetDouble("inc", 4.25)
	tree.SetInt("gen0", 3)
	tree.SetString("chick0", "game:chicken-baby")
	tree.SetBool("isOccupied", true)

	if got := tree.GetDouble("inc"); got != 4.25 {
		t.Fatalf("expected inc 4.25, got %v", got)
	}
	if got := tree.GetInt("gen0"); got != 3 {
		t.Fatalf("expected gen0 3, got %d", got)
	}
	if got, ok := tree.GetString("chick0"); !ok || got != "game:chicken-baby" {
		t.Fatalf("unexpected chick0 %q (%v)", got, ok)
	}
	if _, ok := tree.GetString("chick1"); ok {
		t.Fatalf("expected chick1 to be absent")
	}
	if !tree.GetBool("isOccupied") {
		t.Fatalf("expected isOccupied true")
	}
	if tree.GetInt("missing") != 0 || tree.GetDouble("missing") != 0 || tree.GetBool("missing") {
		t.Fatalf("missing keys must read as zero values")
	}
	// cross-kind reads
	if tree.GetDouble("gen0") != 3 {
		t.Fatalf("int should widen to double")
	}
	if tree.GetInt("inc") != 4 {
		t.Fatalf("double should truncate to int")
	}
}

func TestAttributeTreeJSONKeepsKinds(t *testing.T) {
	inner := NewAttributeTree()
	inner.SetInt("qslots", 3)
	tree := NewAttributeTree()
	tree.SetDouble("occ", 12)
	tree.SetInt("gen0", 0)
	tree.SetTree("inventory", inner)

	raw, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded AttributeTree
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["occ"].Kind != KindDouble {
		t.Fatalf("expected occ to stay a double, got %s", decoded["occ"].Kind)
	}
	if decoded["gen0"].Kind != KindInt {
		t.Fatalf("expected gen0 to stay an int, got %s", decoded["gen0"].Kind)
	}
	inv, ok := decoded.GetTree("inventory")
	if !ok || inv.GetInt("qslots") != 3 {
		t.Fatalf("inventory subtree lost: %+v", decoded)
	}
}

func TestAttributeUnmarshalRejectsUnknownKind(t *testing.T) {
	var a Attribute
	if err := json.Unmarshal([]byte(`{"vec":[1,2]}`), &a); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if err := json.Unmarshal([]byte(`{"int":1,"bool":true}`), &a); err == nil {
		t.Fatalf("expected error for multiple kinds")
	}
}

func TestAttributeTreeCloneIsDeep(t *testing.T) {
	inner := NewAttributeTree()
	inner.SetInt("qslots", 1)
	tree := NewAttributeTree()
	tree.SetTree("inventory", inner)

	cp := tree.Clone()
	inner.SetInt("qslots", 9)
	got, _ := cp.GetTree("inventory")
	if got.GetInt("qslots") != 1 {
		t.Fatalf("clone shares nested tree")
	}
}
