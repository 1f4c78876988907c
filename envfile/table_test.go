package envfile

import (
	"testing"

	"github.com/jongio/kvenv/secretname"
)

func TestTable_SetGetLen(t *testing.T) {
	tbl := NewTable(secretname.AsWritten)
	tbl.Set("A", "1")
	tbl.Set("B", "2")
	tbl.Set("A", "3")

	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}
	if v, ok := tbl.Get("A"); !ok || v != "3" {
		t.Errorf("Get(A) = %q, %v", v, ok)
	}
	if _, ok := tbl.Get("missing"); ok {
		t.Error("Get(missing) reported present")
	}
}

func TestTable_ZeroValueIsUsable(t *testing.T) {
	var tbl Table
	tbl.Set("A", "1")
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}
}

func TestTable_ClearKeepsForm(t *testing.T) {
	tbl := NewTable(secretname.StoreForm)
	tbl.Set("a-b", "1")
	tbl.Clear()

	if tbl.Len() != 0 {
		t.Errorf("Len() after Clear = %d", tbl.Len())
	}
	if tbl.Form() != secretname.StoreForm {
		t.Errorf("Form() = %v, want store", tbl.Form())
	}
	tbl.Set("c", "2")
	if tbl.Len() != 1 {
		t.Errorf("Len() after re-populate = %d", tbl.Len())
	}
}

func TestTable_CloneIsIndependent(t *testing.T) {
	tbl := NewTable(secretname.AsWritten)
	tbl.Set("A", "1")

	c := tbl.Clone()
	c.Set("A", "changed")
	c.Set("B", "2")

	if v, _ := tbl.Get("A"); v != "1" {
		t.Errorf("original mutated: A=%q", v)
	}
	if tbl.Len() != 1 {
		t.Errorf("original Len() = %d", tbl.Len())
	}
}

func TestTable_KeysReturnsCopy(t *testing.T) {
	tbl := NewTable(secretname.AsWritten)
	tbl.Set("A", "1")

	keys := tbl.Keys()
	keys[0] = "Z"

	if tbl.Keys()[0] != "A" {
		t.Error("Keys() exposed internal slice")
	}
}
