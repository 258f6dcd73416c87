package commands

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAllIsSortedAndClosed(t *testing.T) {
	all := All()
	if len(all) != 31 {
		t.Errorf("vocabulary size = %d, want 31", len(all))
	}
	if !sort.SliceIsSorted(all, func(i, j int) bool { return all[i] < all[j] }) {
		t.Errorf("All() not sorted: %v", all)
	}
	seen := make(map[Name]bool)
	for _, n := range all {
		if seen[n] {
			t.Errorf("duplicate name %q", n)
		}
		seen[n] = true
	}
}

func TestIsCommand(t *testing.T) {
	for _, word := range []string{"toggle", "js", "fetch", "go"} {
		if !IsCommand(word) {
			t.Errorf("IsCommand(%q) = false", word)
		}
	}
	for _, word := range []string{"", "on", "toggel", "Toggle", "repeat"} {
		if IsCommand(word) {
			t.Errorf("IsCommand(%q) = true", word)
		}
	}
}

func TestCompilableSubset(t *testing.T) {
	var got []Name
	for _, n := range All() {
		if Compilable(n) {
			got = append(got, n)
		}
	}
	want := []Name{
		Add, Blur, Decrement, Focus, Hide, Increment, Log, Put,
		Remove, Send, Set, Show, Toggle, Trigger, Wait,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("compilable set mismatch (-want +got):\n%s", diff)
	}
}

func TestClassification(t *testing.T) {
	var async, throws []Name
	for _, n := range All() {
		if IsAsync(n) {
			async = append(async, n)
		}
		if Throws(n) {
			throws = append(throws, n)
		}
	}
	if diff := cmp.Diff([]Name{Fetch, Settle, Transition, Wait}, async); diff != "" {
		t.Errorf("async set mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Name{Exit, Halt, Throw}, throws); diff != "" {
		t.Errorf("throws set mismatch (-want +got):\n%s", diff)
	}
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name Name
		want []string
	}{
		{Fetch, []string{"fetchJSON", "fetchText"}},
		{Go, []string{"navigate"}},
		{Increment, []string{"setProp"}},
		{Trigger, []string{"send"}},
		{Toggle, nil},
		{Name("nope"), nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Helpers(tt.name)); diff != "" {
			t.Errorf("Helpers(%q) mismatch (-want +got):\n%s", tt.name, diff)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Lookup("definitely-not-a-command"); ok {
		t.Error("unknown name should not resolve")
	}
	meta, ok := Lookup(Wait)
	if !ok || !meta.Async || !meta.Compilable {
		t.Errorf("Lookup(wait) = %+v, %v", meta, ok)
	}
}
