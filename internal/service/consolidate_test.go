package service

import (
	"reflect"
	"testing"

	"github.com/mlukyanov/packtrack-system/internal/model"
)

func TestConsolidate_EmptyInput(t *testing.T) {
	groups := Consolidate(nil)
	if len(groups) != 0 {
		t.Fatalf("empty input must yield no groups, got %d", len(groups))
	}
}

func TestConsolidate_GroupsAscendingByArticle(t *testing.T) {
	records := []model.CodeRecord{
		{Code: "c1", Article: "B-200"},
		{Code: "c2", Article: "A-100"},
		{Code: "c3", Article: "B-200"},
		{Code: "c4", Article: "A-100"},
		{Code: "c5", Article: "C-300"},
	}

	groups := Consolidate(records)

	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}

	wantArticles := []string{"A-100", "B-200", "C-300"}
	for i, want := range wantArticles {
		if groups[i].Article != want {
			t.Fatalf("groups[%d].Article = %q, want %q", i, groups[i].Article, want)
		}
	}

	if groups[0].Count != 2 || groups[1].Count != 2 || groups[2].Count != 1 {
		t.Fatalf("unexpected counts: %d, %d, %d", groups[0].Count, groups[1].Count, groups[2].Count)
	}
}

func TestConsolidate_PreservesInputOrderWithinGroup(t *testing.T) {
	records := []model.CodeRecord{
		{Code: "first", Article: "ART"},
		{Code: "second", Article: "ART"},
		{Code: "third", Article: "ART"},
	}

	groups := Consolidate(records)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	for i, want := range []string{"first", "second", "third"} {
		if groups[0].Codes[i].Code != want {
			t.Fatalf("codes[%d] = %q, want %q", i, groups[0].Codes[i].Code, want)
		}
	}
}

func TestConsolidate_Deterministic(t *testing.T) {
	records := []model.CodeRecord{
		{Code: "c1", Article: "Z"},
		{Code: "c2", Article: "A"},
		{Code: "c3", Article: "M"},
	}

	first := Consolidate(records)
	second := Consolidate(records)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("consolidation must be deterministic:\n%v\n%v", first, second)
	}
}
