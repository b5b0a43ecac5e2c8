package search

import (
	"sync"
	"testing"
)

func TestOptions(t *testing.T) {
	var s settings
	for _, o := range []Option{
		WithMinRunes(10), WithMinRunes(-5),
		WithMaxDocs(2), WithMaxDocs(0),
		WithStopwords([]string{"  The ", "", "An"}),
	} {
		o(&s)
	}
	if s.minRunes != 10 || s.maxDocs != 2 {
		t.Fatalf("settings = %+v", s)
	}
	if _, ok := s.stop["the"]; !ok || len(s.stop) != 2 {
		t.Fatalf("stop words = %v", s.stop)
	}
	WithStopwords(nil)(&s)
	if len(s.stop) != 0 {
		t.Fatalf("empty list kept stop words: %v", s.stop)
	}

	// With stop words disabled, "near" becomes searchable.
	docs := []Document{{ID: "a", Text: "agent near campus"}}
	if NewIndex(docs).TopK("near", 1) != nil {
		t.Fatal("built-in stop word matched")
	}
	if got := NewIndex(docs, WithStopwords(nil)).TopK("near", 1); len(got) != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestNewIndex_SkipsAndCaps(t *testing.T) {
	docs := []Document{
		{ID: "", Text: "no id"},
		{ID: "a", Text: "Jane Doe broker Austin"},
		{ID: "a", Text: "duplicate id is dropped"},
		{ID: "b", Text: "   "},
		{ID: "c", Text: "!!! ???"},
		{ID: "d", Text: "Home inspector in Denver"},
		{ID: "e", Text: "Appraiser Boston"},
	}
	if n := NewIndex(docs).Len(); n != 3 {
		t.Fatalf("Len = %d; want 3", n)
	}
	if n := NewIndex(docs, WithMaxDocs(2)).Len(); n != 2 {
		t.Fatalf("Len with cap = %d; want 2", n)
	}
	if n := NewIndex(docs, WithMinRunes(20)).Len(); n != 2 {
		t.Fatalf("Len with min runes = %d; want 2", n)
	}
}

func TestTopK_RankingAndTies(t *testing.T) {
	idx := NewIndex([]Document{
		{ID: "p1", Text: "Jane Doe, broker in Austin, Texas"},
		{ID: "p2", Text: "John Roe, broker"},
		{ID: "p3", Text: "Ann Lee, appraiser in Austin"},
		{ID: "p4", Text: "Bobb Ray, broker"},
	})

	got := idx.TopK("broker austin", 0)
	if len(got) != 4 {
		t.Fatalf("want 4 matches, got %+v", got)
	}
	if got[0].ID != "p1" {
		t.Fatalf("best match = %s; want p1 (%+v)", got[0].ID, got)
	}
	// p2 and p4 score the same and have the same length; ids break the tie.
	pos := map[string]int{}
	for i, r := range got {
		pos[r.ID] = i
	}
	if pos["p2"] > pos["p4"] {
		t.Fatalf("tie not broken by id: %+v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("results not sorted: %+v", got)
		}
	}

	if top := idx.TopK("broker austin", 1); len(top) != 1 || top[0].ID != "p1" {
		t.Fatalf("TopK(1) = %+v", top)
	}
}

func TestTopK_PrefixMatch(t *testing.T) {
	idx := NewIndex([]Document{
		{ID: "x", Text: "Certified appraiser"},
		{ID: "y", Text: "Mortgage lender"},
	})
	got := idx.TopK("apprais", 5)
	if len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("prefix query = %+v", got)
	}
	// two-rune tokens only match exactly
	if got := idx.TopK("ce", 5); len(got) != 0 {
		t.Fatalf("short prefix should not match: %+v", got)
	}
}

func TestTopK_EmptyCases(t *testing.T) {
	empty := NewIndex(nil)
	if empty.TopK("anything", 3) != nil {
		t.Fatalf("empty index should return nil")
	}
	idx := NewIndex([]Document{{ID: "a", Text: "lender in Miami"}})
	for _, q := range []string{"", "   ", "the and of", "zzz"} {
		if got := idx.TopK(q, 3); got != nil {
			t.Fatalf("TopK(%q) = %+v; want nil", q, got)
		}
	}
}

func TestTopK_ConcurrentReads(t *testing.T) {
	idx := NewIndex([]Document{
		{ID: "a", Text: "attorney Chicago"},
		{ID: "b", Text: "attorney Seattle"},
	})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := idx.TopK("attorney chicago", 2); len(got) != 2 || got[0].ID != "a" {
				t.Errorf("concurrent TopK = %+v", got)
			}
		}()
	}
	wg.Wait()
}

func TestHelpers(t *testing.T) {
	if got := normalizeWhitespace("a \t\n b\r\rc"); got != "a b c" {
		t.Fatalf("normalizeWhitespace = %q", got)
	}
	toks := tokenize("Real-Estate 2024, real", nil)
	for _, w := range []string{"real", "estate", "2024"} {
		if _, ok := toks[w]; !ok {
			t.Fatalf("tokenize missing %q: %v", w, toks)
		}
	}
	if overlap(nil, toks) != 0 || overlap(toks, nil) != 0 {
		t.Fatalf("overlap with empty set should be 0")
	}
}
