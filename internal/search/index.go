// Package search ranks keyed text documents against a free-text query. The
// professional directory uses it to order profiles after SQL filtering.
//
// An Index is immutable once built and safe for concurrent readers. Scores
// are the Jaccard similarity of the query and document token sets, where a
// query token of three or more runes also matches any document token it
// prefixes ("apprais" finds "appraiser"). Ties are broken by shorter text,
// then by ID, so the order is deterministic.
package search

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Document is one unit of indexed text.
type Document struct {
	ID   string
	Text string
}

// Result is a ranked document.
type Result struct {
	ID    string
	Score float64
}

type settings struct {
	minRunes int
	maxDocs  int
	stop     map[string]struct{}
}

// Option adjusts how NewIndex admits documents.
type Option func(*settings)

// WithMinRunes skips documents shorter than n runes. Negative n is ignored.
func WithMinRunes(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.minRunes = n
		}
	}
}

// WithMaxDocs stops indexing after n documents. n <= 0 is ignored.
func WithMaxDocs(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxDocs = n
		}
	}
}

// WithStopwords replaces the built-in stop words; an empty list keeps every
// token.
func WithStopwords(words []string) Option {
	return func(s *settings) {
		s.stop = wordSet(words)
	}
}

// Directory queries are short ("lender near miami"), so the list stays small.
var builtinStopwords = wordSet([]string{
	"a", "an", "and", "are", "as", "at", "by", "for", "from", "in", "is",
	"me", "my", "near", "of", "on", "or", "the", "to", "with",
})

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

type entry struct {
	id     string
	runes  int
	tokens map[string]struct{}
}

// Index is a built, read-only ranking index.
type Index struct {
	stop    map[string]struct{}
	entries []entry
}

// NewIndex indexes docs in order. A document is skipped when its ID is blank
// or already indexed, or when its text is too short or has no tokens.
func NewIndex(docs []Document, opts ...Option) *Index {
	s := settings{stop: builtinStopwords}
	for _, o := range opts {
		o(&s)
	}

	idx := &Index{stop: s.stop, entries: make([]entry, 0, len(docs))}
	ids := make(map[string]bool, len(docs))
	for _, d := range docs {
		if s.maxDocs > 0 && len(idx.entries) == s.maxDocs {
			break
		}
		id := strings.TrimSpace(d.ID)
		if id == "" || ids[id] {
			continue
		}
		text := normalizeWhitespace(d.Text)
		n := utf8.RuneCountInString(text)
		if n == 0 || n < s.minRunes {
			continue
		}
		toks := tokenize(text, s.stop)
		if len(toks) == 0 {
			continue
		}
		ids[id] = true
		idx.entries = append(idx.entries, entry{id: id, runes: n, tokens: toks})
	}
	return idx
}

// Len is the number of indexed documents.
func (i *Index) Len() int { return len(i.entries) }

// TopK returns the k best matches, or all matches when k <= 0. Documents
// sharing no token with the query are never returned.
func (i *Index) TopK(query string, k int) []Result {
	q := tokenize(query, i.stop)
	if len(q) == 0 || len(i.entries) == 0 {
		return nil
	}

	type hit struct {
		Result
		runes int
	}
	var hits []hit
	for _, e := range i.entries {
		shared := overlap(q, e.tokens)
		if shared == 0 {
			continue
		}
		union := len(q) + len(e.tokens) - shared
		hits = append(hits, hit{Result{e.id, float64(shared) / float64(union)}, e.runes})
	}
	if len(hits) == 0 {
		return nil
	}
	slices.SortFunc(hits,func(a, b hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.runes, b.runes); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	if k <= 0 || k > len(hits) {
		k = len(hits)
	}
	out := make([]Result, k)
	for j := range out {
		out[j] = hits[j].Result
	}
	return out
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	toks := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, ok := stop[w]; !ok {
			toks[w] = struct{}{}
		}
	}
	return toks
}

// overlap counts query tokens present in doc, exactly or (for tokens of 3+
// runes) as a prefix of some doc token.
func overlap(query, doc map[string]struct{}) int {
	n := 0
	for t := range query {
		if _, ok := doc[t]; ok {
			n++
			continue
		}
		if utf8.RuneCountInString(t) < 3 {
			continue
		}
		for dt := range doc {
			if strings.HasPrefix(dt, t) {
				n++
				break
			}
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
