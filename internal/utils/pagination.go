// Package utils holds small helpers shared by the HTTP and service layers.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as a decimal int, returning def when s is empty,
// malformed or out of range. Whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Page size bounds applied by PageWindow.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageWindow turns a 1-based page and a page size into an offset/limit pair.
// Pages below 1 become 1; sizes outside (0, MaxPageSize] fall back to
// DefaultPageSize or are clamped to MaxPageSize.
//
//	off, lim := utils.PageWindow(3, 10) // 20, 10
func PageWindow(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return (page - 1) * pageSize, pageSize
}

// SplitCSV splits a comma-separated list, trimming blanks and dropping
// empty and repeated entries while keeping first-seen order.
func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}
