package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	for in, want := range map[string]int{
		"":                         -1,
		"42":                       42,
		"-13":                      -13,
		"0012":                     12,
		"page2":                    -1,
		" 42":                      -1,
		"999999999999999999999999": -1,
	} {
		if got := AtoiDefault(in, -1); got != want {
			t.Errorf("AtoiDefault(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestPageWindow(t *testing.T) {
	cases := []struct {
		page, size     int
		wantOff, wantL int
	}{
		{1, 10, 0, 10},
		{3, 10, 20, 10},
		{0, 10, 0, 10},
		{-4, 0, 0, DefaultPageSize},
		{2, 500, MaxPageSize, MaxPageSize},
	}
	for _, tc := range cases {
		off, lim := PageWindow(tc.page, tc.size)
		if off != tc.wantOff || lim != tc.wantL {
			t.Fatalf("PageWindow(%d,%d) = (%d,%d); want (%d,%d)", tc.page, tc.size, off, lim, tc.wantOff, tc.wantL)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" Staging, home inspection ,,staging,Relocation ")
	want := []string{"Staging", "home inspection", "Relocation"}
	if len(got) != len(want) {
		t.Fatalf("SplitCSV = %q; want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SplitCSV[%d] = %q; want %q", i, got[i], want[i])
		}
	}
	if n := len(SplitCSV("")); n != 0 {
		t.Fatalf("SplitCSV(\"\") len = %d; want 0", n)
	}
}
