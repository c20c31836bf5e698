package budget

import (
	"strings"
	"testing"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateAll(t *testing.T) {
	t.Parallel()
	got := EstimateAll([]string{"abcdefgh", "abcd", ""})
	if got != 3 {
		t.Errorf("EstimateAll = %d, want 3", got)
	}
}

func Test_TrimRanked_NoTrimNeeded(t *testing.T) {
	t.Parallel()
	ranked := []string{"first", "second"}
	got := TrimRanked(ranked, DefaultMaxSearchTokens)
	if len(got) != 2 {
		t.Errorf("want 2 results, got %d", len(got))
	}
}

func Test_TrimRanked_DropsLowestRanked(t *testing.T) {
	t.Parallel()
	// Each entry costs 10 tokens; a budget of 25 fits two.
	chunk := strings.Repeat("x", 40)
	ranked := []string{"best " + chunk[5:], "mid " + chunk[4:], "worst " + chunk[6:]}
	got := TrimRanked(ranked, 25)
	if len(got) != 2 {
		t.Fatalf("want 2 results after trim, got %d", len(got))
	}
	if !strings.HasPrefix(got[0], "best") || !strings.HasPrefix(got[1], "mid") {
		t.Errorf("want best-first prefix retained, got %q", got)
	}
}

func Test_TrimRanked_KeepsTopEvenWhenOversized(t *testing.T) {
	t.Parallel()
	ranked := []string{strings.Repeat("x", 4*7000), "small"}
	got := TrimRanked(ranked, 6000)
	if len(got) != 1 {
		t.Errorf("want only the top result, got %d", len(got))
	}
}

func Test_TrimRanked_DisabledBudget(t *testing.T) {
	t.Parallel()
	ranked := []string{strings.Repeat("x", 4*7000), "small"}
	if got := TrimRanked(ranked, 0); len(got) != 2 {
		t.Errorf("want trimming disabled, got %d", len(got))
	}
	if got := TrimRanked(nil, 10); len(got) != 0 {
		t.Errorf("want empty, got %d", len(got))
	}
}
