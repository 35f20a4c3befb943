package reconcile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	cases := []struct {
		name     string
		current  string
		incoming string
		want     string
	}{
		{"empty fragment", "Hello", "", "Hello"},
		{"first fragment", "", "Hello", "Hello"},
		{"pure suffix", "Hello", " world", "Hello world"},
		{"full overlap resend", "Hello world", "Hello world", "Hello world"},
		{"partial overlap", "The quick br", "brown fox", "The quick brown fox"},
		{"whitespace only", "Hello", "   ", "Hello"},
		{"full buffer restatement", "answer so far", "answer so far", "answer so far"},
		{"growing restatement", "He", "Hello", "Hello"},
		{"indented resend of tail", "Hello world", "  world", "Hello world"},
		{"restated prefix", "Hello world", "Hello", "Hello world"},
		{"overlap then whitespace", "Hello", "lo  ", "Hello"},
		{"newline continuation", "line one", "\nline two", "line one\nline two"},
		{"multibyte overlap", "héllo wör", "wörld", "héllo wörld"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Merge(tc.current, tc.incoming))
		})
	}
}

func TestMergeProperties(t *testing.T) {
	samples := []string{
		"", " ", "a", "ab", "Hello", "Hello world", " world", "world", "lo wo",
		"answer so far", "answer", " so far", "\n", "x\ny", "aaa", "aa", "héllo",
	}

	for _, c := range samples {
		for _, f := range samples {
			once := Merge(c, f)
			require.Equalf(t, once, Merge(once, f), "not idempotent for current=%q fragment=%q", c, f)
			require.GreaterOrEqualf(t, len(once), len(c), "shrunk for current=%q fragment=%q", c, f)
			require.Truef(t, strings.HasPrefix(once, c), "dropped accepted text for current=%q fragment=%q", c, f)
		}
	}
}

func TestFoldStreamingScenario(t *testing.T) {
	var seen []string
	current := ""
	for _, delta := range []string{"He", "Hello", " there"} {
		current = Merge(current, delta)
		seen = append(seen, current)
	}
	require.Equal(t, []string{"He", "Hello", "Hello there"}, seen)
	require.Equal(t, "Hello there!", Merge(current, "Hello there!"))

	require.Equal(t, "Hello there", Fold("He", "Hello", " there", " there"))
}
