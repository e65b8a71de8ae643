package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		options  Options
		text     string
		want     Result
	}{
		{"no keywords", nil, Options{}, "hiring now", Result{Matched: false, Keywords: []string{}}},
		{"empty text", []string{"hiring"}, Options{}, "", Result{Matched: false, Keywords: []string{}}},
		{"substring", []string{"cat"}, Options{}, "a new category", Result{Matched: true, Keywords: []string{"cat"}}},
		{"whole word rejects substring", []string{"cat"}, Options{WholeWord: true}, "a new category", Result{Matched: false, Keywords: []string{}}},
		{"whole word matches word", []string{"cat"}, Options{WholeWord: true}, "my cat, my rules", Result{Matched: true, Keywords: []string{"cat"}}},
		{"case folded", []string{"Hiring"}, Options{}, "WE ARE HIRING", Result{Matched: true, Keywords: []string{"Hiring"}}},
		{"case sensitive", []string{"Hiring"}, Options{CaseSensitive: true}, "we are hiring", Result{Matched: false, Keywords: []string{}}},
		{"metacharacters escaped", []string{"c++"}, Options{WholeWord: false}, "senior c++ dev", Result{Matched: true, Keywords: []string{"c++"}}},
		{"metacharacters whole word", []string{"node.js"}, Options{WholeWord: true}, "nodexjs and node.js", Result{Matched: true, Keywords: []string{"node.js"}}},
		{"keeps keyword order", []string{"golang", "hiring", "remote"}, Options{}, "Remote hiring", Result{Matched: true, Keywords: []string{"hiring", "remote"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.keywords, tt.options)
			assert.Equal(t, tt.want, m.Match(tt.text))
		})
	}
}

func TestReconfigureInPlace(t *testing.T) {
	m := New([]string{"cat"}, Options{})
	assert.True(t, m.Match("category").Matched)

	m.SetOptions(Options{WholeWord: true})
	assert.False(t, m.Match("category").Matched)

	m.SetKeywords([]string{"category"})
	assert.True(t, m.Match("category").Matched)
	assert.Equal(t, []string{"category"}, m.Keywords())
	assert.True(t, m.Options().WholeWord)
}

func TestFindAllMatches(t *testing.T) {
	m := New([]string{"go", "hiring"}, Options{})
	matches := m.FindAllMatches("Go devs: go! Hiring")
	require.Len(t, matches, 3)

	assert.Equal(t, Match{Keyword: "go", Position: 0, Length: 2, Matched: "Go"}, matches[0])
	assert.Equal(t, Match{Keyword: "go", Position: 9, Length: 2, Matched: "go"}, matches[1])
	assert.Equal(t, Match{Keyword: "hiring", Position: 13, Length: 6, Matched: "Hiring"}, matches[2])

	t.Run("whole word", func(t *testing.T) {
		m := New([]string{"go"}, Options{WholeWord: true})
		matches := m.FindAllMatches("go gopher go")
		require.Len(t, matches, 2)
		assert.Equal(t, 0, matches[0].Position)
		assert.Equal(t, 10, matches[1].Position)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, New(nil, Options{}).FindAllMatches("go"))
	})
}
