package executor

import (
	"context"
	"testing"

	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldExtractor(t *testing.T) {
	page := newPage(t, "https://www.linkedin.com/search/results/people/", `<html><body>
		<div class="card">
			<span class="entity-result__title-text">  </span>
			<h3>Fallback Name</h3>
			<a href="/in/fallback/">p</a>
			<p>write to fallback@corp.io or call 555-987-6543</p>
		</div>
	</body></html>`)
	card, ok := types.QueryFirst(context.Background(), page, ".card")
	require.True(t, ok)

	f := NewFieldExtractor(nil)
	tests := []struct {
		field string
		want  string
	}{
		{"name", "Fallback Name"},
		{"profile_url", "/in/fallback/"},
		{"email", "fallback@corp.io"},
		{"phone", "555-987-6543"},
		{"headline", ""},
		{"unknown_field", ""},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Extract(card, tt.field))
		})
	}
}

func TestFieldSelectors(t *testing.T) {
	got := FieldSelectors("profile_url")
	require.Len(t, got, 2)
	assert.Equal(t, FieldSelector{Selector: `a[href*="/in/"]`, Attr: "href"}, got[0])
	assert.Empty(t, FieldSelectors("nope"))

	for field, candidates := range fieldTable {
		assert.NotEmpty(t, candidates, field)
	}
}
