package settings

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/LouYuanbo1/leadagent/internal/infra/persistence/kv"
	"github.com/LouYuanbo1/leadagent/internal/service/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	events []notify.EventType
	last   any
}

func (r *recorder) Publish(t notify.EventType, payload any) {
	r.events = append(r.events, t)
	r.last = payload
}

func newManager(t *testing.T) (*Manager, *recorder) {
	store := kv.NewMemoryStore(zaptest.NewLogger(t))
	t.Cleanup(func() { _ = store.Close() })
	rec := &recorder{}
	return NewManager(store, rec, zaptest.NewLogger(t)), rec
}

func TestKeywords(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		m, _ := newManager(t)
		keywords, err := m.Keywords(ctx)
		require.NoError(t, err)
		assert.Empty(t, keywords)
		assert.NotNil(t, keywords)
	})

	t.Run("add trims and rejects duplicates", func(t *testing.T) {
		m, _ := newManager(t)
		added, err := m.AddKeyword(ctx, "  hiring  ")
		require.NoError(t, err)
		assert.True(t, added)

		added, err = m.AddKeyword(ctx, "hiring")
		require.NoError(t, err)
		assert.False(t, added)

		keywords, err := m.Keywords(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"hiring"}, keywords)
	})

	t.Run("validation", func(t *testing.T) {
		m, _ := newManager(t)
		_, err := m.AddKeyword(ctx, "   ")
		assert.ErrorIs(t, err, ErrEmptyKeyword)

		_, err = m.AddKeyword(ctx, strings.Repeat("k", MaxKeywordLength+1))
		assert.ErrorIs(t, err, ErrKeywordTooLong)

		added, err := m.AddKeyword(ctx, strings.Repeat("k", MaxKeywordLength))
		require.NoError(t, err)
		assert.True(t, added)
	})

	t.Run("limit", func(t *testing.T) {
		m, _ := newManager(t)
		full := make([]string, MaxKeywords)
		for i := range full {
			full[i] = "kw" + strings.Repeat("x", i)
		}
		require.NoError(t, m.SetKeywords(ctx, full))

		_, err := m.AddKeyword(ctx, "one more")
		assert.ErrorIs(t, err, ErrTooManyKeywords)
		assert.ErrorIs(t, m.SetKeywords(ctx, append(full, "extra")), ErrTooManyKeywords)
	})

	t.Run("remove", func(t *testing.T) {
		m, _ := newManager(t)
		require.NoError(t, m.SetKeywords(ctx, []string{"a", "b", "c"}))

		removed, err := m.RemoveKeyword(ctx, "b")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = m.RemoveKeyword(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, removed)

		keywords, err := m.Keywords(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, keywords)
	})
}

func TestSettingsMergeDefaults(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	s, err := m.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSettings(), s)

	require.NoError(t, m.Save(ctx, KeySettings, map[string]any{"wholeWord": true, "scanIntervalMs": 5000}))
	s, err = m.Settings(ctx)
	require.NoError(t, err)
	assert.True(t, s.WholeWord)
	assert.Equal(t, 5*time.Second, s.ScanInterval())
	assert.True(t, s.HighlightPosts)

	updated, err := m.UpdateSettings(ctx, func(s *config.Settings) { s.AutoSearchEnabled = true })
	require.NoError(t, err)
	assert.True(t, updated.AutoSearchEnabled)
	assert.True(t, updated.WholeWord)

	require.NoError(t, m.Save(ctx, KeySettings, "not an object"))
	s, err = m.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSettings(), s)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	m, rec := newManager(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	_, err := m.RecordLead(ctx, &model.Lead{Emails: []string{"a@x.com", "b@x.com"}, Phones: []string{"555-123-4567"}})
	require.NoError(t, err)
	stats, err := m.RecordLead(ctx, &model.Lead{})
	require.NoError(t, err)
	assert.Equal(t, model.Stats{TotalLeads: 2, EmailsFound: 2, PhonesFound: 1}, stats)

	stats, err = m.RecordExport(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ExportedCount)
	require.NotNil(t, stats.LastSync)
	assert.True(t, at.Equal(*stats.LastSync))

	stored, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TotalLeads)
	assert.Equal(t, 2, stored.ExportedCount)

	require.NoError(t, m.ResetStats(ctx))
	stored, err = m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{}, stored)

	assert.Equal(t, []notify.EventType{
		notify.EventStatsUpdated,
		notify.EventStatsUpdated,
		notify.EventStatsUpdated,
		notify.EventStatsUpdated,
	}, rec.events)
}

func TestLoadSaveDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	var state struct {
		Index int `json:"index"`
	}
	ok, err := m.Load(ctx, KeyAutoSearchState, &state)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Save(ctx, KeyAutoSearchState, map[string]int{"index": 3}))
	ok, err = m.Load(ctx, KeyAutoSearchState, &state)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, state.Index)

	require.NoError(t, m.Delete(ctx, KeyAutoSearchState))
	ok, err = m.Load(ctx, KeyAutoSearchState, &state)
	require.NoError(t, err)
	assert.False(t, ok)
}
