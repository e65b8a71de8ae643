package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/htmldoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCollyCollectorFetch(t *testing.T) {
	var gotCookie, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		gotCookie = r.Header.Get("Cookie")
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Feed | LinkedIn</title></head><body><div class="feed-shared-update-v2">hiring</div></body></html>`))
	}))
	defer srv.Close()

	c, err := InitCollyCollector(config.CollectorConfig{
		UserAgent:       "leadagent-test",
		IgnoreRobotsTxt: true,
		Parallelism:     1,
		Cookie:          "li_at=token",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	snap, err := c.Fetch(context.Background(), srv.URL+"/feed/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, snap.Status)
	assert.Equal(t, srv.URL+"/feed/", snap.URL)
	assert.False(t, snap.FetchedAt.IsZero())
	assert.Equal(t, "li_at=token", gotCookie)
	assert.Equal(t, "leadagent-test", gotUA)

	doc, err := htmldoc.FromSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, "Feed | LinkedIn", doc.Title())

	t.Run("同一地址可以重复抓取", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), srv.URL+"/feed/")
		assert.NoError(t, err)
	})

	t.Run("非 2xx 返回错误", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), srv.URL+"/missing")
		assert.ErrorContains(t, err, "404")
	})
}
