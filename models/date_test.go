package models

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	slogctx "github.com/veqryn/slog-context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func contextWithSilentLogger() context.Context {
	return slogctx.NewCtx(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDate(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	in := time.Date(2024, 12, 31, 23, 59, 59, 999, kst)

	got := Date(in)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, "2024-12-31", DateKey(in))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2000-04-20")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2000, 4, 20, 0, 0, 0, 0, time.UTC), got)

	for _, s := range []string{"", "20-04-2000", "2000-4-20", "2000-02-30", "2000-04-20T00:00:00Z"} {
		_, err := ParseDate(s)
		assert.Error(t, err, s)
	}
}
