package utils

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/amaumene/gostreamarr/internal/models"
)

func TestQualityBonus(t *testing.T) {
	assert.Equal(t, 6.0, QualityBonus(models.Quality2160p, false, false))
	assert.Equal(t, 4.0, QualityBonus(models.Quality1080p, false, false))
	assert.Equal(t, 2.0, QualityBonus(models.Quality720p, false, false))
	assert.Equal(t, 0.0, QualityBonus(models.QualityUnknown, false, false))
	assert.Equal(t, 8.0, QualityBonus(models.Quality2160p, true, true))
}

func TestLoadBlacklist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nCAM\n\n  hdts \n"), 0o644))

	bl, err := LoadBlacklist(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bl.Len())

	hit, term := bl.IsBlacklisted("Movie.2023.HDTS.x264")
	assert.True(t, hit)
	assert.Equal(t, "hdts", term)

	hit, _ = bl.IsBlacklisted("Movie.2023.1080p.WEB-DL")
	assert.False(t, hit)
}

func TestLoadBlacklistMissingFile(t *testing.T) {
	bl, err := LoadBlacklist(filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)
	assert.Equal(t, 0, bl.Len())

	var nilList *Blacklist
	hit, _ := nilList.IsBlacklisted("anything")
	assert.False(t, hit)
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")

	logger.Info().Msg("hidden")
	logger.Warn().Str("hash", "abc").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "abc")

	buf.Reset()
	fallback := newLogger(&buf, "nonsense")
	fallback.Debug().Msg("debug")
	assert.Empty(t, buf.String())
}

func TestSpanLogger(t *testing.T) {
	var buf bytes.Buffer
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(&spanLogger{logger: newLogger(&buf, "debug")}))

	_, span := tp.Tracer("test").Start(context.Background(), "resolver.submit")
	span.SetAttributes(attribute.String("info_hash", "abc"))
	span.End()

	assert.Contains(t, buf.String(), "resolver.submit")
	assert.Contains(t, buf.String(), "abc")
}
