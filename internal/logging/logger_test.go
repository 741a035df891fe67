package logging

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, New("app", "test", "debug").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("app", "test", "loud").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New("app", "test", "").GetLevel())
}

func TestContextRoundTrip(t *testing.T) {
	logger := New("app", "test", "warn")
	ctx := IntoContext(context.Background(), logger)
	assert.Equal(t, zerolog.WarnLevel, FromContext(ctx).GetLevel())
	assert.Equal(t, zerolog.Disabled, FromContext(context.Background()).GetLevel())
}
