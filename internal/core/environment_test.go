package core

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseEnvironment(t *testing.T) {
	env, err := ParseEnvironment("production")
	assert.Nil(t, err)
	assert.True(t, env.IsProduction())
	assert.Equal(t, zerolog.InfoLevel, env.LogLevel())

	env, err = ParseEnvironment("development")
	assert.Nil(t, err)
	assert.True(t, env.IsDevelopment())
	assert.Equal(t, zerolog.DebugLevel, env.LogLevel())

	_, err = ParseEnvironment("staging")
	assert.NotNil(t, err)
}
