package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/craft")
	t.Setenv("CLERK_SECRET_KEY", "sk_test")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "3333", cfg.Port)
	assert.Equal(t, ":3333", cfg.Addr())
	assert.Equal(t, IdentityClerk, cfg.IdentityProvider)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, 168*time.Hour, cfg.InviteLinkTTL)
	assert.Equal(t, 10*time.Minute, cfg.FinalizerInterval)
	assert.Equal(t, 5, cfg.DispatchWorkers)
}

func TestParseRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CLERK_SECRET_KEY", "sk_test")

	_, err := Parse()
	assert.Error(t, err)
}

func TestParseJWTProvider(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/craft")
	t.Setenv("IDENTITY_PROVIDER", "JWT")
	t.Setenv("JWT_SECRET", "")

	_, err := Parse()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "dev-secret")
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, IdentityJWT, cfg.IdentityProvider)
}

func TestParseRejectsUnknownProvider(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/craft")
	t.Setenv("IDENTITY_PROVIDER", "supabase")

	_, err := Parse()
	assert.ErrorContains(t, err, "unknown IDENTITY_PROVIDER")
}
