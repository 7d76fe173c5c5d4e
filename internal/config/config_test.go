package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestParse_DefaultsAndRequiredKey(t *testing.T) {
	t.Parallel()

	_, err := Parse(nil)
	require.ErrorContains(t, err, "jwt signing key")

	cfg, err := Parse([]string{"-jwt-key", "k"})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, 200, cfg.MaxSteps)
	require.False(t, cfg.PruneOmittedSteps)
	require.Empty(t, cfg.RedisAddr)
}

func TestParse_FileThenFlags(t *testing.T) {
	t.Parallel()

	path := writeFile(t, `
addr: ":9000"
jwt_key: from-file
access_ttl: 1h
max_lookup: 50
redis_addr: localhost:6379
prune_omitted_steps: true
cors_origins: ["http://localhost:5173"]
login:
  max_fails: 3
`)
	cfg, err := Parse([]string{"-config", path, "-addr", ":7000", "-max-steps", "10"})
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.Addr, "explicit flag wins")
	require.Equal(t, 10, cfg.MaxSteps)
	require.Equal(t, "from-file", cfg.JWTKey, "unset flag keeps file value")
	require.Equal(t, time.Hour, cfg.AccessTTL)
	require.Equal(t, 50, cfg.MaxLookup)
	require.Equal(t, "localhost:6379", cfg.RedisAddr)
	require.True(t, cfg.PruneOmittedSteps)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	require.Equal(t, 3, cfg.Login.MaxFails)
	require.Equal(t, 15*time.Minute, cfg.Login.Window, "file keeps defaults for absent keys")
}

func TestParse_CORSFlag(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]string{"-jwt-key", "k", "-cors-origins", " http://a.test, ,http://b.test"})
	require.NoError(t, err)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	_, err := Parse([]string{"-config", filepath.Join(t.TempDir(), "absent.yaml")})
	require.ErrorContains(t, err, "read config")

	_, err = Parse([]string{"-config", writeFile(t, "addr: [unterminated")})
	require.ErrorContains(t, err, "parse config")

	_, err = Parse([]string{"-jwt-key", "k", "-tls-cert", "c.pem"})
	require.ErrorContains(t, err, "tls_cert and tls_key")

	_, err = Parse([]string{"-jwt-key", "k", "-max-steps", "0"})
	require.Error(t, err)

	_, err = Parse([]string{"-no-such-flag"})
	require.Error(t, err)
}
