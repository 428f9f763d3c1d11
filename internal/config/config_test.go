package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientDefaults(t *testing.T) {
	t.Setenv("TOKEN", "tok")
	t.Setenv("PROJECT_ID", "p1")

	cfg, err := LoadClient("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api/v1", cfg.APIBaseURL)
	assert.Equal(t, "ws://localhost:8080/socket", cfg.SocketURL)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, "p1", cfg.ProjectID)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.UploadTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestLoadClientFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gigchat.yaml")
	contents := "api_base_url: https://api.example.com/api/v1/\nrequest_timeout_ms: 1500\nproject_id: p9\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadClient(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/api/v1", cfg.APIBaseURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, "p9", cfg.ProjectID)
}

func TestLoadClientEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gigchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project_id: from-file\n"), 0o600))
	t.Setenv("PROJECT_ID", "from-env")

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ProjectID)
}

func TestLoadClientRejectsBadTimeout(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_MS", "-1")

	_, err := LoadClient("")
	assert.Error(t, err)
}

func TestLoadClientMissingFile(t *testing.T) {
	_, err := LoadClient(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadServer(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *ServerConfig)
	}{
		{
			name:    "missing secret",
			env:     map[string]string{"JWT_SECRET": ""},
			wantErr: true,
		},
		{
			name: "memory defaults",
			env:  map[string]string{"JWT_SECRET": "s3cret"},
			check: func(t *testing.T, cfg *ServerConfig) {
				assert.Equal(t, "8080", cfg.Port)
				assert.Equal(t, "memory", cfg.DBType)
				assert.Equal(t, 60, cfg.SocketMessagesPerMinute)
			},
		},
		{
			name:    "postgres without url",
			env:     map[string]string{"JWT_SECRET": "s3cret", "DB_TYPE": "postgres", "DATABASE_URL": ""},
			wantErr: true,
		},
		{
			name: "postgres with url",
			env: map[string]string{
				"JWT_SECRET":   "s3cret",
				"DB_TYPE":      "postgres",
				"DATABASE_URL": "postgres://localhost/gigchat?sslmode=disable",
			},
			check: func(t *testing.T, cfg *ServerConfig) {
				assert.Equal(t, "postgres", cfg.DBType)
			},
		},
		{
			name:    "unknown db type",
			env:     map[string]string{"JWT_SECRET": "s3cret", "DB_TYPE": "mysql"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			cfg, err := LoadServer("")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
