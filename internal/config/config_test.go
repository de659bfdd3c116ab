package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()

	settings, err := Load(viper.New(), Options{Home: home})
	require.NoError(t, err)

	workspace := filepath.Join(home, ".openclaw", "workspace")
	assert.Equal(t, workspace, settings.WorkspaceRoot)
	assert.Equal(t, filepath.Join(workspace, "memory"), settings.MemoryDir)
	assert.Equal(t, filepath.Join(workspace, "MEMORY.md"), settings.HotContextFile)
	assert.Equal(t, 7, settings.RetentionDays)
	assert.Equal(t, domain.DefaultThresholds(), settings.Thresholds())
	assert.Equal(t, 15*time.Minute, settings.PollInterval())
	assert.Equal(t, 6*time.Hour, settings.ConsolidationInterval())
	assert.Equal(t, 10*time.Minute, settings.MaxRun())
	assert.Equal(t, 10*time.Second, settings.StatusTimeout())
	assert.Equal(t, 2, settings.DetailLines)
	assert.Equal(t, BackendLocal, settings.Index.Backend)
	assert.True(t, settings.Index.OnConsolidate)
	assert.Equal(t, "info", settings.Log.Level)
	assert.Equal(t, filepath.Join(workspace, "memory", "state", "context"), settings.StateDir())
	assert.Empty(t, settings.ConfigFile)
}

func TestLoadReadsWorkspaceConfigFile(t *testing.T) {
	home := t.TempDir()
	workspace := t.TempDir()
	config := `retentionDays = 3
activeThreshold = 60
emergencyThreshold = 90
memoryDir = "notes"

[status]
command = "openclaw status --json"

[index]
backend = "openai"
model = "text-embedding-3-large"
onConsolidate = false
`
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "ocm.toml"), []byte(config), 0o600))

	settings, err := Load(viper.New(), Options{Home: home, Workspace: workspace})
	require.NoError(t, err)

	assert.Equal(t, 3, settings.RetentionDays)
	assert.Equal(t, domain.Thresholds{Active: 60, Emergency: 90}, settings.Thresholds())
	assert.Equal(t, filepath.Join(workspace, "notes"), settings.MemoryDir)
	assert.Equal(t, "openclaw status --json", settings.Status.Command)
	assert.Equal(t, BackendOpenAI, settings.Index.Backend)
	assert.Equal(t, "text-embedding-3-large", settings.Index.Model)
	assert.False(t, settings.Index.OnConsolidate)
	assert.Equal(t, filepath.Join(workspace, "ocm.toml"), settings.ConfigFile)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	home := t.TempDir()
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "ocm.toml"), []byte("retentionDays = 3\n"), 0o600))
	t.Setenv("OCM_RETENTIONDAYS", "5")
	t.Setenv("OCM_NOTIFY_COMMAND", "notify-agent")

	settings, err := Load(viper.New(), Options{Home: home, Workspace: workspace})
	require.NoError(t, err)

	assert.Equal(t, 5, settings.RetentionDays)
	assert.Equal(t, "notify-agent", settings.Notify.Command)
}

func TestLoadReadsDotEnvFromWorkspace(t *testing.T) {
	home := t.TempDir()
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, ".env"), []byte("OPENAI_API_KEY=sk-from-dotenv\n"), 0o600))
	t.Setenv("OPENAI_API_KEY", "")
	require.NoError(t, os.Unsetenv("OPENAI_API_KEY"))

	settings, err := Load(viper.New(), Options{Home: home, Workspace: workspace})
	require.NoError(t, err)
	assert.Equal(t, "sk-from-dotenv", settings.Index.APIKey)
}

func TestLoadExplicitConfigFileMustExist(t *testing.T) {
	_, err := Load(viper.New(), Options{Home: t.TempDir(), ConfigFile: filepath.Join(t.TempDir(), "missing.toml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name   string
		config string
		target error
		msg    string
	}{
		{name: "inverted thresholds", config: "activeThreshold = 90\nemergencyThreshold = 80\n", target: domain.ErrInvalidThresholds},
		{name: "zero retention", config: "retentionDays = 0\n", target: domain.ErrInvalidRetention},
		{name: "retention beyond a year", config: "retentionDays = 100000000\n", target: domain.ErrInvalidRetention},
		{name: "negative timeout", config: "statusTimeoutSeconds = -1\n", msg: "statusTimeoutSeconds must be positive"},
		{name: "unknown backend", config: "[index]\nbackend = \"faiss\"\n", msg: "unsupported index.backend"},
		{name: "unknown log level", config: "[log]\nlevel = \"loud\"\n", msg: "unsupported log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(workspace, "ocm.toml"), []byte(tt.config), 0o600))

			_, err := Load(viper.New(), Options{Home: t.TempDir(), Workspace: workspace})
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestNewLoggerHonoursLevelAndFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(&buf, LogSettings{Level: "warn", Format: "json"})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "run", "abc")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"run":"abc"`)

	_, err = NewLogger(&buf, LogSettings{Format: "xml"})
	assert.Error(t, err)
}
