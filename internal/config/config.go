package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	FileName  = "ocm"
	FileType  = "toml"
	EnvPrefix = "OCM"

	KeyWorkspaceRoot              = "workspaceRoot"
	KeyMemoryDir                  = "memoryDir"
	KeyHotContextFile             = "hotContextFile"
	KeyRetentionDays              = "retentionDays"
	KeyActiveThreshold            = "activeThreshold"
	KeyEmergencyThreshold         = "emergencyThreshold"
	KeyPollIntervalMinutes        = "pollIntervalMinutes"
	KeyConsolidationIntervalHours = "consolidationIntervalHours"
	KeyMaxRunMinutes              = "maxRunMinutes"
	KeyStatusTimeoutSeconds       = "statusTimeoutSeconds"
	KeyDetailLines                = "detailLines"
	KeyStatusCommand              = "status.command"
	KeyStatusURL                  = "status.url"
	KeyStatusToken                = "status.token"
	KeyNotifyCommand              = "notify.command"
	KeyIndexBackend               = "index.backend"
	KeyIndexModel                 = "index.model"
	KeyIndexBaseURL               = "index.baseURL"
	KeyIndexAPIKey                = "index.apiKey"
	KeyIndexDimensions            = "index.dimensions"
	KeyIndexOnConsolidate         = "index.onConsolidate"
	KeyLogLevel                   = "log.level"
	KeyLogFormat                  = "log.format"

	BackendLocal  = "local"
	BackendOpenAI = "openai"
)

// Options carry what the command line knows before the config file is read.
// Empty fields fall back to the environment and the defaults.
type Options struct {
	Workspace  string
	ConfigFile string
	Home       string
}

type StatusSettings struct {
	Command string `toml:"command"`
	URL     string `toml:"url"`
	Token   string `toml:"-" json:"-"`
}

type NotifySettings struct {
	Command string `toml:"command"`
}

type IndexSettings struct {
	Backend       string `toml:"backend"`
	Model         string `toml:"model"`
	BaseURL       string `toml:"baseURL"`
	APIKey        string `toml:"-" json:"-"`
	Dimensions    int    `toml:"dimensions"`
	OnConsolidate bool   `toml:"onConsolidate"`
}

type LogSettings struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Settings is the resolved configuration. Paths are absolute.
type Settings struct {
	WorkspaceRoot              string         `toml:"workspaceRoot"`
	MemoryDir                  string         `toml:"memoryDir"`
	HotContextFile             string         `toml:"hotContextFile"`
	RetentionDays              int            `toml:"retentionDays"`
	ActiveThreshold            float64        `toml:"activeThreshold"`
	EmergencyThreshold         float64        `toml:"emergencyThreshold"`
	PollIntervalMinutes        int            `toml:"pollIntervalMinutes"`
	ConsolidationIntervalHours int            `toml:"consolidationIntervalHours"`
	MaxRunMinutes              int            `toml:"maxRunMinutes"`
	StatusTimeoutSeconds       int            `toml:"statusTimeoutSeconds"`
	DetailLines                int            `toml:"detailLines"`
	Status                     StatusSettings `toml:"status"`
	Notify                     NotifySettings `toml:"notify"`
	Index                      IndexSettings  `toml:"index"`
	Log                        LogSettings    `toml:"log"`
	// ConfigFile is the file that was read, empty when none was found.
	ConfigFile string `toml:"-"`
}

func (s Settings) Thresholds() domain.Thresholds {
	return domain.Thresholds{Active: s.ActiveThreshold, Emergency: s.EmergencyThreshold}
}

func (s Settings) MaxRun() time.Duration {
	return time.Duration(s.MaxRunMinutes) * time.Minute
}

func (s Settings) StatusTimeout() time.Duration {
	return time.Duration(s.StatusTimeoutSeconds) * time.Second
}

func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMinutes) * time.Minute
}

func (s Settings) ConsolidationInterval() time.Duration {
	return time.Duration(s.ConsolidationIntervalHours) * time.Hour
}

func (s Settings) StateDir() string {
	return filepath.Join(s.MemoryDir, "state", "context")
}

func (s Settings) InboxDir() string {
	return filepath.Join(s.MemoryDir, "inbox")
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyWorkspaceRoot, filepath.Join("~", ".openclaw", "workspace"))
	v.SetDefault(KeyMemoryDir, "memory")
	v.SetDefault(KeyHotContextFile, "MEMORY.md")
	v.SetDefault(KeyRetentionDays, 7)
	v.SetDefault(KeyActiveThreshold, domain.DefaultActiveThreshold)
	v.SetDefault(KeyEmergencyThreshold, domain.DefaultEmergencyThreshold)
	v.SetDefault(KeyPollIntervalMinutes, 15)
	v.SetDefault(KeyConsolidationIntervalHours, 6)
	v.SetDefault(KeyMaxRunMinutes, 10)
	v.SetDefault(KeyStatusTimeoutSeconds, 10)
	v.SetDefault(KeyDetailLines, 2)
	v.SetDefault(KeyStatusCommand, "")
	v.SetDefault(KeyStatusURL, "")
	v.SetDefault(KeyStatusToken, "")
	v.SetDefault(KeyNotifyCommand, "")
	v.SetDefault(KeyIndexBackend, BackendLocal)
	v.SetDefault(KeyIndexModel, "")
	v.SetDefault(KeyIndexBaseURL, "")
	v.SetDefault(KeyIndexAPIKey, "")
	v.SetDefault(KeyIndexDimensions, 256)
	v.SetDefault(KeyIndexOnConsolidate, true)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// Load resolves settings from defaults, ocm.toml, a workspace .env file and
// OCM_ environment variables, with opts.Workspace taking precedence over all
// of them.
func Load(v *viper.Viper, opts Options) (Settings, error) {
	if v == nil {
		v = viper.New()
	}

	home := opts.Home
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return Settings{}, fmt.Errorf("resolve home directory: %w", err)
		}
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyIndexAPIKey, EnvPrefix+"_INDEX_APIKEY", "OPENAI_API_KEY"); err != nil {
		return Settings{}, fmt.Errorf("bind api key env: %w", err)
	}

	workspace := opts.Workspace
	if workspace == "" {
		workspace = v.GetString(KeyWorkspaceRoot)
	}
	workspace = expandHome(workspace, home)

	envFile := filepath.Join(workspace, ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(expandHome(opts.ConfigFile, home))
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType(FileType)
		v.AddConfigPath(workspace)
		v.AddConfigPath(filepath.Join(home, ".openclaw"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Settings{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	if opts.Workspace == "" {
		workspace = expandHome(v.GetString(KeyWorkspaceRoot), home)
	}
	workspace, err := filepath.Abs(workspace)
	if err != nil {
		return Settings{}, fmt.Errorf("resolve workspace root: %w", err)
	}

	s := Settings{
		WorkspaceRoot:              workspace,
		MemoryDir:                  resolvePath(workspace, v.GetString(KeyMemoryDir), home),
		HotContextFile:             resolvePath(workspace, v.GetString(KeyHotContextFile), home),
		RetentionDays:              v.GetInt(KeyRetentionDays),
		ActiveThreshold:            v.GetFloat64(KeyActiveThreshold),
		EmergencyThreshold:         v.GetFloat64(KeyEmergencyThreshold),
		PollIntervalMinutes:        v.GetInt(KeyPollIntervalMinutes),
		ConsolidationIntervalHours: v.GetInt(KeyConsolidationIntervalHours),
		MaxRunMinutes:              v.GetInt(KeyMaxRunMinutes),
		StatusTimeoutSeconds:       v.GetInt(KeyStatusTimeoutSeconds),
		DetailLines:                v.GetInt(KeyDetailLines),
		Status: StatusSettings{
			Command: strings.TrimSpace(v.GetString(KeyStatusCommand)),
			URL:     strings.TrimSpace(v.GetString(KeyStatusURL)),
			Token:   v.GetString(KeyStatusToken),
		},
		Notify: NotifySettings{
			Command: strings.TrimSpace(v.GetString(KeyNotifyCommand)),
		},
		Index: IndexSettings{
			Backend:       strings.ToLower(strings.TrimSpace(v.GetString(KeyIndexBackend))),
			Model:         strings.TrimSpace(v.GetString(KeyIndexModel)),
			BaseURL:       strings.TrimSpace(v.GetString(KeyIndexBaseURL)),
			APIKey:        v.GetString(KeyIndexAPIKey),
			Dimensions:    v.GetInt(KeyIndexDimensions),
			OnConsolidate: v.GetBool(KeyIndexOnConsolidate),
		},
		Log: LogSettings{
			Level:  strings.ToLower(v.GetString(KeyLogLevel)),
			Format: strings.ToLower(v.GetString(KeyLogFormat)),
		},
		ConfigFile: v.ConfigFileUsed(),
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	return s, nil
}

func (s Settings) Validate() error {
	var errs []error
	if err := s.Thresholds().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%s=%v %s=%v: %w", KeyActiveThreshold, s.ActiveThreshold, KeyEmergencyThreshold, s.EmergencyThreshold, err))
	}
	if s.RetentionDays < 1 || s.RetentionDays > domain.MaxRetentionDays {
		errs = append(errs, fmt.Errorf("%s=%d: %w", KeyRetentionDays, s.RetentionDays, domain.ErrInvalidRetention))
	}
	for key, value := range map[string]int{
		KeyPollIntervalMinutes:        s.PollIntervalMinutes,
		KeyConsolidationIntervalHours: s.ConsolidationIntervalHours,
		KeyMaxRunMinutes:              s.MaxRunMinutes,
		KeyStatusTimeoutSeconds:       s.StatusTimeoutSeconds,
	} {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", key, value))
		}
	}
	if s.DetailLines < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative, got %d", KeyDetailLines, s.DetailLines))
	}
	switch s.Index.Backend {
	case BackendLocal, BackendOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unsupported %s %q", KeyIndexBackend, s.Index.Backend))
	}
	if s.Index.Backend == BackendLocal && s.Index.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyIndexDimensions, s.Index.Dimensions))
	}
	if _, err := parseLevel(s.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported %s %q", KeyLogFormat, s.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func resolvePath(root, path, home string) string {
	path = expandHome(strings.TrimSpace(path), home)
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return filepath.Clean(path)
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return path
}
