package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/openclaw-memory/internal/adapters/embed/hashing"
	openaiembed "github.com/bnema/openclaw-memory/internal/adapters/embed/openai"
	"github.com/bnema/openclaw-memory/internal/adapters/hotcontext/markdown"
	sqliteindex "github.com/bnema/openclaw-memory/internal/adapters/index/sqlite"
	"github.com/bnema/openclaw-memory/internal/adapters/journal/jsonl"
	lockfile "github.com/bnema/openclaw-memory/internal/adapters/lock/file"
	notesfs "github.com/bnema/openclaw-memory/internal/adapters/notes/fs"
	chainsink "github.com/bnema/openclaw-memory/internal/adapters/notify/chain"
	commandsink "github.com/bnema/openclaw-memory/internal/adapters/notify/command"
	filesink "github.com/bnema/openclaw-memory/internal/adapters/notify/file"
	tomlrepo "github.com/bnema/openclaw-memory/internal/adapters/repo/toml"
	commandstatus "github.com/bnema/openclaw-memory/internal/adapters/status/command"
	httpstatus "github.com/bnema/openclaw-memory/internal/adapters/status/httpapi"
	"github.com/bnema/openclaw-memory/internal/adapters/tokens"
	"github.com/bnema/openclaw-memory/internal/application"
	"github.com/bnema/openclaw-memory/internal/config"
	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
	"github.com/spf13/viper"
)

var errNoStatusSource = errors.New("no context status source configured: set status.command or status.url")

// newTokenCounter is swapped in tests to keep tiktoken from fetching ranks.
var newTokenCounter = func() ports.TokenCounter { return tokens.Default() }

type rootOptions struct {
	workspace  string
	configFile string
	asJSON     bool
}

type app struct {
	settings   config.Settings
	logger     *slog.Logger
	clock      ports.Clock
	notes      *notesfs.Store
	hot        *markdown.Store
	runs       *jsonl.RunLog
	httpClient *http.Client

	indexStore   *sqliteindex.Store
	indexService *application.IndexService
}

func wireApp(opts *rootOptions, stderr io.Writer) (*app, error) {
	settings, err := config.Load(viper.New(), config.Options{
		Workspace:  opts.workspace,
		ConfigFile: opts.configFile,
	})
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := config.NewLogger(stderr, settings.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return &app{
		settings:   settings,
		logger:     logger,
		clock:      ports.SystemClock{},
		notes:      notesfs.NewStore(settings.MemoryDir),
		hot:        markdown.NewStore(settings.HotContextFile, settings.DetailLines),
		runs:       jsonl.NewRunLog(filepath.Join(settings.MemoryDir, jsonl.RunLogFile)),
		httpClient: http.DefaultClient,
	}, nil
}

func (a *app) Close() error {
	if a.indexStore == nil {
		return nil
	}
	err := a.indexStore.Close()
	a.indexStore = nil
	a.indexService = nil
	return err
}

func (a *app) consolidationService() *application.ConsolidationService {
	deps := application.ConsolidationDeps{
		Notes:      a.notes,
		HotContext: a.hot,
		Lock:       lockfile.NewLock(filepath.Join(a.settings.MemoryDir, lockfile.FileName), a.settings.MaxRun(), a.clock, a.logger),
		Runs:       a.runs,
		Clock:      a.clock,
		Logger:     a.logger,
		MaxRun:     a.settings.MaxRun(),
	}

	if a.settings.Index.OnConsolidate {
		deps.Sink = lazyIndexSink{app: a}
	}

	return application.NewConsolidationService(deps)
}

// lazyIndexSink opens the memory index on the first delivery. Busy and dry
// runs never deliver, so they never create the database.
type lazyIndexSink struct {
	app *app
}

var _ ports.EventSink = lazyIndexSink{}

func (s lazyIndexSink) Index(ctx context.Context, events []domain.Event) (domain.IndexReport, error) {
	index, err := s.app.index()
	if err != nil {
		return domain.IndexReport{}, fmt.Errorf("memory index unavailable: %w", err)
	}
	return index.Index(ctx, events)
}

func (a *app) monitorService() (*application.MonitorService, error) {
	provider, err := a.statusProvider()
	if err != nil {
		return nil, err
	}
	sink, err := a.notificationSink()
	if err != nil {
		return nil, err
	}

	cfg := viper.New()
	cfg.Set(tomlrepo.StateDirKey, a.settings.StateDir())
	states, err := tomlrepo.NewContextStateRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire context state repository: %w", err)
	}

	return application.NewMonitorService(application.MonitorDeps{
		Provider:   provider,
		Sink:       sink,
		States:     states,
		Audit:      a.auditLog(),
		Thresholds: a.settings.Thresholds(),
		Timeout:    a.settings.StatusTimeout(),
		Clock:      a.clock,
		Logger:     a.logger,
		NoteDir:    noteDirLabel(a.settings),
	})
}

func (a *app) auditLog() *jsonl.AuditLog {
	return jsonl.NewAuditLog(filepath.Join(a.settings.MemoryDir, jsonl.AuditLogFile))
}

// stateReader serves read-only state queries without requiring a status source.
func (a *app) stateReader() (*tomlrepo.ContextStateRepository, error) {
	cfg := viper.New()
	cfg.Set(tomlrepo.StateDirKey, a.settings.StateDir())
	return tomlrepo.NewContextStateRepository(cfg)
}

func (a *app) statusProvider() (ports.StatusProvider, error) {
	switch {
	case a.settings.Status.Command != "":
		provider, err := commandstatus.NewProvider(a.settings.Status.Command, a.settings.StatusTimeout(), a.clock)
		if err != nil {
			return nil, fmt.Errorf("wire status command: %w", err)
		}
		return provider, nil
	case a.settings.Status.URL != "":
		provider, err := httpstatus.NewProvider(a.settings.Status.URL, a.settings.Status.Token, a.httpClient, a.settings.StatusTimeout(), a.clock)
		if err != nil {
			return nil, fmt.Errorf("wire status api: %w", err)
		}
		return provider, nil
	default:
		return nil, errNoStatusSource
	}
}

// notificationSink always keeps the inbox file as the last resort so an
// escalation is never silently dropped.
func (a *app) notificationSink() (ports.NotificationSink, error) {
	inbox := filesink.NewSink(a.settings.InboxDir(), a.clock)
	if a.settings.Notify.Command == "" {
		return inbox, nil
	}

	command, err := commandsink.NewSink(a.settings.Notify.Command, a.settings.StatusTimeout())
	if err != nil {
		return nil, fmt.Errorf("wire notify command: %w", err)
	}
	sink, err := chainsink.NewSinkChecked(command, inbox)
	if err != nil {
		return nil, fmt.Errorf("wire notification chain: %w", err)
	}
	return sink, nil
}

func (a *app) index() (*application.IndexService, error) {
	if a.indexService != nil {
		return a.indexService, nil
	}

	embedder, err := a.embedder()
	if err != nil {
		return nil, err
	}

	store, err := sqliteindex.Open(filepath.Join(a.settings.MemoryDir, sqliteindex.FileName))
	if err != nil {
		return nil, fmt.Errorf("open memory index: %w", err)
	}

	service, err := application.NewIndexService(application.IndexDeps{
		Store:    store,
		Embedder: embedder,
		Notes:    a.notes,
		Tokens:   newTokenCounter(),
		Clock:    a.clock,
		Logger:   a.logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("wire memory index: %w", err)
	}

	a.indexStore = store
	a.indexService = service
	return service, nil
}

func (a *app) embedder() (ports.Embedder, error) {
	switch a.settings.Index.Backend {
	case config.BackendOpenAI:
		embedder, err := openaiembed.NewEmbedder(openaiembed.Config{
			APIKey:  a.settings.Index.APIKey,
			BaseURL: a.settings.Index.BaseURL,
			Model:   a.settings.Index.Model,
			Timeout: time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("wire openai embedder: %w", err)
		}
		return embedder, nil
	default:
		return hashing.NewEmbedder(a.settings.Index.Dimensions), nil
	}
}

func (a *app) indexIsRemote() bool {
	return a.settings.Index.Backend == config.BackendOpenAI
}

func noteDirLabel(settings config.Settings) string {
	rel, err := filepath.Rel(settings.WorkspaceRoot, settings.MemoryDir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return settings.MemoryDir
	}
	return filepath.ToSlash(rel)
}
