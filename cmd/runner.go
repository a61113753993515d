package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebox/internal/formatter"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/registry"
	"github.com/desertthunder/tunebox/internal/repositories"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/tasks"
	"github.com/desertthunder/tunebox/internal/ui"
	"github.com/urfave/cli/v3"
)

// deviceIDKey holds the client device id generated on first use when the config leaves it empty.
const deviceIDKey = "device_id"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The store and registry are opened on first use, so commands that only touch the config run
// without a database.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	factory    registry.Factory

	store    *repositories.Store
	registry *registry.Registry
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Factory    registry.Factory // nil builds the remote backends
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		factory:    opts.Factory,
	}
}

// Init loads the configuration and sets the log level. It runs before every command.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.IsSet("config") {
		r.configPath = cmd.String("config")
		r.config = nil
	}
	if r.config == nil {
		config, err := shared.LoadOrDefault(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	}
	if err := r.config.Validate(); err != nil {
		return ctx, err
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// Close releases the registry and the database.
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	var errs []error
	if r.registry != nil {
		errs = append(errs, r.registry.Close())
		r.registry = nil
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
		r.store = nil
	}
	return errors.Join(errs...)
}

// open connects the store and builds the registry, restoring the active provider.
func (r *Runner) open() error {
	if r.registry != nil {
		return nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrDatabaseNotFound, err)
	}
	store := repositories.NewStore(db)

	client := r.config.Client
	if client.DeviceID == "" {
		if client.DeviceID, err = r.deviceID(store); err != nil {
			store.Close()
			return err
		}
	}

	reg, err := registry.New(registry.Opts{
		Store:      store,
		Paths:      r.config.Library.Paths,
		Client:     client,
		HTTPClient: r.httpClient,
		Factory:    r.factory,
		Logger:     r.logger,
	})
	if err != nil {
		store.Close()
		return err
	}

	if stored, ok, err := store.Settings.Get(repositories.ActiveProviderKey); err != nil {
		r.logger.Warn("failed to read active provider", "error", err)
	} else if ok {
		reg.SetActiveProvider(models.ParseProviderIdentifier(stored))
	}

	r.store, r.registry = store, reg
	return nil
}

// deviceID returns the stored device id, generating one on first use.
func (r *Runner) deviceID(store *repositories.Store) (string, error) {
	id, ok, err := store.Settings.Get(deviceIDKey)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	id = shared.GenerateID()
	if err := store.Settings.Set(deviceIDKey, id); err != nil {
		return "", err
	}
	r.logger.Debug("generated device id", "device_id", id)
	return id, nil
}

// format returns the output format selected with --format.
func (r *Runner) format(cmd *cli.Command) (formatter.Format, error) {
	return formatter.ParseFormat(cmd.String("format"))
}

// write renders v in the selected output format.
func (r *Runner) write(cmd *cli.Command, v any) error {
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	return formatter.Write(r.output, f, v)
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain(format+"\n", args...)
}

// report prints progress updates until progress is closed, then closes done.
func (r *Runner) report(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for update := range progress {
		switch update.Phase {
		case tasks.ScanLibrary, tasks.WatchLibrary, tasks.ParsePlaylist, tasks.CreatePlaylist:
			r.writePlainln("%s", ui.Title("%s", update.Message))
		case tasks.ScanComplete:
			r.writePlainln("%s", ui.OK("%s", update.Message))
		default:
			r.logger.Debug(update.Message, "phase", update.Phase, "step", update.Step)
		}
	}
}

// withProgress runs fn with a progress channel that is reported to the output.
func (r *Runner) withProgress(fn func(chan<- tasks.ProgressUpdate) error) error {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go r.report(progress, done)

	err := fn(progress)
	close(progress)
	<-done
	return err
}

// App builds the root command.
func (r *Runner) App() *cli.Command {
	return &cli.Command{
		Name:     "tunebox",
		Usage:    "Browse and manage music across your local library, Jellyfin and Subsonic servers",
		Version:  version,
		Flags:    rootFlags(),
		Before:   r.Init,
		After:    r.Close,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, migrateCommand, providersCommand,
		albumsCommand, artistsCommand, genresCommand, playlistsCommand,
		activityCommand, searchCommand, showCommand, statusCommand,
		audioCommand, playlistCommand, scanCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}
