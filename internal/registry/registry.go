package registry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/repositories"
	"github.com/desertthunder/tunebox/internal/services"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/streams"
)

// Factory builds the backend of a stored remote provider.
type Factory func(record *models.ProviderRecord) (services.Service, error)

// Opts configures a [Registry].
type Opts struct {
	Store      *repositories.Store
	Paths      []string
	Client     shared.ClientConfig
	HTTPClient *http.Client
	Factory    Factory // nil builds Jellyfin and Subsonic backends with [RemoteFactory]
	Logger     *log.Logger
}

// Entry pairs a provider with its live backend.
type Entry struct {
	Provider models.Provider
	Service  services.Service
	record   *models.ProviderRecord
}

// snapshot is published as a whole; readers never see a partially rebuilt list.
type snapshot struct {
	entries []Entry
	active  models.ProviderIdentifier
}

// activeEntry resolves the active pointer, falling back to the first entry when it names a
// provider that is gone.
func (s snapshot) activeEntry() Entry {
	if e, ok := s.find(s.active); ok {
		return e
	}
	return s.entries[0]
}

func (s snapshot) find(id models.ProviderIdentifier) (Entry, bool) {
	for _, e := range s.entries {
		if e.Provider.Identifier() == id {
			return e, true
		}
	}
	return Entry{}, false
}

// route returns the only entry compatible with every uri.
func (s snapshot) route(uris []string) (Entry, bool) {
	if len(uris) == 0 {
		return Entry{}, false
	}
	var (
		match   Entry
		matches int
	)
	for _, e := range s.entries {
		if allCompatible(e.Service, uris) {
			match = e
			matches++
		}
	}
	return match, matches == 1
}

func allCompatible(svc services.Service, uris []string) bool {
	for _, uri := range uris {
		if !svc.IsCompatible(uri) {
			return false
		}
	}
	return true
}

// Registry holds the live providers and their backends and routes calls to them.
//
// The provider list is rebuilt from the store whenever its records change. A record that did not
// change keeps its backend; a changed or removed one has its backend closed after the new list is
// published. The local library is always the first provider.
type Registry struct {
	providers *repositories.ProviderRepository
	store     *repositories.Store
	build     Factory
	logger    *log.Logger

	mu    sync.Mutex // serializes rebuilds
	paths []string
	state *streams.State[snapshot]

	cancel context.CancelFunc
	done   chan struct{}
}

// LocalProvider is the always present local library provider.
var LocalProvider = models.Provider{
	Type:   models.LocalProviderID.Type,
	TypeID: models.LocalProviderID.TypeID,
	Name:   "Local library",
}

// New builds the registry from the stored providers and starts following store changes.
func New(opts Opts) (*Registry, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: registry needs a store", shared.ErrInvalidProvider)
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	build := opts.Factory
	if build == nil {
		build = RemoteFactory(opts.Client, opts.HTTPClient, logger)
	}

	r := &Registry{
		providers: opts.Store.Providers,
		store:     opts.Store,
		build:     build,
		logger:    shared.WithLogger(logger, "component", "registry"),
		paths:     slices.Clone(opts.Paths),
		done:      make(chan struct{}),
	}

	local, err := r.newLocal(r.paths)
	if err != nil {
		return nil, err
	}
	r.state = streams.NewState(snapshot{
		entries: []Entry{{Provider: LocalProvider, Service: local}},
		active:  models.LocalProviderID,
	})

	// subscribe before the first rebuild so no change between the two is missed
	changed, unsubscribe := r.providers.Changed().Subscribe()
	if err := r.Rebuild(); err != nil {
		unsubscribe()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go func() {
		defer close(r.done)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
				if err := r.Rebuild(); err != nil {
					r.logger.Error("failed to rebuild providers", "error", err)
				}
			}
		}
	}()
	return r, nil
}

// RemoteFactory builds Jellyfin and Subsonic backends sharing one client configuration.
func RemoteFactory(client shared.ClientConfig, httpClient *http.Client, logger *log.Logger) Factory {
	return func(record *models.ProviderRecord) (services.Service, error) {
		opts := services.RemoteOpts{
			ID:         record.Identifier(),
			Endpoint:   record.Endpoint(),
			Username:   record.Username(),
			Password:   record.Password(),
			LegacyAuth: record.LegacyAuth(),
			Client:     client,
			HTTPClient: httpClient,
			Logger:     logger,
		}
		switch record.Kind() {
		case models.ProviderTypeJellyfin:
			return services.NewJellyfinService(opts)
		case models.ProviderTypeSubsonic:
			return services.NewSubsonicService(opts)
		default:
			return nil, fmt.Errorf("%w: no remote backend for %s", shared.ErrInvalidProvider, record.Kind())
		}
	}
}

func (r *Registry) newLocal(paths []string) (services.Service, error) {
	return services.NewLocalService(services.LocalOpts{Store: r.store, Paths: paths, Logger: r.logger})
}

// Rebuild reads the stored providers and publishes a new provider list.
//
// A record that fails to build gets an [services.UnavailableService] so its URIs still route and
// fail with the build error.
func (r *Registry) Rebuild() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.providers.List(nil)
	if err != nil {
		return fmt.Errorf("failed to list providers: %w", err)
	}
	// type ids come from one sequence, so this is registration order
	slices.SortFunc(records, func(a, b *models.ProviderRecord) int { return cmp.Compare(a.TypeID(), b.TypeID()) })

	current := r.state.Load()
	stale := make(map[models.ProviderIdentifier]Entry, len(current.entries))
	for _, e := range current.entries[1:] {
		stale[e.Provider.Identifier()] = e
	}

	entries := []Entry{current.entries[0]}
	for _, record := range records {
		id := record.Identifier()
		if old, ok := stale[id]; ok && old.record.Same(record) {
			entries = append(entries, old)
			delete(stale, id)
			continue
		}

		svc, err := r.build(record)
		if err != nil {
			r.logger.Warn("provider unavailable", "provider", id, "error", err)
			svc = services.NewUnavailableService(id, record.Endpoint(), err)
		} else {
			r.logger.Debug("built provider", "provider", id, "endpoint", record.Endpoint())
		}
		entries = append(entries, Entry{Provider: record.Provider(), Service: svc, record: record})
	}

	r.state.Update(func(s snapshot) snapshot {
		return snapshot{entries: entries, active: s.active}
	})

	for id, e := range stale {
		r.logger.Debug("closing provider", "provider", id)
		if err := e.Service.Close(); err != nil {
			r.logger.Warn("failed to close provider", "provider", id, "error", err)
		}
	}
	return nil
}

// SetLibraryPaths replaces the local backend with one serving paths.
func (r *Registry) SetLibraryPaths(paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	local, err := r.newLocal(paths)
	if err != nil {
		return err
	}
	r.paths = slices.Clone(paths)
	r.state.Update(func(s snapshot) snapshot {
		entries := slices.Clone(s.entries)
		entries[0] = Entry{Provider: LocalProvider, Service: local}
		return snapshot{entries: entries, active: s.active}
	})
	return nil
}

// SetActiveProvider points bulk listings at id. An unknown id is accepted; listings then use
// the first provider until a provider with that id appears.
func (r *Registry) SetActiveProvider(id models.ProviderIdentifier) {
	r.state.Update(func(s snapshot) snapshot {
		return snapshot{entries: s.entries, active: id}
	})
}

// ActiveProvider returns the provider bulk listings currently go to.
func (r *Registry) ActiveProvider() models.Provider {
	return r.state.Load().activeEntry().Provider
}

// List returns the live providers in registration order.
func (r *Registry) List() []models.Provider {
	return providersOf(r.state.Load())
}

// Providers emits the live providers now and after every change to the list.
func (r *Registry) Providers(ctx context.Context) <-chan []models.Provider {
	return streams.Distinct(ctx,
		streams.Map(ctx, r.state.Watch(ctx), providersOf),
		slices.Equal[[]models.Provider],
	)
}

func providersOf(s snapshot) []models.Provider {
	out := make([]models.Provider, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Provider)
	}
	return out
}

// Provider returns the entry of id.
func (r *Registry) Provider(id models.ProviderIdentifier) (Entry, error) {
	e, ok := r.state.Load().find(id)
	if !ok {
		return Entry{}, fmt.Errorf("%w: provider %s", shared.ErrNotFound, id)
	}
	return e, nil
}

// ProviderOf returns the provider owning uri.
func (r *Registry) ProviderOf(uri string) (models.Provider, error) {
	e, ok := r.state.Load().route([]string{uri})
	if !ok {
		return models.Provider{}, fmt.Errorf("%w: no provider handles %s", shared.ErrNotFound, uri)
	}
	return e.Provider, nil
}

// Record returns the stored record of a remote provider.
func (r *Registry) Record(id models.ProviderIdentifier) (*models.ProviderRecord, error) {
	if !id.Type.Remote() {
		return nil, fmt.Errorf("%w: provider %s has no stored record", shared.ErrInvalidProvider, id)
	}
	return r.providers.GetByIdentifier(id)
}

// AddProvider stores a new remote provider and returns it once its backend is live.
func (r *Registry) AddProvider(record *models.ProviderRecord) (models.Provider, error) {
	if err := r.providers.Create(record); err != nil {
		return models.Provider{}, err
	}
	if err := r.Rebuild(); err != nil {
		return models.Provider{}, err
	}
	r.logger.Info("added provider", "provider", record.Identifier(), "name", record.Name())
	return record.Provider(), nil
}

// UpdateProvider stores changes to a remote provider. Its backend is replaced.
func (r *Registry) UpdateProvider(record *models.ProviderRecord) error {
	if err := r.providers.Update(record); err != nil {
		return err
	}
	return r.Rebuild()
}

// DeleteProvider removes a remote provider and closes its backend.
func (r *Registry) DeleteProvider(id models.ProviderIdentifier) error {
	if !id.Type.Remote() {
		return fmt.Errorf("%w: the local library cannot be removed", shared.ErrInvalidProvider)
	}
	if err := r.providers.Delete(id.String()); err != nil {
		return err
	}
	if err := r.Rebuild(); err != nil {
		return err
	}
	r.logger.Info("deleted provider", "provider", id)
	return nil
}

// Close stops following the store and closes every backend.
func (r *Registry) Close() error {
	r.cancel()
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, e := range r.state.Load().entries {
		if err := e.Service.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Provider.Identifier(), err))
		}
	}
	return errors.Join(errs...)
}
