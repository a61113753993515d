package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tunebox/internal/formatter"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/repositories"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/ui"
	"github.com/urfave/cli/v3"
)

// providerArg parses a "type/id" argument and checks the provider exists.
func (r *Runner) providerArg(s string) (models.ProviderIdentifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.ProviderIdentifier{}, fmt.Errorf("%w: provider", shared.ErrMissingArgument)
	}

	id := models.ParseProviderIdentifier(s)
	if id == models.LocalProviderID && !strings.HasPrefix(strings.ToLower(s), "local") {
		return id, fmt.Errorf("%w: provider %q, expected type/id like jellyfin/1", shared.ErrInvalidArgument, s)
	}
	if _, err := r.registry.Provider(id); err != nil {
		return id, err
	}
	return id, nil
}

// providerOrActive reads the --provider flag, defaulting to the active provider.
func (r *Runner) providerOrActive(cmd *cli.Command) (models.ProviderIdentifier, error) {
	if s := cmd.String("provider"); s != "" {
		return r.providerArg(s)
	}
	return r.registry.ActiveProvider().Identifier(), nil
}

// ListProviders prints the live providers and marks the active one.
func (r *Runner) ListProviders(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	providers := r.registry.List()
	f, err := r.format(cmd)
	if err != nil {
		return err
	}
	if err := formatter.Write(r.output, f, providers); err != nil {
		return err
	}
	if f == formatter.FormatText {
		active := r.registry.ActiveProvider()
		r.writePlainln("%s", ui.Help("active: %s (%s)", active.Name, active.Identifier()))
	}
	return nil
}

// AddProvider stores a remote server and starts its backend.
func (r *Runner) AddProvider(ctx context.Context, cmd *cli.Command) error {
	kindArg, name, endpoint := cmd.StringArg("type"), cmd.StringArg("name"), cmd.StringArg("endpoint")
	if kindArg == "" || name == "" || endpoint == "" {
		return fmt.Errorf("%w: type, name and endpoint are required", shared.ErrMissingArgument)
	}

	kind, err := models.ParseProviderType(kindArg)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	if err := r.open(); err != nil {
		return err
	}

	record := models.NewProviderRecord(kind, name, endpoint, cmd.String("username"), cmd.String("password"))
	record.SetLegacyAuth(cmd.Bool("legacy-auth"))

	provider, err := r.registry.AddProvider(record)
	if err != nil {
		return err
	}
	r.logger.Info("provider added", "provider", provider.Identifier(), "endpoint", record.Endpoint())
	r.writePlainln("%s", ui.OK("added %s as %s", provider.Name, provider.Identifier()))
	return nil
}

// EditProvider changes the flags given for a stored provider and rebuilds its backend.
func (r *Runner) EditProvider(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	id, err := r.providerArg(cmd.StringArg("provider"))
	if err != nil {
		return err
	}

	record, err := r.registry.Record(id)
	if err != nil {
		return err
	}

	changed := false
	for flag, set := range map[string]func(string){
		"name":     record.SetName,
		"endpoint": record.SetEndpoint,
		"username": record.SetUsername,
		"password": record.SetPassword,
	} {
		if cmd.IsSet(flag) {
			set(cmd.String(flag))
			changed = true
		}
	}
	if cmd.IsSet("legacy-auth") {
		record.SetLegacyAuth(cmd.Bool("legacy-auth"))
		changed = true
	}
	if !changed {
		return fmt.Errorf("%w: nothing to change, pass --name, --endpoint, --username, --password or --legacy-auth", shared.ErrMissingArgument)
	}

	record.SetUpdatedAt(time.Now())
	if err := r.registry.UpdateProvider(record); err != nil {
		return err
	}
	r.writePlainln("%s", ui.OK("updated %s", id))
	return nil
}

// RemoveProvider deletes a stored provider. The active pointer is cleared when it named it.
func (r *Runner) RemoveProvider(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	id, err := r.providerArg(cmd.StringArg("provider"))
	if err != nil {
		return err
	}

	if err := r.registry.DeleteProvider(id); err != nil {
		return err
	}
	if stored, ok, err := r.store.Settings.Get(repositories.ActiveProviderKey); err == nil && ok &&
		models.ParseProviderIdentifier(stored) == id {
		if err := r.store.Settings.Delete(repositories.ActiveProviderKey); err != nil {
			r.logger.Warn("failed to clear active provider", "error", err)
		}
	}
	r.writePlainln("%s", ui.OK("removed %s", id))
	return nil
}

// UseProvider makes a provider the target of listings and remembers it.
func (r *Runner) UseProvider(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	id, err := r.providerArg(cmd.StringArg("provider"))
	if err != nil {
		return err
	}

	r.registry.SetActiveProvider(id)
	if err := r.store.Settings.Set(repositories.ActiveProviderKey, id.String()); err != nil {
		return fmt.Errorf("failed to save active provider: %w", err)
	}
	active := r.registry.ActiveProvider()
	r.writePlainln("%s", ui.OK("now using %s (%s)", active.Name, id))
	return nil
}
