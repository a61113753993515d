package main

import (
	"context"
	"errors"

	"github.com/desertthunder/tunebox/internal/server"
	"github.com/desertthunder/tunebox/internal/tasks"
	"github.com/urfave/cli/v3"
)

// listenAddr applies --host and --port over the server config.
func (r *Runner) listenAddr(cmd *cli.Command) string {
	conf := r.config.Server
	if cmd.IsSet("host") {
		conf.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		conf.Port = int(cmd.Int("port"))
	}
	return conf.Addr()
}

// Serve runs the JSON API until interrupted. With --watch or library.watch the library is
// watched alongside it.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	api, err := server.NewAPI(server.APIOpts{
		Registry: r.registry,
		Settings: r.store.Settings,
		Logger:   r.logger,
	})
	if err != nil {
		return err
	}
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	router.Handler(api)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watched := make(chan error, 1)
	if cmd.Bool("watch") || r.config.Library.Watch {
		scanner, err := r.scanner(r.config.Library.Paths)
		if err != nil {
			return err
		}
		go func() {
			err := r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
				return scanner.Watch(ctx, progress)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("library watch stopped", "error", err)
			}
			watched <- err
		}()
	} else {
		close(watched)
	}

	err = server.New(r.listenAddr(cmd), router, r.logger).Run(ctx)
	cancel()
	<-watched
	return err
}
