package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spots/internal/server"
	"github.com/desertthunder/spots/internal/services"
	"github.com/desertthunder/spots/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the invoke API until ctx is cancelled.
//
// While serving, signing in also opens the user's network endpoint on the bridge.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	addr := r.config.Server
	if host := cmd.String("host"); host != "" {
		addr.Host = host
	}
	if cmd.IsSet("port") {
		addr.Port = int(cmd.Int("port"))
	}

	if err := r.openServing(ctx); err != nil {
		return err
	}
	defer r.Close()

	logger := shared.WithLogger(r.logger, "component", "server")
	invoke := server.NewInvokeHandler(r.auth, r.library, logger)
	router := server.NewInvokeRouter(r.engine, r.auth, invoke, logger)

	r.writePlain("%s\n", r.styles.Title(fmt.Sprintf("Serving %d commands on http://%s", len(invoke.Commands()), addr.Address())))
	return server.NewServer(addr.Address(), router, logger).Run(ctx, nil)
}

// openServing opens the services with an endpoint observer bound to the bridge.
func (r *Runner) openServing(ctx context.Context) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	observer := services.NewEndpointObserver(r.bridge, shared.WithLogger(r.logger, "component", "endpoint"))
	r.auth.AddObserver(observer)
	if user, ok := r.auth.CurrentUser(); ok {
		return observer.SessionStarted(ctx, user)
	}
	return nil
}
