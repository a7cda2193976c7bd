package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spots/internal/shared"
	"github.com/urfave/cli/v3"
)

// credentials reads --username and --password; the password may come from SPOTS_PASSWORD.
func credentials(cmd *cli.Command) (string, string, error) {
	username, password := cmd.String("username"), cmd.String("password")
	if password == "" {
		return "", "", fmt.Errorf("%w: --password or SPOTS_PASSWORD is required", shared.ErrMissingArgument)
	}
	return username, password, nil
}

// UserAdd creates an account. It does not sign in.
func (r *Runner) UserAdd(ctx context.Context, cmd *cli.Command) error {
	username, password, err := credentials(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	user, err := r.auth.SignUp(ctx, username, password)
	if err != nil {
		return err
	}
	return r.writeOK("Created user %s (%s)", user.Username, user.ID)
}

// AuthLogin signs in and persists the session in the store.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	username, password, err := credentials(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	user, err := r.auth.Authenticate(ctx, username, password)
	if err != nil {
		return err
	}
	return r.writeOK("Signed in as %s", user.Username)
}

// AuthLogout ends the persisted session, if any.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	user, ok := r.auth.CurrentUser()
	if err := r.auth.Unauthenticate(ctx); err != nil {
		return err
	}
	if !ok {
		return r.writeWarn("Not signed in")
	}
	return r.writeOK("Signed out %s", user.Username)
}

// AuthStatus reports the signed in user and whether the store is ready.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	defer r.Close()

	state := r.auth.State()
	if cmd.Bool("json") {
		view := map[string]any{
			"database":      r.engine.State(),
			"isReady":       state.IsReady,
			"authenticated": state.AuthenticatedUser != nil,
		}
		if u := state.AuthenticatedUser; u != nil {
			view["user"] = map[string]string{"id": u.ID, "username": u.Username}
		}
		return r.writeJSON(view, true)
	}

	db := r.engine.State()
	r.writePlainHeader("Session")
	r.writePlain("  store:  %s (schema %d, ready: %t)\n", db.Name, db.SchemaVersion, db.IsReady)
	if u := state.AuthenticatedUser; u != nil {
		return r.writePlain("  user:   %s (%s)\n", u.Username, u.ID)
	}
	return r.writePlain("  user:   %s\n", r.styles.Help("not signed in"))
}
