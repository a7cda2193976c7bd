package services

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spots/internal/models"
	"github.com/desertthunder/spots/internal/shared"
)

// EndpointObserver ties a user's network endpoint to their session.
type EndpointObserver struct {
	endpoints EndpointManager
	logger    *log.Logger
}

// NewEndpointObserver returns an observer driving endpoints.
func NewEndpointObserver(endpoints EndpointManager, logger *log.Logger) *EndpointObserver {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &EndpointObserver{endpoints: endpoints, logger: logger}
}

// SessionStarted loads the user's endpoint.
func (o *EndpointObserver) SessionStarted(ctx context.Context, user *models.User) error {
	if err := o.endpoints.LoadNetworkEndpoint(ctx, user.ID); err != nil {
		return err
	}
	if addr, ok, err := o.endpoints.GetEndpointAddress(ctx, user.ID); err == nil && ok {
		o.logger.Info("endpoint ready", "user", user.Username, "addr", addr)
	}
	return nil
}

// SessionEnded closes the active endpoint.
func (o *EndpointObserver) SessionEnded(ctx context.Context, user *models.User) error {
	return o.endpoints.CloseNetworkEndpoint(ctx)
}
