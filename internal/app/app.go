package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pairlink/internal/domain"
	"pairlink/internal/services/channel"
	"pairlink/internal/services/reconnect"
)

// App is one running channel: the session and the reconnector that heals it.
type App struct {
	Session     *channel.Session
	Reconnector *reconnect.Reconnector
	Store       domain.ChannelStore

	relayURL string
	log      *zap.Logger
}

// Run drives the session and the reconnector until ctx is done or either
// stops with an error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	go func() { errs <- a.Session.Run(ctx) }()
	go func() { errs <- a.Reconnector.Run(ctx) }()

	err := <-errs
	cancel()
	<-errs
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Restore rejoins the channel described by rec.
func (a *App) Restore(ctx context.Context, rec domain.ChannelRecord) error {
	role := domain.ParseRole(rec.Role)
	if role == domain.RoleUnset {
		return fmt.Errorf("channel %s: unknown role %q", rec.ChannelID, rec.Role)
	}
	return a.Session.RestoreChannel(ctx, rec.ChannelID, role)
}

// Persist saves the session's channel record under passphrase.
func (a *App) Persist(passphrase string) (domain.ChannelRecord, error) {
	rec := a.Session.Record()
	if rec.ChannelID == "" {
		return rec, domain.ErrNoChannel
	}
	rec.RelayURL = a.relayURL
	if err := a.Store.SaveChannel(passphrase, rec); err != nil {
		return rec, fmt.Errorf("save channel: %w", err)
	}
	a.log.Debug("channel saved", zap.String("channel", rec.ChannelID.String()))
	return rec, nil
}
