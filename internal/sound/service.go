// Package sound is the boundary the command surface calls for the
// upload/update/remove lifecycle of a user's joinsounds.
package sound

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/smallwoj/join-sound-johnson/internal/blobstore"
	"github.com/smallwoj/join-sound-johnson/internal/ingest"
	"github.com/smallwoj/join-sound-johnson/internal/registry"
)

// ErrNoSoundToRemove reports a removal against a scope with no sound.
var ErrNoSoundToRemove = errors.New("no sound to remove")

// Ingester is the attachment pipeline surface the service drives.
type Ingester interface {
	Ingest(ctx context.Context, att ingest.Attachment, userID, guildID string) (string, error)
}

// Registry is the subset of the sound registry the service needs.
type Registry interface {
	Path(ctx context.Context, s registry.Scope) (string, error)
	CreateOrReplace(ctx context.Context, s registry.Scope, path string) error
	Delete(ctx context.Context, s registry.Scope) error
	List(ctx context.Context, userID string) ([]registry.Sound, error)
	DeleteAll(ctx context.Context, userID string) error
}

// Deleter is the blob store surface the service needs.
type Deleter interface {
	Delete(ctx context.Context, path string) error
}

type Service struct {
	reg   Registry
	store Deleter
	pipe  Ingester
	log   zerolog.Logger
}

func New(reg Registry, store Deleter, pipe Ingester, log zerolog.Logger) *Service {
	return &Service{
		reg:   reg,
		store: store,
		pipe:  pipe,
		log:   log.With().Str("component", "sound").Logger(),
	}
}

// Set ingests the attachment and points the scope's registry row at it.
// On update the previous blob is deleted only after the new one is safely
// committed, so there is never a window with no playable sound. Blob
// cleanup failures are logged, never fatal.
func (s *Service) Set(ctx context.Context, att ingest.Attachment, userID, guildID string) error {
	scope := registry.Scope{UserID: userID, GuildID: guildID}

	oldPath, err := s.reg.Path(ctx, scope)
	if err != nil && !errors.Is(err, registry.ErrNoSound) {
		return err
	}

	newPath, err := s.pipe.Ingest(ctx, att, userID, guildID)
	if err != nil {
		return err
	}

	if err := s.reg.CreateOrReplace(ctx, scope, newPath); err != nil {
		return err
	}

	if oldPath != "" && oldPath != newPath {
		if err := s.store.Delete(ctx, oldPath); err != nil {
			s.log.Error().Err(err).Str("path", oldPath).Msg("failed to delete replaced sound")
		}
	}

	s.log.Info().Str("user", userID).Str("guild", guildID).Str("path", newPath).Msg("sound set")
	return nil
}

// Remove deletes the scope's sound: blob first, then the row. A blob
// deletion failure is reported but never blocks the row removal.
func (s *Service) Remove(ctx context.Context, userID, guildID string) error {
	scope := registry.Scope{UserID: userID, GuildID: guildID}

	path, err := s.reg.Path(ctx, scope)
	if errors.Is(err, registry.ErrNoSound) {
		return ErrNoSoundToRemove
	}
	if err != nil {
		return err
	}

	var cleanupErr error
	if err := s.store.Delete(ctx, path); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		s.log.Error().Err(err).Str("path", path).Msg("failed to delete sound blob")
		cleanupErr = err
	}

	if err := s.reg.Delete(ctx, scope); err != nil {
		if errors.Is(err, registry.ErrNoSound) {
			return ErrNoSoundToRemove
		}
		return err
	}

	s.log.Info().Str("user", userID).Str("guild", guildID).Msg("sound removed")
	if cleanupErr != nil {
		return fmt.Errorf("sound removed but blob cleanup failed: %w", cleanupErr)
	}
	return nil
}

// RemoveAll purges every sound the user has, across all scopes.
func (s *Service) RemoveAll(ctx context.Context, userID string) error {
	sounds, err := s.reg.List(ctx, userID)
	if err != nil {
		return err
	}
	if len(sounds) == 0 {
		return ErrNoSoundToRemove
	}

	var cleanupErr error
	for _, sd := range sounds {
		if sd.FilePath == "" {
			continue
		}
		if err := s.store.Delete(ctx, sd.FilePath); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			s.log.Error().Err(err).Str("path", sd.FilePath).Msg("failed to delete sound blob")
			cleanupErr = err
		}
	}

	if err := s.reg.DeleteAll(ctx, userID); err != nil {
		return err
	}

	s.log.Info().Str("user", userID).Int("count", len(sounds)).Msg("all sounds removed")
	if cleanupErr != nil {
		return fmt.Errorf("sounds removed but blob cleanup failed: %w", cleanupErr)
	}
	return nil
}
