// Package registry is the persistent mapping from (user, optional guild) to
// a stored sound path and its last-play timestamp.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// ErrNoSound reports that no playable sound exists for the requested scope.
var ErrNoSound = errors.New("no joinsound entry")

// Scope identifies one of a user's sound slots. An empty GuildID addresses
// the user's global sound.
type Scope struct {
	UserID  string
	GuildID string
}

func (s Scope) Global() bool {
	return s.GuildID == ""
}

// Sound is one registry row as seen by callers.
type Sound struct {
	Scope    Scope
	FilePath string
}

// Querier is the subset of pgxpool.Pool the registry needs.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Registry struct {
	db  Querier
	log zerolog.Logger
	now func() time.Time
}

func New(db Querier, log zerolog.Logger) *Registry {
	return &Registry{
		db:  db,
		log: log.With().Str("component", "registry").Logger(),
		now: time.Now,
	}
}

// EnsureSchema creates the joinsounds table if it does not exist.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createJoinsoundsTable); err != nil {
		return fmt.Errorf("failed to create joinsounds table: %w", err)
	}
	return nil
}

// HasSound reports whether a playable sound exists for exactly this scope.
func (r *Registry) HasSound(ctx context.Context, s Scope) (bool, error) {
	var exists bool
	var err error
	if s.Global() {
		err = r.db.QueryRow(ctx, selectHasGlobal, s.UserID).Scan(&exists)
	} else {
		err = r.db.QueryRow(ctx, selectHasLocal, s.UserID, s.GuildID).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check sound for %s: %w", s.UserID, err)
	}
	return exists, nil
}

// HasAnySound reports whether the user has a playable sound in any scope.
func (r *Registry) HasAnySound(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, selectHasAny, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check sounds for %s: %w", userID, err)
	}
	return exists, nil
}

// Path returns the stored path for exactly this scope. A missing row and a
// row with a null path both yield ErrNoSound.
func (r *Registry) Path(ctx context.Context, s Scope) (string, error) {
	var path *string
	var err error
	if s.Global() {
		err = r.db.QueryRow(ctx, selectPathGlobal, s.UserID).Scan(&path)
	} else {
		err = r.db.QueryRow(ctx, selectPathLocal, s.UserID, s.GuildID).Scan(&path)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoSound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load sound path for %s: %w", s.UserID, err)
	}
	if path == nil {
		return "", ErrNoSound
	}
	return *path, nil
}

// Resolve returns the path that should play for the user entering the given
// guild, along with the scope that supplied it. The guild-local row always
// wins over the global row.
func (r *Registry) Resolve(ctx context.Context, userID, guildID string) (string, Scope, error) {
	if guildID != "" {
		local := Scope{UserID: userID, GuildID: guildID}
		path, err := r.Path(ctx, local)
		if err == nil {
			return path, local, nil
		}
		if !errors.Is(err, ErrNoSound) {
			return "", Scope{}, err
		}
	}

	global := Scope{UserID: userID}
	path, err := r.Path(ctx, global)
	if err != nil {
		return "", Scope{}, err
	}
	return path, global, nil
}

// LastPlayed returns the effective last-play instant for cooldown purposes:
// the later of the local and global rows' timestamps.
func (r *Registry) LastPlayed(ctx context.Context, userID, guildID string) (*time.Time, error) {
	var local *time.Time
	if guildID != "" {
		t, err := r.lastPlayedRow(ctx, selectLastPlayedLocal, userID, guildID)
		if err != nil {
			return nil, err
		}
		local = t
	}

	global, err := r.lastPlayedRow(ctx, selectLastPlayedGlobal, userID)
	if err != nil {
		return nil, err
	}

	return LaterOf(local, global), nil
}

func (r *Registry) lastPlayedRow(ctx context.Context, query string, args ...any) (*time.Time, error) {
	var t *time.Time
	err := r.db.QueryRow(ctx, query, args...).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last played: %w", err)
	}
	return t, nil
}

// RecordPlay stamps the row addressed by the scope with the current time.
func (r *Registry) RecordPlay(ctx context.Context, s Scope) error {
	now := r.now().UTC()
	var err error
	if s.Global() {
		_, err = r.db.Exec(ctx, updateLastPlayedGlobal, s.UserID, now)
	} else {
		_, err = r.db.Exec(ctx, updateLastPlayedLocal, s.UserID, s.GuildID, now)
	}
	if err != nil {
		return fmt.Errorf("failed to record play for %s: %w", s.UserID, err)
	}
	r.log.Debug().Str("user", s.UserID).Str("guild", s.GuildID).Time("at", now).Msg("recorded play")
	return nil
}

// CreateOrReplace upserts the row for this scope to point at path.
func (r *Registry) CreateOrReplace(ctx context.Context, s Scope, path string) error {
	var tag pgconn.CommandTag
	var err error
	if s.Global() {
		tag, err = r.db.Exec(ctx, updatePathGlobal, s.UserID, path)
	} else {
		tag, err = r.db.Exec(ctx, updatePathLocal, s.UserID, s.GuildID, path)
	}
	if err != nil {
		return fmt.Errorf("failed to update sound for %s: %w", s.UserID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var guild *string
	if !s.Global() {
		guild = &s.GuildID
	}
	if _, err := r.db.Exec(ctx, insertJoinsound, s.UserID, guild, path); err != nil {
		return fmt.Errorf("failed to insert sound for %s: %w", s.UserID, err)
	}
	return nil
}

// Delete removes the row for exactly this scope. The caller is responsible
// for the backing blob.
func (r *Registry) Delete(ctx context.Context, s Scope) error {
	var tag pgconn.CommandTag
	var err error
	if s.Global() {
		tag, err = r.db.Exec(ctx, deleteGlobal, s.UserID)
	} else {
		tag, err = r.db.Exec(ctx, deleteLocal, s.UserID, s.GuildID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete sound for %s: %w", s.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoSound
	}
	return nil
}

// List returns every row the user has, including rows with no media.
func (r *Registry) List(ctx context.Context, userID string) ([]Sound, error) {
	rows, err := r.db.Query(ctx, selectAllForUser, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sounds for %s: %w", userID, err)
	}
	defer rows.Close()

	var sounds []Sound
	for rows.Next() {
		var guild, path *string
		if err := rows.Scan(&guild, &path); err != nil {
			return nil, fmt.Errorf("failed to scan sound row: %w", err)
		}
		s := Sound{Scope: Scope{UserID: userID}}
		if guild != nil {
			s.Scope.GuildID = *guild
		}
		if path != nil {
			s.FilePath = *path
		}
		sounds = append(sounds, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sounds for %s: %w", userID, err)
	}
	return sounds, nil
}

// DeleteAll removes every row the user has.
func (r *Registry) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, deleteAllForUser, userID); err != nil {
		return fmt.Errorf("failed to delete sounds for %s: %w", userID, err)
	}
	return nil
}
