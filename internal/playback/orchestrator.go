// Package playback reacts to voice-join events: it decides whether a
// joinsound should play, drives the voice session and guarantees the session
// is torn down after exactly one track.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smallwoj/join-sound-johnson/internal/registry"
)

// Cooldown is the minimum interval between two playbacks attributable to
// the same user, across all of their scopes.
const Cooldown = 30 * time.Second

// ErrNoVoiceChannel reports that the joining user's channel could not be
// determined, so no connection was attempted.
var ErrNoVoiceChannel = errors.New("could not find voice channel")

// JoinEvent is the edge-triggered signal that a user just entered a voice
// channel (as opposed to moving between channels or leaving).
type JoinEvent struct {
	UserID    string
	GuildID   string
	ChannelID string
}

// VoiceSession is the voice backend the orchestrator drives. Implementations
// must be safe for concurrent use across guilds.
type VoiceSession interface {
	IsConnected(guildID string) bool
	Join(ctx context.Context, guildID, channelID string) error
	// PlayOnce plays the local audio file as a one-shot track. onDone fires
	// exactly once when the track finishes, errors or is superseded.
	PlayOnce(ctx context.Context, guildID, file string, onDone func()) error
	Leave(ctx context.Context, guildID string) error
}

// Resolver is the registry surface the orchestrator needs.
type Resolver interface {
	HasSound(ctx context.Context, s registry.Scope) (bool, error)
	Resolve(ctx context.Context, userID, guildID string) (string, registry.Scope, error)
	LastPlayed(ctx context.Context, userID, guildID string) (*time.Time, error)
	RecordPlay(ctx context.Context, s registry.Scope) error
}

// Localizer is the blob store surface the orchestrator needs.
type Localizer interface {
	ResolveLocal(ctx context.Context, path string) (string, error)
}

type Orchestrator struct {
	reg   Resolver
	store Localizer
	voice VoiceSession
	log   zerolog.Logger
	now   func() time.Time

	mu     sync.Mutex
	guilds map[string]*sync.Mutex
}

func New(reg Resolver, store Localizer, voice VoiceSession, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		reg:    reg,
		store:  store,
		voice:  voice,
		log:    log.With().Str("component", "playback").Logger(),
		now:    time.Now,
		guilds: make(map[string]*sync.Mutex),
	}
}

// guildLock returns the mutex serializing connect/play decisions for one
// guild. Distinct guilds proceed fully in parallel.
func (o *Orchestrator) guildLock(guildID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.guilds[guildID]
	if !ok {
		l = &sync.Mutex{}
		o.guilds[guildID] = l
	}
	return l
}

// HandleJoin runs the full decision pipeline for one voice-join event.
func (o *Orchestrator) HandleJoin(ctx context.Context, ev JoinEvent) error {
	if ev.GuildID == "" {
		return nil
	}

	log := o.log.With().Str("user", ev.UserID).Str("guild", ev.GuildID).Logger()

	eligible, err := o.eligible(ctx, ev)
	if err != nil {
		return err
	}
	if !eligible {
		return nil
	}

	last, err := o.reg.LastPlayed(ctx, ev.UserID, ev.GuildID)
	if err != nil {
		return err
	}
	if last != nil && o.now().Sub(*last) < Cooldown {
		log.Warn().Time("last_played", *last).Msg("too soon to play sound")
		return nil
	}

	lock := o.guildLock(ev.GuildID)
	lock.Lock()
	defer lock.Unlock()

	if !o.voice.IsConnected(ev.GuildID) {
		if ev.ChannelID == "" {
			log.Error().Msg("could not find voice channel")
			return nil
		}
		if err := o.voice.Join(ctx, ev.GuildID, ev.ChannelID); err != nil {
			return err
		}
	}

	// A connection now exists; every failure below must still tear it down
	// so no idle session is left behind.
	if err := o.play(ctx, ev); err != nil {
		log.Error().Err(err).Msg("playback failed, leaving voice channel")
		o.leave(ev.GuildID)
		return err
	}
	return nil
}

func (o *Orchestrator) eligible(ctx context.Context, ev JoinEvent) (bool, error) {
	local, err := o.reg.HasSound(ctx, registry.Scope{UserID: ev.UserID, GuildID: ev.GuildID})
	if err != nil {
		return false, err
	}
	if local {
		return true, nil
	}
	return o.reg.HasSound(ctx, registry.Scope{UserID: ev.UserID})
}

func (o *Orchestrator) play(ctx context.Context, ev JoinEvent) error {
	path, scope, err := o.reg.Resolve(ctx, ev.UserID, ev.GuildID)
	if err != nil {
		return err
	}

	if err := o.reg.RecordPlay(ctx, scope); err != nil {
		// Not fatal; the sound still plays without the cooldown stamp.
		o.log.Error().Err(err).Str("user", ev.UserID).Msg("failed to record play")
	}

	file, err := o.store.ResolveLocal(ctx, path)
	if err != nil {
		return err
	}

	guildID := ev.GuildID
	return o.voice.PlayOnce(ctx, guildID, file, func() {
		o.leave(guildID)
	})
}

func (o *Orchestrator) leave(guildID string) {
	if err := o.voice.Leave(context.Background(), guildID); err != nil {
		o.log.Error().Err(err).Str("guild", guildID).Msg("error leaving voice channel")
	}
}
