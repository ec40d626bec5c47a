package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// ErrNotConnected reports a play request for a guild with no voice session.
var ErrNotConnected = errors.New("no voice connection for guild")

// VoiceManager implements playback.VoiceSession on top of discordgo voice
// connections: one session per guild, one active track per session.
type VoiceManager struct {
	dg  *discordgo.Session
	log zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*voiceSession
}

type voiceSession struct {
	vc    *discordgo.VoiceConnection
	track *track
}

type track struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (t *track) signalStop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func NewVoiceManager(dg *discordgo.Session, log zerolog.Logger) *VoiceManager {
	return &VoiceManager{
		dg:       dg,
		log:      log.With().Str("component", "voice").Logger(),
		sessions: make(map[string]*voiceSession),
	}
}

func (m *VoiceManager) IsConnected(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[guildID] != nil
}

// Join connects to the voice channel unless a session already exists for
// the guild.
func (m *VoiceManager) Join(_ context.Context, guildID, channelID string) error {
	m.mu.Lock()
	if m.sessions[guildID] != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	vc, err := m.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	m.mu.Lock()
	m.sessions[guildID] = &voiceSession{vc: vc}
	m.mu.Unlock()

	m.log.Info().Str("guild", guildID).Str("channel", channelID).Msg("joined voice channel")
	return nil
}

// PlayOnce streams the local audio file into the guild's voice connection
// as a one-shot track. onDone fires when the track finishes or fails; a
// track superseded by a newer PlayOnce does not fire its callback.
func (m *VoiceManager) PlayOnce(_ context.Context, guildID, file string, onDone func()) error {
	m.mu.Lock()
	sess := m.sessions[guildID]
	if sess == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}

	tr := &track{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if prev := sess.track; prev != nil {
		prev.signalStop()
	}
	sess.track = tr
	m.mu.Unlock()

	go m.runTrack(guildID, sess, tr, file, onDone)
	return nil
}

// runTrack decodes the file to PCM through ffmpeg, opus-encodes it and
// pushes it to the voice connection until the stream ends or is stopped.
func (m *VoiceManager) runTrack(guildID string, sess *voiceSession, tr *track, file string, onDone func()) {
	defer close(tr.done)

	stream, cleanup, err := pcmFileStream(file)
	if err != nil {
		m.log.Error().Err(err).Str("file", file).Msg("failed to open PCM stream")
	} else {
		if err := sess.vc.Speaking(true); err != nil {
			m.log.Error().Err(err).Msg("failed to set speaking state")
		}
		if err := streamToDiscord(stream, tr.stop, sess.vc); err != nil {
			m.log.Error().Err(err).Str("file", file).Msg("playback error")
		}
		if err := sess.vc.Speaking(false); err != nil {
			m.log.Error().Err(err).Msg("failed to clear speaking state")
		}
		cleanup()
	}

	m.mu.Lock()
	current := sess.track == tr
	if current {
		sess.track = nil
	}
	m.mu.Unlock()

	if current && onDone != nil {
		onDone()
	}
}

// Leave stops any active track and disconnects the guild's voice session.
func (m *VoiceManager) Leave(_ context.Context, guildID string) error {
	m.mu.Lock()
	sess := m.sessions[guildID]
	delete(m.sessions, guildID)
	if sess != nil && sess.track != nil {
		// detach first so the track goroutine skips its callback
		tr := sess.track
		sess.track = nil
		tr.signalStop()
	}
	m.mu.Unlock()

	if sess == nil {
		return nil
	}
	if err := sess.vc.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from voice channel: %w", err)
	}
	m.log.Info().Str("guild", guildID).Msg("left voice channel")
	return nil
}
