// Package discord wires the gateway and voice sessions to the playback
// orchestrator.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/smallwoj/join-sound-johnson/internal/playback"
)

// Bot is the Discord-facing shell around the joinsound core.
type Bot struct {
	dg   *discordgo.Session
	orch *playback.Orchestrator
	log  zerolog.Logger
}

func NewBot(dg *discordgo.Session, orch *playback.Orchestrator, log zerolog.Logger) *Bot {
	return &Bot{
		dg:   dg,
		orch: orch,
		log:  log.With().Str("component", "discord").Logger(),
	}
}

// Run opens the gateway session and blocks until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.configureIntents()
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onVoiceStateUpdate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing session")
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().Str("user", r.User.Username).Msg("✅ Discord bot is running")
}

// onVoiceStateUpdate dispatches one task per voice-join event. Events for
// distinct guilds run fully in parallel; the orchestrator serializes the
// ones that share a guild.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	var selfID string
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}

	ev, ok := voiceEntry(vs, selfID)
	if !ok {
		return
	}

	b.log.Info().Str("user", ev.UserID).Str("guild", ev.GuildID).Msg("user joined voice channel")
	go func() {
		if err := b.orch.HandleJoin(context.Background(), ev); err != nil {
			b.log.Error().Err(err).Str("user", ev.UserID).Str("guild", ev.GuildID).Msg("join handling failed")
		}
	}()
}

// voiceEntry derives the edge-triggered "entered voice" event from the
// old/new channel state. Moves between channels, disconnects and the bot's
// own voice state changes all yield ok=false.
func voiceEntry(vs *discordgo.VoiceStateUpdate, selfID string) (playback.JoinEvent, bool) {
	if vs.UserID == selfID {
		return playback.JoinEvent{}, false
	}
	if vs.ChannelID == "" {
		return playback.JoinEvent{}, false
	}
	if vs.BeforeUpdate != nil && vs.BeforeUpdate.ChannelID != "" {
		return playback.JoinEvent{}, false
	}
	return playback.JoinEvent{
		UserID:    vs.UserID,
		GuildID:   vs.GuildID,
		ChannelID: vs.ChannelID,
	}, true
}
