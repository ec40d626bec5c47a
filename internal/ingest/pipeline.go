// Package ingest validates a user-submitted attachment, converts it to
// audio when needed and commits it into the blob store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/smallwoj/join-sound-johnson/internal/blobstore"
)

// MaxDuration is the ceiling on a joinsound's length.
const MaxDuration = 15 * time.Second

var (
	ErrUnsupportedType = errors.New("attachment is not a video or an audio file")
	ErrTooLong         = errors.New("sound is too long")
	ErrTranscodeFailed = errors.New("could not convert the video to audio")
)

// Transcoder probes media duration and extracts audio from video.
type Transcoder interface {
	Probe(ctx context.Context, path string) (time.Duration, error)
	ExtractAudio(ctx context.Context, src, dst string) error
}

type Pipeline struct {
	store   blobstore.Store
	tc      Transcoder
	client  *http.Client
	scratch string
	log     zerolog.Logger
}

func New(store blobstore.Store, tc Transcoder, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:   store,
		tc:      tc,
		client:  &http.Client{Timeout: 60 * time.Second},
		scratch: os.TempDir(),
		log:     log.With().Str("component", "ingest").Logger(),
	}
}

// Ingest runs the full pipeline for one attachment and returns the logical
// path the sound was committed under. The same path scheme is used for
// create and update; committing overwrites any prior content there.
func (p *Pipeline) Ingest(ctx context.Context, att Attachment, userID, guildID string) (string, error) {
	if !att.isAudio() && !att.isVideo() {
		return "", fmt.Errorf("%w (content type %q)", ErrUnsupportedType, att.ContentType)
	}

	// Probing needs the whole file on disk even though only metadata is
	// wanted; the download is reused for the commit step.
	scratch := filepath.Join(p.scratch, fmt.Sprintf("joinsounds_%s_%s", att.ID, att.Filename))
	if err := p.download(ctx, att.URL, scratch); err != nil {
		return "", fmt.Errorf("failed to download attachment: %w", err)
	}
	defer os.Remove(scratch)

	duration, err := p.tc.Probe(ctx, scratch)
	if err != nil {
		// An unprobeable file counts as unbounded, not as acceptable.
		p.log.Warn().Err(err).Str("file", att.Filename).Msg("duration probe failed, rejecting")
		return "", fmt.Errorf("%w: duration unknown", ErrTooLong)
	}
	if duration > MaxDuration {
		return "", fmt.Errorf("%w: %s exceeds the %s limit", ErrTooLong, duration.Round(time.Second), MaxDuration)
	}

	source := scratch
	filename := att.Filename
	if att.isVideo() {
		filename = audioFilename(att.Filename)
		converted := filepath.Join(p.scratch, fmt.Sprintf("joinsounds_%s_%s", att.ID, filename))
		if err := p.tc.ExtractAudio(ctx, scratch, converted); err != nil {
			return "", fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
		}
		defer os.Remove(converted)
		source = converted
	}

	dest := SoundPath(userID, guildID, filename)

	file, err := os.Open(source)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer file.Close()

	if err := p.store.Put(ctx, dest, file); err != nil {
		return "", fmt.Errorf("failed to store sound: %w", err)
	}

	p.log.Info().Str("user", userID).Str("guild", guildID).Str("path", dest).Msg("sound ingested")
	return dest, nil
}

func (p *Pipeline) download(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	file, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, resp.Body)
	return err
}

// SoundPath is the deterministic logical path a sound commits to:
// media/<user>/<guild-or-"global">/<filename>.
func SoundPath(userID, guildID, filename string) string {
	scope := guildID
	if scope == "" {
		scope = "global"
	}
	return path.Join("media", userID, scope, filename)
}

// audioFilename swaps a video filename's extension for .mp3.
func audioFilename(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return name + ".mp3"
	}
	return strings.TrimSuffix(name, ext) + ".mp3"
}
