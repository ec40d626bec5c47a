package sound

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallwoj/join-sound-johnson/internal/ingest"
	"github.com/smallwoj/join-sound-johnson/internal/registry"
)

type fakeRegistry struct {
	paths    map[registry.Scope]string
	upserts  []string
	deleted  []registry.Scope
	purged   []string
	listErr  error
	upsertFn func(s registry.Scope, path string)
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{paths: make(map[registry.Scope]string)}
}

func (f *fakeRegistry) Path(_ context.Context, s registry.Scope) (string, error) {
	path, ok := f.paths[s]
	if !ok || path == "" {
		return "", registry.ErrNoSound
	}
	return path, nil
}

func (f *fakeRegistry) CreateOrReplace(_ context.Context, s registry.Scope, path string) error {
	f.paths[s] = path
	f.upserts = append(f.upserts, path)
	if f.upsertFn != nil {
		f.upsertFn(s, path)
	}
	return nil
}

func (f *fakeRegistry) Delete(_ context.Context, s registry.Scope) error {
	if _, ok := f.paths[s]; !ok {
		return registry.ErrNoSound
	}
	delete(f.paths, s)
	f.deleted = append(f.deleted, s)
	return nil
}

func (f *fakeRegistry) List(_ context.Context, userID string) ([]registry.Sound, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var sounds []registry.Sound
	for s, p := range f.paths {
		if s.UserID == userID {
			sounds = append(sounds, registry.Sound{Scope: s, FilePath: p})
		}
	}
	return sounds, nil
}

func (f *fakeRegistry) DeleteAll(_ context.Context, userID string) error {
	for s := range f.paths {
		if s.UserID == userID {
			delete(f.paths, s)
		}
	}
	f.purged = append(f.purged, userID)
	return nil
}

type fakeDeleter struct {
	deleted []string
	err     error
}

func (f *fakeDeleter) Delete(_ context.Context, path string) error {
	f.deleted = append(f.deleted, path)
	return f.err
}

type fakeIngester struct {
	path string
	err  error
}

func (f *fakeIngester) Ingest(_ context.Context, _ ingest.Attachment, _, _ string) (string, error) {
	return f.path, f.err
}

func TestSetCreatesNewSound(t *testing.T) {
	reg := newFakeRegistry()
	store := &fakeDeleter{}
	svc := New(reg, store, &fakeIngester{path: "media/42/99/horn.mp3"}, zerolog.Nop())

	err := svc.Set(context.Background(), ingest.Attachment{}, "42", "99")
	require.NoError(t, err)

	assert.Equal(t, "media/42/99/horn.mp3", reg.paths[registry.Scope{UserID: "42", GuildID: "99"}])
	assert.Empty(t, store.deleted)
}

func TestSetReplacesAndCleansUpOldBlob(t *testing.T) {
	reg := newFakeRegistry()
	scope := registry.Scope{UserID: "42", GuildID: "99"}
	reg.paths[scope] = "media/42/99/old.mp3"

	store := &fakeDeleter{}
	var rowAtDeleteTime string
	reg.upsertFn = func(s registry.Scope, path string) {
		// capture ordering: the row must point at the new blob before the
		// old one is removed
		rowAtDeleteTime = path
	}

	svc := New(reg, store, &fakeIngester{path: "media/42/99/new.mp3"}, zerolog.Nop())
	require.NoError(t, svc.Set(context.Background(), ingest.Attachment{}, "42", "99"))

	assert.Equal(t, []string{"media/42/99/old.mp3"}, store.deleted)
	assert.Equal(t, "media/42/99/new.mp3", rowAtDeleteTime)
	assert.Equal(t, "media/42/99/new.mp3", reg.paths[scope])
}

func TestSetSamePathSkipsCleanup(t *testing.T) {
	reg := newFakeRegistry()
	scope := registry.Scope{UserID: "42", GuildID: ""}
	reg.paths[scope] = "media/42/global/horn.mp3"

	store := &fakeDeleter{}
	svc := New(reg, store, &fakeIngester{path: "media/42/global/horn.mp3"}, zerolog.Nop())
	require.NoError(t, svc.Set(context.Background(), ingest.Attachment{}, "42", ""))

	assert.Empty(t, store.deleted, "overwritten blob must not be deleted")
}

func TestSetIngestFailureLeavesRegistryUntouched(t *testing.T) {
	reg := newFakeRegistry()
	store := &fakeDeleter{}
	svc := New(reg, store, &fakeIngester{err: ingest.ErrTooLong}, zerolog.Nop())

	err := svc.Set(context.Background(), ingest.Attachment{}, "42", "99")
	assert.ErrorIs(t, err, ingest.ErrTooLong)
	assert.Empty(t, reg.upserts)
}

func TestRemoveDeletesBlobAndRow(t *testing.T) {
	reg := newFakeRegistry()
	scope := registry.Scope{UserID: "42", GuildID: "99"}
	reg.paths[scope] = "media/42/99/horn.mp3"

	store := &fakeDeleter{}
	svc := New(reg, store, &fakeIngester{}, zerolog.Nop())
	require.NoError(t, svc.Remove(context.Background(), "42", "99"))

	assert.Equal(t, []string{"media/42/99/horn.mp3"}, store.deleted)
	assert.Equal(t, []registry.Scope{scope}, reg.deleted)
}

func TestRemoveMissingSound(t *testing.T) {
	svc := New(newFakeRegistry(), &fakeDeleter{}, &fakeIngester{}, zerolog.Nop())

	err := svc.Remove(context.Background(), "42", "99")
	assert.ErrorIs(t, err, ErrNoSoundToRemove)
}

func TestRemoveBlobFailureStillRemovesRow(t *testing.T) {
	reg := newFakeRegistry()
	scope := registry.Scope{UserID: "42", GuildID: ""}
	reg.paths[scope] = "media/42/global/horn.mp3"

	store := &fakeDeleter{err: assert.AnError}
	svc := New(reg, store, &fakeIngester{}, zerolog.Nop())

	err := svc.Remove(context.Background(), "42", "")
	assert.ErrorIs(t, err, assert.AnError, "cleanup failure is reported")
	assert.Equal(t, []registry.Scope{scope}, reg.deleted, "row removal must not be blocked")
}

func TestRemoveAllPurgesEveryScope(t *testing.T) {
	reg := newFakeRegistry()
	reg.paths[registry.Scope{UserID: "42", GuildID: "99"}] = "media/42/99/a.mp3"
	reg.paths[registry.Scope{UserID: "42"}] = "media/42/global/b.mp3"
	reg.paths[registry.Scope{UserID: "7"}] = "media/7/global/c.mp3"

	store := &fakeDeleter{}
	svc := New(reg, store, &fakeIngester{}, zerolog.Nop())
	require.NoError(t, svc.RemoveAll(context.Background(), "42"))

	assert.ElementsMatch(t, []string{"media/42/99/a.mp3", "media/42/global/b.mp3"}, store.deleted)
	assert.Equal(t, []string{"42"}, reg.purged)
	assert.Contains(t, reg.paths, registry.Scope{UserID: "7"}, "other users are untouched")
}

func TestRemoveAllWithNothingToRemove(t *testing.T) {
	svc := New(newFakeRegistry(), &fakeDeleter{}, &fakeIngester{}, zerolog.Nop())

	err := svc.RemoveAll(context.Background(), "42")
	assert.ErrorIs(t, err, ErrNoSoundToRemove)
}
