package registry

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	r := New(mock, zerolog.Nop())
	return r, mock
}

func TestResolvePrefersLocalOverGlobal(t *testing.T) {
	r, mock := newTestRegistry(t)

	localPath := "media/42/99/horn.mp3"
	mock.ExpectQuery(`SELECT file_path FROM joinsounds`).
		WithArgs("42", "99").
		WillReturnRows(pgxmock.NewRows([]string{"file_path"}).AddRow(&localPath))

	path, scope, err := r.Resolve(context.Background(), "42", "99")
	require.NoError(t, err)
	assert.Equal(t, localPath, path)
	assert.Equal(t, Scope{UserID: "42", GuildID: "99"}, scope)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveFallsBackToGlobal(t *testing.T) {
	r, mock := newTestRegistry(t)

	globalPath := "media/42/global/horn.mp3"
	mock.ExpectQuery(`SELECT file_path FROM joinsounds`).
		WithArgs("42", "99").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT file_path FROM joinsounds`).
		WithArgs("42").
		WillReturnRows(pgxmock.NewRows([]string{"file_path"}).AddRow(&globalPath))

	path, scope, err := r.Resolve(context.Background(), "42", "99")
	require.NoError(t, err)
	assert.Equal(t, globalPath, path)
	assert.True(t, scope.Global())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveNullPathCountsAsAbsent(t *testing.T) {
	r, mock := newTestRegistry(t)

	globalPath := "media/42/global/horn.mp3"
	mock.ExpectQuery(`SELECT file_path FROM joinsounds`).
		WithArgs("42", "99").
		WillReturnRows(pgxmock.NewRows([]string{"file_path"}).AddRow(nil))
	mock.ExpectQuery(`SELECT file_path FROM joinsounds`).
		WithArgs("42").
		WillReturnRows(pgxmock.NewRows([]string{"file_path"}).AddRow(&globalPath))

	path, scope, err := r.Resolve(context.Background(), "42", "99")
	require.NoError(t, err)
	assert.Equal(t, globalPath, path)
	assert.True(t, scope.Global())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveNoSoundAnywhere(t *testing.T) {
	r, mock := newTestRegistry(t)

	mock.ExpectQuery(`SELECT file_path FROM joinsounds`).
		WithArgs("42", "99").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT file_path FROM joinsounds`).
		WithArgs("42").
		WillReturnError(pgx.ErrNoRows)

	_, _, err := r.Resolve(context.Background(), "42", "99")
	assert.ErrorIs(t, err, ErrNoSound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastPlayedUsesTheMoreRecentRow(t *testing.T) {
	r, mock := newTestRegistry(t)

	localAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	globalAt := localAt.Add(10 * time.Second)

	mock.ExpectQuery(`SELECT last_played FROM joinsounds`).
		WithArgs("42", "99").
		WillReturnRows(pgxmock.NewRows([]string{"last_played"}).AddRow(&localAt))
	mock.ExpectQuery(`SELECT last_played FROM joinsounds`).
		WithArgs("42").
		WillReturnRows(pgxmock.NewRows([]string{"last_played"}).AddRow(&globalAt))

	got, err := r.LastPlayed(context.Background(), "42", "99")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, globalAt, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastPlayedMissingRowsMeanNever(t *testing.T) {
	r, mock := newTestRegistry(t)

	mock.ExpectQuery(`SELECT last_played FROM joinsounds`).
		WithArgs("42", "99").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT last_played FROM joinsounds`).
		WithArgs("42").
		WillReturnError(pgx.ErrNoRows)

	got, err := r.LastPlayed(context.Background(), "42", "99")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPlayStampsSelectedScope(t *testing.T) {
	r, mock := newTestRegistry(t)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return at }

	mock.ExpectExec(`UPDATE joinsounds SET last_played`).
		WithArgs("42", "99", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, r.RecordPlay(context.Background(), Scope{UserID: "42", GuildID: "99"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReplaceUpdatesExistingRow(t *testing.T) {
	r, mock := newTestRegistry(t)

	mock.ExpectExec(`UPDATE joinsounds SET file_path`).
		WithArgs("42", "99", "media/42/99/horn.mp3").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := r.CreateOrReplace(context.Background(), Scope{UserID: "42", GuildID: "99"}, "media/42/99/horn.mp3")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReplaceInsertsWhenMissing(t *testing.T) {
	r, mock := newTestRegistry(t)

	guild := "99"
	mock.ExpectExec(`UPDATE joinsounds SET file_path`).
		WithArgs("42", "99", "media/42/99/horn.mp3").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`INSERT INTO joinsounds`).
		WithArgs("42", &guild, "media/42/99/horn.mp3").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := r.CreateOrReplace(context.Background(), Scope{UserID: "42", GuildID: "99"}, "media/42/99/horn.mp3")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrReplaceGlobalInsertsNullGuild(t *testing.T) {
	r, mock := newTestRegistry(t)

	mock.ExpectExec(`UPDATE joinsounds SET file_path`).
		WithArgs("42", "media/42/global/horn.mp3").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`INSERT INTO joinsounds`).
		WithArgs("42", (*string)(nil), "media/42/global/horn.mp3").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := r.CreateOrReplace(context.Background(), Scope{UserID: "42"}, "media/42/global/horn.mp3")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingRowIsNoSound(t *testing.T) {
	r, mock := newTestRegistry(t)

	mock.ExpectExec(`DELETE FROM joinsounds`).
		WithArgs("42", "99").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := r.Delete(context.Background(), Scope{UserID: "42", GuildID: "99"})
	assert.ErrorIs(t, err, ErrNoSound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasSound(t *testing.T) {
	r, mock := newTestRegistry(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("42", "99").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := r.HasSound(context.Background(), Scope{UserID: "42", GuildID: "99"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasAnySound(t *testing.T) {
	r, mock := newTestRegistry(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("42").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := r.HasAnySound(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListIncludesRowsWithoutMedia(t *testing.T) {
	r, mock := newTestRegistry(t)

	guild := "99"
	path := "media/42/99/horn.mp3"
	mock.ExpectQuery(`SELECT guild_id, file_path FROM joinsounds`).
		WithArgs("42").
		WillReturnRows(pgxmock.NewRows([]string{"guild_id", "file_path"}).
			AddRow(&guild, &path).
			AddRow(nil, nil))

	sounds, err := r.List(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, sounds, 2)
	assert.Equal(t, Scope{UserID: "42", GuildID: "99"}, sounds[0].Scope)
	assert.Equal(t, path, sounds[0].FilePath)
	assert.True(t, sounds[1].Scope.Global())
	assert.Empty(t, sounds[1].FilePath)
	assert.NoError(t, mock.ExpectationsWereMet())
}
