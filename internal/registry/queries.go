package registry

// Uniqueness of (discord_id, guild_id) is enforced at the application layer,
// not by a database constraint; guild_id IS NULL marks the global row.
const (
	createJoinsoundsTable = `
		CREATE TABLE IF NOT EXISTS joinsounds (
			id          SERIAL PRIMARY KEY,
			discord_id  VARCHAR(255),
			guild_id    VARCHAR(255),
			file_path   VARCHAR(255),
			last_played TIMESTAMP
		)`

	selectHasLocal = `
		SELECT EXISTS (
			SELECT 1 FROM joinsounds
			WHERE discord_id = $1 AND guild_id = $2 AND file_path IS NOT NULL
		)`
	selectHasGlobal = `
		SELECT EXISTS (
			SELECT 1 FROM joinsounds
			WHERE discord_id = $1 AND guild_id IS NULL AND file_path IS NOT NULL
		)`
	selectHasAny = `
		SELECT EXISTS (
			SELECT 1 FROM joinsounds
			WHERE discord_id = $1 AND file_path IS NOT NULL
		)`

	selectPathLocal = `
		SELECT file_path FROM joinsounds
		WHERE discord_id = $1 AND guild_id = $2`
	selectPathGlobal = `
		SELECT file_path FROM joinsounds
		WHERE discord_id = $1 AND guild_id IS NULL`

	selectLastPlayedLocal = `
		SELECT last_played FROM joinsounds
		WHERE discord_id = $1 AND guild_id = $2`
	selectLastPlayedGlobal = `
		SELECT last_played FROM joinsounds
		WHERE discord_id = $1 AND guild_id IS NULL`

	updateLastPlayedLocal = `
		UPDATE joinsounds SET last_played = $3
		WHERE discord_id = $1 AND guild_id = $2`
	updateLastPlayedGlobal = `
		UPDATE joinsounds SET last_played = $2
		WHERE discord_id = $1 AND guild_id IS NULL`

	updatePathLocal = `
		UPDATE joinsounds SET file_path = $3
		WHERE discord_id = $1 AND guild_id = $2`
	updatePathGlobal = `
		UPDATE joinsounds SET file_path = $2
		WHERE discord_id = $1 AND guild_id IS NULL`

	insertJoinsound = `
		INSERT INTO joinsounds (discord_id, guild_id, file_path)
		VALUES ($1, $2, $3)`

	deleteLocal = `
		DELETE FROM joinsounds
		WHERE discord_id = $1 AND guild_id = $2`
	deleteGlobal = `
		DELETE FROM joinsounds
		WHERE discord_id = $1 AND guild_id IS NULL`
	deleteAllForUser = `
		DELETE FROM joinsounds
		WHERE discord_id = $1`

	selectAllForUser = `
		SELECT guild_id, file_path FROM joinsounds
		WHERE discord_id = $1`
)
