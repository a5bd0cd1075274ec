package storage

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Slots {
	t.Helper()

	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "liarsgun.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]Slots{
		"memory": NewMemory(),
		"sqlite": db,
	}
}

func TestSlots(t *testing.T) {
	for name, slots := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := slots.Get(ctx, "abc", "gameState")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, slots.Put(ctx, "abc", "gameState", []byte(`{"a":1}`)))
			require.NoError(t, slots.Put(ctx, "xyz", "gameState", []byte(`{"b":2}`)))

			got, err := slots.Get(ctx, "abc", "gameState")
			require.NoError(t, err)
			assert.Equal(t, `{"a":1}`, string(got))

			require.NoError(t, slots.Put(ctx, "abc", "gameState", []byte(`{"a":3}`)))
			got, err = slots.Get(ctx, "abc", "gameState")
			require.NoError(t, err)
			assert.Equal(t, `{"a":3}`, string(got))

			require.NoError(t, slots.Delete(ctx, "abc"))
			_, err = slots.Get(ctx, "abc", "gameState")
			assert.ErrorIs(t, err, ErrNotFound)

			got, err = slots.Get(ctx, "xyz", "gameState")
			require.NoError(t, err)
			assert.Equal(t, `{"b":2}`, string(got))
		})
	}
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	s := Bind(mem, "room")
	require.NoError(t, s.Put(ctx, "gameState", []byte("x")))

	got, err := mem.Get(ctx, "room", "gameState")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))

	_, err = Bind(mem, "other").Get(ctx, "gameState")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	value := []byte("abc")
	require.NoError(t, mem.Put(ctx, "s", "k", value))
	value[0] = 'z'

	got, err := mem.Get(ctx, "s", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "liarsgun.db")

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Put(ctx, "room", "gameState", []byte("saved")))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Get(ctx, "room", "gameState")
	require.NoError(t, err)
	assert.Equal(t, "saved", string(got))
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "  ")
	assert.Error(t, err)
}

func TestApplyMigrationsOnce(t *testing.T) {
	ctx := context.Background()

	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "liarsgun.db"))
	require.NoError(t, err)
	defer db.Close()

	extra := fstest.MapFS{
		"m/002_extra.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE extra (id INTEGER PRIMARY KEY);\n-- +migrate Down\nDROP TABLE extra;"),
		},
	}

	require.NoError(t, applyMigrations(ctx, db.db, extra, "m"))
	require.NoError(t, applyMigrations(ctx, db.db, extra, "m"))

	var count int
	require.NoError(t, db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)

	var name string
	require.NoError(t, db.db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'extra'`).Scan(&name))
	assert.Equal(t, "extra", name)
}

func TestUpSection(t *testing.T) {
	assert.Equal(t, "\nA;\n", upSection("-- +migrate Up\nA;\n-- +migrate Down\nB;"))
	assert.Equal(t, "\nA;", upSection("-- +migrate Up\nA;"))
	assert.Equal(t, "A;", upSection("A;"))
}
