package repository

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/Talha-Khalil/bet-you-can-t/internal/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// openTestDB gives each test its own schema in the database named by
// TEST_DATABASE_URL, and skips when it is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	admin, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = admin.Close() })

	schema := "byc_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(`CREATE SCHEMA ` + schema)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = admin.Exec(`DROP SCHEMA ` + schema + ` CASCADE`) })

	db, err := sql.Open("postgres", withSearchPath(dsn, schema))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ddl, err := os.ReadFile("schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(ddl))
	require.NoError(t, err)
	return db
}

func withSearchPath(dsn, schema string) string {
	if !strings.Contains(dsn, "://") {
		return dsn + " search_path=" + schema
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&search_path=" + schema
	}
	return dsn + "?search_path=" + schema
}

func TestPostgres_ConcurrentEnsureUserLeavesOneRow(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			user, err := repo.EnsureUser(ctx, "race@x.com", models.UserDefaults{Name: "race"})
			if err != nil {
				return err
			}
			ids[i] = user.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var count int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM users WHERE email = $1`, "race@x.com").Scan(&count))
	assert.Equal(t, 1, count)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestPostgres_EnsureUserHitDoesNotWrite(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first, err := repo.EnsureUser(ctx, "b@x.com", models.UserDefaults{Name: "b"})
	require.NoError(t, err)

	var before, after string
	require.NoError(t, db.QueryRow(`SELECT xmin::text FROM users WHERE email = $1`, "b@x.com").Scan(&before))

	second, err := repo.EnsureUser(ctx, "b@x.com", models.UserDefaults{Name: "other"})
	require.NoError(t, err)
	require.NoError(t, db.QueryRow(`SELECT xmin::text FROM users WHERE email = $1`, "b@x.com").Scan(&after))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "b", *second.Name)
	assert.Equal(t, before, after, "a hit must not create a new row version")
}

func TestPostgres_SyncUserReportsChange(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	_, changed, err := repo.SyncUser(ctx, "a@x.com", "Alice", "")
	require.NoError(t, err)
	assert.False(t, changed, "a new row has nothing cached to refresh")

	_, changed, err = repo.SyncUser(ctx, "a@x.com", "Alice", "")
	require.NoError(t, err)
	assert.False(t, changed)

	user, changed, err := repo.SyncUser(ctx, "a@x.com", "Alice Jones", "")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Alice Jones", *user.Name)
}
