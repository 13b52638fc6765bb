package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/dirk.krummacker/contactbook/internal/config"
	"gitlab.com/dirk.krummacker/contactbook/internal/model"
)

const otherOwner = model.OwnerID(8)

// openSQLite creates a migrated SQLite database with two owners in a temporary directory.
func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, config.Database{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, EnsureOwner(ctx, db, owner, "owner@example.com"))
	require.NoError(t, EnsureOwner(ctx, db, otherOwner, "other@example.com"))
	return db
}

// newSQLiteStore returns a store on a fresh SQLite database.
func newSQLiteStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(openSQLite(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T {
	return &v
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(config.Database{Host: "db:3306", User: "dirk", Password: "secret", Name: "contacts"})
	assert.True(t, strings.HasPrefix(dsn, "dirk:secret@tcp(db:3306)/contacts?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "/tmp/c.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", SQLiteDSN("/tmp/c.db"))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Database{Driver: "oracle"})
	assert.ErrorContains(t, err, `unsupported database driver "oracle"`)
}

// TestMigrateIsIdempotent expects that the schema can be applied to an existing database.
func TestMigrateIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	assert.NoError(t, Migrate(context.Background(), db))
}

func TestEnsureOwnerIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, EnsureOwner(context.Background(), db, owner, "owner@example.com"))

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, 2, count)
}

func TestExecScript(t *testing.T) {
	db := openSQLite(t)
	script := `
-- a comment
CREATE TABLE notes (
    id   INTEGER PRIMARY KEY,
    text TEXT NOT NULL
);
INSERT INTO notes (id, text) VALUES (1, 'first');
INSERT INTO notes (id, text) VALUES (2, 'second')
`
	require.NoError(t, ExecScript(context.Background(), db, strings.NewReader(script)))

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM notes`))
	assert.Equal(t, 2, count)
}

func TestExecScriptReportsFailingStatement(t *testing.T) {
	db := openSQLite(t)
	script := "CREATE TABLE a (id INTEGER);\nCREATE TABLE a (id INTEGER);\n"
	err := ExecScript(context.Background(), db, strings.NewReader(script))
	assert.ErrorContains(t, err, "statement 2 failed")
}

// TestCreateRequiresExistingOwner expects the foreign key to reject contacts of unknown users.
func TestCreateRequiresExistingOwner(t *testing.T) {
	s := newSQLiteStore(t)
	_, err := s.Create(context.Background(), model.OwnerID(99), model.ContactFields{
		FirstName: "Nobody", LastName: "Known", Email: "n@example.com", Phone: "0",
	})
	assert.Error(t, err)
}

// TestRoundTrip creates a contact and reads it back with all values.
func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	birthday := date(1969, time.March, 2)
	created, err := s.Create(ctx, owner, model.ContactFields{
		FirstName: "Erika",
		LastName:  "Mustermann",
		Email:     "erika@example.com",
		Phone:     "+49 0815 4711",
		Birthday:  &birthday,
		Comments:  ptr("met at work"),
		Favorite:  true,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.Id)

	found, err := s.GetByID(ctx, owner, created.Id)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.Id, found.Id)
	assert.Equal(t, "Erika", found.FirstName)
	assert.Equal(t, "Mustermann", found.LastName)
	assert.Equal(t, "erika@example.com", found.Email)
	assert.Equal(t, "+49 0815 4711", found.Phone)
	require.NotNil(t, found.Birthday)
	assert.True(t, birthday.Equal(*found.Birthday), "birthday %s", found.Birthday)
	assert.Equal(t, "met at work", *found.Comments)
	assert.True(t, found.Favorite)
	assert.Equal(t, owner, found.Owner)
}

// TestOwnerScoping expects that another owner can neither see nor change the contact.
func TestOwnerScoping(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	created, err := s.Create(ctx, owner, model.ContactFields{FirstName: "Erika", LastName: "M", Email: "erika@example.com", Phone: "1"})
	require.NoError(t, err)

	found, err := s.GetByID(ctx, otherOwner, created.Id)
	assert.NoError(t, err)
	assert.Nil(t, found)

	found, err = s.GetByEmail(ctx, otherOwner, "erika@example.com")
	assert.NoError(t, err)
	assert.Nil(t, found)

	updated, err := s.Update(ctx, otherOwner, created.Id, model.ContactFields{FirstName: "Mallory", LastName: "M", Email: "m@example.com", Phone: "2"})
	assert.NoError(t, err)
	assert.Nil(t, updated)

	favored, err := s.SetFavorite(ctx, otherOwner, created.Id, true)
	assert.NoError(t, err)
	assert.Nil(t, favored)

	deleted, err := s.Delete(ctx, otherOwner, created.Id)
	assert.NoError(t, err)
	assert.Nil(t, deleted)

	listed, err := s.List(ctx, otherOwner, 0, MaxLimit, model.AnyFavorite)
	assert.NoError(t, err)
	assert.Empty(t, listed)

	searched, err := s.SearchByText(ctx, otherOwner, "")
	assert.NoError(t, err)
	assert.Empty(t, searched)

	unchanged, err := s.GetByID(ctx, owner, created.Id)
	require.NoError(t, err)
	require.NotNil(t, unchanged)
	assert.Equal(t, "Erika", unchanged.FirstName)
	assert.False(t, unchanged.Favorite)
}

// TestUpdateSetFavoriteDelete walks a contact through all mutations.
func TestUpdateSetFavoriteDelete(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	created, err := s.Create(ctx, owner, model.ContactFields{
		FirstName: "Erika", LastName: "Mustermann", Email: "erika@example.com", Phone: "1", Comments: ptr("old"),
	})
	require.NoError(t, err)

	updated, err := s.Update(ctx, owner, created.Id, model.ContactFields{
		FirstName: "Rudi", LastName: "Völler", Email: "rudi@example.com", Phone: "2",
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Rudi", updated.FirstName)
	assert.Nil(t, updated.Comments)

	favored, err := s.SetFavorite(ctx, owner, created.Id, true)
	require.NoError(t, err)
	require.NotNil(t, favored)
	assert.True(t, favored.Favorite)
	assert.Equal(t, "Völler", favored.LastName)

	found, err := s.GetByID(ctx, owner, created.Id)
	require.NoError(t, err)
	assert.True(t, found.Favorite)
	assert.Equal(t, "rudi@example.com", found.Email)
	assert.Nil(t, found.Comments)

	deleted, err := s.Delete(ctx, owner, created.Id)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, created.Id, deleted.Id)

	found, err = s.GetByID(ctx, owner, created.Id)
	assert.NoError(t, err)
	assert.Nil(t, found)

	updated, err = s.Update(ctx, owner, created.Id, model.ContactFields{FirstName: "Ghost"})
	assert.NoError(t, err)
	assert.Nil(t, updated)
}

// TestListAndSearchOnSQLite checks filtering, paging and the literal treatment of wildcards
// against the real engine.
func TestListAndSearchOnSQLite(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	create := func(first, last, email string, favorite bool) int64 {
		c, err := s.Create(ctx, owner, model.ContactFields{FirstName: first, LastName: last, Email: email, Phone: "1", Favorite: favorite})
		require.NoError(t, err)
		return c.Id
	}
	a := create("Anna", "Alpha", "anna@example.com", true)
	b := create("Bert", "Beta", "mustermann@example.com", false)
	c := create("Carl", "100%", "carl@example.com", false)
	d := create("Dora", "Delta", "Dora@Example.com", false)

	ids := func(contacts []model.Contact) []int64 {
		var result []int64
		for _, contact := range contacts {
			result = append(result, contact.Id)
		}
		return result
	}

	all, err := s.List(ctx, owner, 0, MaxLimit, model.AnyFavorite)
	require.NoError(t, err)
	assert.Equal(t, []int64{a, b, c, d}, ids(all))

	page, err := s.List(ctx, owner, 1, 2, model.AnyFavorite)
	require.NoError(t, err)
	assert.Equal(t, []int64{b, c}, ids(page))

	favorites, err := s.List(ctx, owner, 0, MaxLimit, model.OnlyFavorite(true))
	require.NoError(t, err)
	assert.Equal(t, []int64{a}, ids(favorites))

	others, err := s.List(ctx, owner, 0, MaxLimit, model.OnlyFavorite(false))
	require.NoError(t, err)
	assert.Equal(t, []int64{b, c, d}, ids(others))

	// matched on the email only
	found, err := s.SearchByText(ctx, owner, "MUSTER")
	require.NoError(t, err)
	assert.Equal(t, []int64{b}, ids(found))

	found, err = s.SearchByText(ctx, owner, "0%")
	require.NoError(t, err)
	assert.Equal(t, []int64{c}, ids(found))

	found, err = s.SearchByText(ctx, owner, "a_")
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = s.SearchByText(ctx, owner, "")
	require.NoError(t, err)
	assert.Len(t, found, 4)

	byEmail, err := s.GetByEmail(ctx, owner, "Dora@Example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, d, byEmail.Id)

	byEmail, err = s.GetByEmail(ctx, owner, "dora@example.com")
	assert.NoError(t, err)
	assert.Nil(t, byEmail)
}

// TestLeapDayBirthdayOnSQLite expects a February 29 birthday to be due on February 28 of a common
// year.
func TestLeapDayBirthdayOnSQLite(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t, WithClock(func() time.Time { return date(2023, time.February, 27) }))

	leapling, err := s.Create(ctx, owner, model.ContactFields{
		FirstName: "Leap", LastName: "Ling", Email: "leap@example.com", Phone: "1",
		Birthday: ptr(date(2000, time.February, 29)),
	})
	require.NoError(t, err)

	found, err := s.SearchUpcomingBirthdays(ctx, owner, model.BirthdayQuery{Days: 1, Limit: MaxLimit})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, leapling.Id, found[0].Id)

	found, err = s.SearchUpcomingBirthdays(ctx, owner, model.BirthdayQuery{Days: 0, Limit: MaxLimit})
	require.NoError(t, err)
	assert.Empty(t, found)
}

// TestSearchNonASCIINamesOnSQLite expects case-insensitive matches for letters outside ASCII,
// which SQLite's own LOWER leaves untouched.
func TestSearchNonASCIINamesOnSQLite(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	created, err := s.Create(ctx, owner, model.ContactFields{FirstName: "Özlem", LastName: "Ünal", Email: "oezlem@example.com", Phone: "1"})
	require.NoError(t, err)

	for _, query := range []string{"Özlem", "özlem", "ÖZLEM", "Ünal", "ünal", "nal"} {
		found, err := s.SearchByText(ctx, owner, query)
		require.NoError(t, err)
		if assert.Len(t, found, 1, query) {
			assert.Equal(t, created.Id, found[0].Id, query)
		}
	}
}
