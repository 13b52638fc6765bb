// Package store gives access to the contacts database. Every operation is scoped to the owner
// passed in: contacts of other owners can neither be seen nor changed, and looking one up behaves
// exactly as if it did not exist.
//
// Lookups that find nothing return a nil contact and a nil error. Errors are reserved for failures
// of the database itself and wrap the driver's error.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"gitlab.com/dirk.krummacker/contactbook/internal/birthday"
	"gitlab.com/dirk.krummacker/contactbook/internal/config"
	"gitlab.com/dirk.krummacker/contactbook/internal/model"
)

// MaxLimit is the largest possible limit; it is used when a listing shall not be truncated.
const MaxLimit = int(^uint(0) >> 1)

// contactColumns are the columns of the contacts table in the order of model.Contact.
const contactColumns = `id, first_name, last_name, email, phone, birthday, comments, favorite, user_id`

const (
	insertSQL = `
		INSERT INTO contacts (first_name, last_name, email, phone, birthday, comments, favorite, user_id)
		VALUES (:first_name, :last_name, :email, :phone, :birthday, :comments, :favorite, :user_id)`
	selectWhereIdSQL = `
		SELECT ` + contactColumns + ` FROM contacts WHERE id = ? AND user_id = ?`
	selectWhereEmailSQL = `
		SELECT ` + contactColumns + ` FROM contacts WHERE user_id = ? AND email = ? ORDER BY id`
	updateSQL = `
		UPDATE contacts
		SET first_name = :first_name, last_name = :last_name, email = :email, phone = :phone,
			birthday = :birthday, comments = :comments, favorite = :favorite
		WHERE id = :id AND user_id = :user_id`
	updateFavoriteSQL = `
		UPDATE contacts SET favorite = ? WHERE id = ? AND user_id = ?`
	deleteSQL = `
		DELETE FROM contacts WHERE id = ? AND user_id = ?`
)

// searchSQLTemplate is completed with the name of the SQL function that lowercases text.
const searchSQLTemplate = `
	SELECT ` + contactColumns + `
	FROM contacts
	WHERE user_id = ?
		AND (%[1]s(first_name) LIKE ? ESCAPE '!'
			OR %[1]s(last_name) LIKE ? ESCAPE '!'
			OR %[1]s(email) LIKE ? ESCAPE '!')
	ORDER BY id`

// likeEscaper makes the LIKE wildcards of a search term match literally.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Store runs the contact queries and mutations. It keeps no state between calls apart from the
// database handle and its prepared statements, and is safe for concurrent use.
type Store struct {
	db               *sqlx.DB
	insert           *sqlx.NamedStmt
	selectWhereId    *sqlx.Stmt
	selectWhereEmail *sqlx.Stmt
	searchSQL        string
	now              func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock that determines "today" for the birthday search.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New prepares the frequently used statements on db and returns the store. The database can be a
// real database for production use or a mock database within unit tests.
func New(db *sqlx.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, searchSQL: fmt.Sprintf(searchSQLTemplate, "LOWER"), now: time.Now}
	if db.DriverName() == config.DriverSQLite {
		s.searchSQL = fmt.Sprintf(searchSQLTemplate, unicodeLower)
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	// Prepared statements offer a significant speed increase if executed many times.
	if s.insert, err = db.PrepareNamed(insertSQL); err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	if s.selectWhereId, err = db.Preparex(selectWhereIdSQL); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare select by id: %w", err)
	}
	if s.selectWhereEmail, err = db.Preparex(selectWhereEmailSQL); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare select by email: %w", err)
	}
	return s, nil
}

// Close releases the prepared statements. The database handle stays open.
func (s *Store) Close() error {
	var firstErr error
	closeStmt := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.insert != nil {
		closeStmt(s.insert.Close())
	}
	if s.selectWhereId != nil {
		closeStmt(s.selectWhereId.Close())
	}
	if s.selectWhereEmail != nil {
		closeStmt(s.selectWhereEmail.Close())
	}
	return firstErr
}

// List returns the owner's contacts in id order, restricted by the favorite filter, skipping
// offset contacts and returning at most limit. The result is empty rather than nil if nothing
// matches.
func (s *Store) List(ctx context.Context, owner model.OwnerID, offset, limit int, favorite model.FavoriteFilter) ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = ?`
	args := []interface{}{owner}
	if value, ok := favorite.Value(); ok {
		query += ` AND favorite = ?`
		args = append(args, value)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	contacts := []model.Contact{}
	if err := s.db.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list contacts of owner %d: %w", owner, err)
	}
	return contacts, nil
}

// GetByID returns the owner's contact with the given id, or nil if there is none.
func (s *Store) GetByID(ctx context.Context, owner model.OwnerID, id int64) (*model.Contact, error) {
	var contacts []model.Contact
	if err := s.selectWhereId.SelectContext(ctx, &contacts, id, owner); err != nil {
		return nil, fmt.Errorf("failed to select contact %d: %w", id, err)
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// GetByEmail returns the owner's first contact whose email equals the given one exactly, or nil.
// The comparison is case-sensitive even where the database collation is not.
func (s *Store) GetByEmail(ctx context.Context, owner model.OwnerID, email string) (*model.Contact, error) {
	var contacts []model.Contact
	if err := s.selectWhereEmail.SelectContext(ctx, &contacts, owner, email); err != nil {
		return nil, fmt.Errorf("failed to select contact by email: %w", err)
	}
	for i := range contacts {
		if contacts[i].Email == email {
			return &contacts[i], nil
		}
	}
	return nil, nil
}

// Create inserts a new contact for owner and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, owner model.OwnerID, fields model.ContactFields) (*model.Contact, error) {
	contact := model.Contact{Owner: owner}
	fields.Apply(&contact)

	result, err := s.insert.ExecContext(ctx, &contact)
	if err != nil {
		return nil, fmt.Errorf("failed to insert contact: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read id of new contact: %w", err)
	}
	contact.Id = id

	log.Debug().Int64("owner", int64(owner)).Int64("id", id).Msg("Contact created")
	return &contact, nil
}

// Update overwrites all fields of the owner's contact with the given id and returns the new
// version. If there is no such contact nothing is written and nil is returned.
func (s *Store) Update(ctx context.Context, owner model.OwnerID, id int64, fields model.ContactFields) (*model.Contact, error) {
	var updated *model.Contact
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		contact, err := selectForOwner(ctx, tx, owner, id)
		if err != nil || contact == nil {
			return err
		}
		fields.Apply(contact)
		if _, err := tx.NamedExecContext(ctx, updateSQL, contact); err != nil {
			return fmt.Errorf("failed to update contact %d: %w", id, err)
		}
		updated = contact
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated != nil {
		log.Debug().Int64("owner", int64(owner)).Int64("id", id).Msg("Contact updated")
	}
	return updated, nil
}

// SetFavorite changes only the favorite flag of the owner's contact with the given id and returns
// the new version, or nil if there is no such contact.
func (s *Store) SetFavorite(ctx context.Context, owner model.OwnerID, id int64, favorite bool) (*model.Contact, error) {
	var updated *model.Contact
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		contact, err := selectForOwner(ctx, tx, owner, id)
		if err != nil || contact == nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, updateFavoriteSQL, favorite, id, owner); err != nil {
			return fmt.Errorf("failed to update favorite of contact %d: %w", id, err)
		}
		contact.Favorite = favorite
		updated = contact
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the owner's contact with the given id and returns its last state, or nil if
// there is no such contact.
func (s *Store) Delete(ctx context.Context, owner model.OwnerID, id int64) (*model.Contact, error) {
	var deleted *model.Contact
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		contact, err := selectForOwner(ctx, tx, owner, id)
		if err != nil || contact == nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteSQL, id, owner); err != nil {
			return fmt.Errorf("failed to delete contact %d: %w", id, err)
		}
		deleted = contact
		return nil
	})
	if err != nil {
		return nil, err
	}
	if deleted != nil {
		log.Debug().Int64("owner", int64(owner)).Int64("id", id).Msg("Contact deleted")
	}
	return deleted, nil
}

// SearchByText returns all of the owner's contacts whose first name, last name or email contains
// the query, ignoring case. An empty query matches every contact.
func (s *Store) SearchByText(ctx context.Context, owner model.OwnerID, query string) ([]model.Contact, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	contacts := []model.Contact{}
	if err := s.db.SelectContext(ctx, &contacts, s.searchSQL, owner, pattern, pattern, pattern); err != nil {
		return nil, fmt.Errorf("failed to search contacts: %w", err)
	}
	return contacts, nil
}

// SearchUpcomingBirthdays returns the owner's contacts whose birthday is at most q.Days days
// ahead in the current year. Skip and Limit page through the owner's contacts before the birthday
// filter is applied, so a page can contain fewer matches than Limit although more exist.
func (s *Store) SearchUpcomingBirthdays(ctx context.Context, owner model.OwnerID, q model.BirthdayQuery) ([]model.Contact, error) {
	candidates, err := s.List(ctx, owner, q.Skip, q.Limit, model.AnyFavorite)
	if err != nil {
		return nil, err
	}
	return birthday.Upcoming(candidates, s.now(), q.Days), nil
}

// selectForOwner looks up a contact within a transaction. It returns nil if the contact does not
// exist or belongs to somebody else.
func selectForOwner(ctx context.Context, tx *sqlx.Tx, owner model.OwnerID, id int64) (*model.Contact, error) {
	var contacts []model.Contact
	if err := tx.SelectContext(ctx, &contacts, selectWhereIdSQL, id, owner); err != nil {
		return nil, fmt.Errorf("failed to select contact %d: %w", id, err)
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// inTx runs fn within a transaction, which is committed if fn succeeds and rolled back otherwise.
func (s *Store) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to rollback transaction")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
