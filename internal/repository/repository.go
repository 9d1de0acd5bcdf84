package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Talha-Khalil/bet-you-can-t/internal/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repository struct {
	db *sql.DB
	q  DBTX
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, q: db}
}

// InTx runs fn against a repository bound to a single transaction. The
// transaction is committed when fn returns nil and rolled back otherwise.
func (r *Repository) InTx(ctx context.Context, fn func(tx *Repository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Repository{db: r.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const userColumns = `id, email, name, profile_pic, created_at`

// User methods

// EnsureUser creates the user on first sight and leaves an existing row
// untouched: a hit is a plain read, not an update.
//
// The insert and the lookup share one statement snapshot, so when a
// concurrent insert of the same email commits while ours waits on the
// unique index, neither branch returns a row. The next statement sees the
// committed row, hence the single retry.
func (r *Repository) EnsureUser(ctx context.Context, email string, defaults models.UserDefaults) (*models.User, error) {
	id := uuid.NewString()
	for attempt := 0; ; attempt++ {
		row := r.q.QueryRowContext(ctx, `
			WITH ins AS (
				INSERT INTO users (id, email, name, profile_pic)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (email) DO NOTHING
				RETURNING `+userColumns+`
			)
			SELECT `+userColumns+` FROM ins
			UNION ALL
			SELECT `+userColumns+` FROM users WHERE email = $2
			LIMIT 1`,
			id, email, nullString(defaults.Name), nullString(defaults.ProfilePic))

		user, err := scanUser(row)
		if errors.Is(err, sql.ErrNoRows) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ensure user: %w", err)
		}
		return user, nil
	}
}

// SyncUser creates the user or overwrites name and picture with the
// supplied values, keeping the stored ones where the new value is empty.
// changed reports whether an existing row got a different name or picture.
func (r *Repository) SyncUser(ctx context.Context, email, name, profilePic string) (user *models.User, changed bool, err error) {
	row := r.q.QueryRowContext(ctx, `
		WITH prev AS (
			SELECT name, profile_pic FROM users WHERE email = $2
		)
		INSERT INTO users (id, email, name, profile_pic)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, users.name),
			profile_pic = COALESCE(EXCLUDED.profile_pic, users.profile_pic)
		RETURNING `+userColumns+`, EXISTS (
			SELECT 1 FROM prev p
			WHERE p.name IS DISTINCT FROM users.name
				OR p.profile_pic IS DISTINCT FROM users.profile_pic
		)`,
		uuid.NewString(), email, nullString(name), nullString(profilePic))

	var u models.User
	var n, pic sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &n, &pic, &u.CreatedAt, &changed); err != nil {
		return nil, false, fmt.Errorf("sync user: %w", err)
	}
	u.Name = stringPtr(n)
	u.ProfilePic = stringPtr(pic)
	return &u, changed, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// SearchUsers matches the query case-insensitively against email or name.
func (r *Repository) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email ILIKE $1 OR name ILIKE $1
		ORDER BY email
		LIMIT $2
	`, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("search users: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// Challenge methods

func (r *Repository) CreateChallenge(ctx context.Context, description, charity string, deadline time.Time, challengerID, challengedID string) (*models.Challenge, error) {
	var c models.Challenge
	var status string
	var charityCol sql.NullString
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO challenges (id, description, charity, deadline, status, challenger_id, challenged_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, description, charity, deadline, status, challenger_id, challenged_id, created_at
	`, uuid.NewString(), description, nullString(charity), deadline, string(models.StatusPending), challengerID, challengedID).Scan(
		&c.ID, &c.Description, &charityCol, &c.Deadline, &status,
		&c.ChallengerID, &c.ChallengedID, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}
	c.Charity = stringPtr(charityCol)
	c.Status = models.ChallengeStatus(status)
	return &c, nil
}

// ListRecentChallenges returns the newest challenges across all users with
// the name and email of both parties.
func (r *Repository) ListRecentChallenges(ctx context.Context, limit int) ([]models.FeedEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT c.id, c.description, c.charity, c.deadline, c.status, c.challenger_id, c.challenged_id, c.created_at,
			cr.name, cr.email, cd.name, cd.email
		FROM challenges c
		INNER JOIN users cr ON cr.id = c.challenger_id
		INNER JOIN users cd ON cd.id = c.challenged_id
		ORDER BY c.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent challenges: %w", err)
	}
	defer rows.Close()

	entries := []models.FeedEntry{}
	for rows.Next() {
		var e models.FeedEntry
		var status string
		var charity, challengerName, challengedName sql.NullString
		if err := rows.Scan(&e.ID, &e.Description, &charity, &e.Deadline, &status,
			&e.ChallengerID, &e.ChallengedID, &e.CreatedAt,
			&challengerName, &e.Challenger.Email, &challengedName, &e.Challenged.Email); err != nil {
			return nil, fmt.Errorf("list recent challenges: %w", err)
		}
		e.Charity = stringPtr(charity)
		e.Status = models.ChallengeStatus(status)
		e.Challenger.Name = stringPtr(challengerName)
		e.Challenged.Name = stringPtr(challengedName)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recent challenges: %w", err)
	}
	return entries, nil
}

// ListChallengesByChallenger returns every challenge issued by the user with
// the given email, newest first, with both parties fully loaded.
func (r *Repository) ListChallengesByChallenger(ctx context.Context, email string) ([]models.DashboardEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT c.id, c.description, c.charity, c.deadline, c.status, c.challenger_id, c.challenged_id, c.created_at,
			cr.id, cr.email, cr.name, cr.profile_pic, cr.created_at,
			cd.id, cd.email, cd.name, cd.profile_pic, cd.created_at
		FROM challenges c
		INNER JOIN users cr ON cr.id = c.challenger_id
		INNER JOIN users cd ON cd.id = c.challenged_id
		WHERE cr.email = $1
		ORDER BY c.created_at DESC
	`, email)
	if err != nil {
		return nil, fmt.Errorf("list challenges by challenger: %w", err)
	}
	defer rows.Close()

	entries := []models.DashboardEntry{}
	for rows.Next() {
		var e models.DashboardEntry
		var status string
		var charity, crName, crPic, cdName, cdPic sql.NullString
		if err := rows.Scan(&e.ID, &e.Description, &charity, &e.Deadline, &status,
			&e.ChallengerID, &e.ChallengedID, &e.CreatedAt,
			&e.Challenger.ID, &e.Challenger.Email, &crName, &crPic, &e.Challenger.CreatedAt,
			&e.Challenged.ID, &e.Challenged.Email, &cdName, &cdPic, &e.Challenged.CreatedAt); err != nil {
			return nil, fmt.Errorf("list challenges by challenger: %w", err)
		}
		e.Charity = stringPtr(charity)
		e.Status = models.ChallengeStatus(status)
		e.Challenger.Name, e.Challenger.ProfilePic = stringPtr(crName), stringPtr(crPic)
		e.Challenged.Name, e.Challenged.ProfilePic = stringPtr(cdName), stringPtr(cdPic)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list challenges by challenger: %w", err)
	}
	return entries, nil
}

// Notification methods

func (r *Repository) CreateNotification(ctx context.Context, userID, message string) (*models.Notification, error) {
	var n models.Notification
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO notifications (id, user_id, message, read)
		VALUES ($1, $2, $3, false)
		RETURNING id, user_id, message, read, created_at
	`, uuid.NewString(), userID, message).Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return &n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	var u models.User
	var name, pic sql.NullString
	if err := s.Scan(&u.ID, &u.Email, &name, &pic, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Name = stringPtr(name)
	u.ProfilePic = stringPtr(pic)
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
