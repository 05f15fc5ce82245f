package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	wa "github.com/panyam/webauth"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// driverName maps a dialect to its registered database/sql driver.
func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// UserStore is a UserDirectory over database/sql. The email column carries
// a unique constraint, so duplicate creates are rejected by the database.
type UserStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewUserStore(db *sql.DB, dialect Dialect) *UserStore {
	return &UserStore{db: db, dialect: dialect}
}

// Open connects, migrates and returns a store that owns the connection.
func Open(ctx context.Context, dialect Dialect, dsn string) (*UserStore, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// sqlite allows one writer; serialize in the pool instead of on SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	if err := Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}
	return NewUserStore(db, dialect), nil
}

func (s *UserStore) Close() error {
	return s.db.Close()
}

func (s *UserStore) DB() *sql.DB {
	return s.db
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *UserStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const userColumns = `id, username, email, password_hash, provider, created_at, updated_at`

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*wa.User, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)

	user := &wa.User{}
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Provider, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wa.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (s *UserStore) Create(ctx context.Context, user *wa.User) (*wa.User, error) {
	out := *user
	out.ID = uuid.NewString()
	if out.Provider == "" {
		out.Provider = wa.ProviderLocal
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now

	query := s.rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		out.ID, out.Username, out.Email, out.PasswordHash, out.Provider, out.CreatedAt, out.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, wa.ErrEmailTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &out, nil
}

func (s *UserStore) Save(ctx context.Context, user *wa.User) (*wa.User, error) {
	query := s.rebind(`UPDATE users SET username = ?, password_hash = ?, provider = ?, updated_at = ?
		WHERE email = ?`)

	provider := user.Provider
	if provider == "" {
		provider = wa.ProviderLocal
	}
	res, err := s.db.ExecContext(ctx, query,
		user.Username, user.PasswordHash, provider, time.Now().UTC(), user.Email)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return nil, wa.ErrUserNotFound
	}
	return s.FindByEmail(ctx, user.Email)
}
