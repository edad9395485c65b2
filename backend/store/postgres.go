package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/roomiematch/roomiematch/backend/model"
)

// Postgres keeps each user as a JSONB document next to the columns that need
// constraints or must stay out of the document (credentials, request origin).
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL,
	username      TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	ip_address    TEXT NOT NULL DEFAULT '',
	user_agent    TEXT NOT NULL DEFAULT '',
	revision      BIGINT NOT NULL DEFAULT 1,
	doc           JSONB NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT users_email_key UNIQUE (email),
	CONSTRAINT users_username_key UNIQUE (username)
);
CREATE INDEX IF NOT EXISTS users_doc_idx ON users USING GIN (doc jsonb_path_ops);
CREATE INDEX IF NOT EXISTS users_registered_at_idx ON users (registered_at DESC);
`

// OpenPostgres connects to dsn, checks the connection and creates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot reach postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &Postgres{db: db, now: time.Now}, nil
}

const selectUser = `SELECT password_hash, ip_address, user_agent, revision, doc FROM users`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u   model.User
		doc []byte
	)
	var hash, ip, ua string
	var rev int64
	if err := row.Scan(&hash, &ip, &ua, &rev, &doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, fmt.Errorf("decode user document: %w", err)
	}
	u.Account.PasswordHash = hash
	u.Metadata.IPAddress = ip
	u.Metadata.UserAgent = ua
	u.Revision = rev
	return &u, nil
}

func scanUsers(rows *sql.Rows) ([]*model.User, error) {
	defer rows.Close()
	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// encode marshals the document. Nil slices are stored as empty arrays so the
// JSON path queries never meet a null.
func encode(u *model.User) ([]byte, error) {
	c := u.Clone()
	if c.HousingInfo.SelectedLocations == nil {
		c.HousingInfo.SelectedLocations = []model.LocationPreference{}
	}
	if c.ProfessionalInfo.Languages == nil {
		c.ProfessionalInfo.Languages = []string{}
	}
	if c.PersonalInfo.Sex == nil {
		c.PersonalInfo.Sex = []string{}
	}
	return json.Marshal(c)
}

// mapUniqueViolation turns a unique constraint failure into *DuplicateError.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if strings.Contains(pqErr.Constraint, "username") {
			return &DuplicateError{Field: "username"}
		}
		return &DuplicateError{Field: "email"}
	}
	return err
}

func (p *Postgres) Create(ctx context.Context, u *model.User) error {
	touch(u, p.now())
	u.Revision = 1
	doc, err := encode(u)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO users (id, email, username, password_hash, ip_address, user_agent, revision, doc, registered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, strings.ToLower(u.Account.Email), strings.ToLower(u.Account.Username), u.Account.PasswordHash,
		u.Metadata.IPAddress, u.Metadata.UserAgent, u.Revision, doc,
		u.Metadata.RegistrationDate, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*model.User, error) {
	return scanUser(p.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id))
}

func (p *Postgres) GetMany(ctx context.Context, ids []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := p.db.QueryContext(ctx, selectUser+` WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	users, err := scanUsers(rows)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (p *Postgres) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(p.db.QueryRowContext(ctx, selectUser+` WHERE email = $1`, strings.ToLower(email)))
}

// withTx wraps a function in a database transaction.
// COMMIT on success, ROLLBACK on errors or panics.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Mutate takes a row lock (FOR UPDATE) so concurrent writers of the same user
// are serialized.
func (p *Postgres) Mutate(ctx context.Context, id string, fn func(*model.User) error) (*model.User, error) {
	var out *model.User
	err := withTx(ctx, p.db, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, selectUser+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		u.ID = id
		touch(u, p.now())
		u.Revision++
		doc, err := encode(u)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE users
			SET email = $2, username = $3, password_hash = $4, revision = $5, doc = $6, updated_at = $7
			WHERE id = $1`,
			id, strings.ToLower(u.Account.Email), strings.ToLower(u.Account.Username), u.Account.PasswordHash,
			u.Revision, doc, u.UpdatedAt,
		)
		if err != nil {
			return mapUniqueViolation(err)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const (
	isActive    = `(doc->'metadata'->>'isActive')::boolean`
	isOnboarded = `(doc->'metadata'->>'onboardingCompleted')::boolean`
	locations   = `jsonb_array_elements(doc->'housingInfo'->'selectedLocations')`
)

func (p *Postgres) FindCandidates(ctx context.Context, q CandidateQuery) ([]*model.User, error) {
	limit := sql.NullInt64{Int64: int64(q.Limit), Valid: q.Limit > 0}
	rows, err := p.db.QueryContext(ctx, selectUser+`
		WHERE id <> $1
		  AND `+isActive+`
		  AND `+isOnboarded+`
		  AND EXISTS (SELECT 1 FROM `+locations+` l WHERE l->>'id' = ANY($2))
		ORDER BY registered_at DESC, id
		LIMIT $3`,
		q.ExcludeID, pq.Array(q.LocationIDs), limit,
	)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}

func (p *Postgres) List(ctx context.Context, q ListQuery) ([]*model.User, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.OnboardingCompleted != nil {
		where = append(where, isOnboarded+` = `+arg(*q.OnboardingCompleted))
	}
	if q.IsActive != nil {
		where = append(where, isActive+` = `+arg(*q.IsActive))
	}
	if q.Occupation != "" {
		where = append(where, `doc->'professionalInfo'->>'occupation' = `+arg(q.Occupation))
	}
	if q.Borough != "" {
		where = append(where, `EXISTS (SELECT 1 FROM `+locations+` l WHERE l->>'borough' = `+arg(q.Borough)+`)`)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectUser + clause + ` ORDER BY registered_at DESC, id LIMIT ` + arg(q.Limit) + ` OFFSET ` + arg(q.offset())
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	users, err := scanUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (p *Postgres) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	st := &Stats{Completeness: emptyBuckets()}

	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE `+isActive+`),
		       COUNT(*) FILTER (WHERE `+isOnboarded+`),
		       COUNT(*) FILTER (WHERE registered_at >= $1)
		FROM users`, since,
	).Scan(&st.Total, &st.Active, &st.Onboarded, &st.RegisteredSince)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT l->>'borough', l->>'neighborhood', COUNT(*)
		FROM users, `+locations+` l
		GROUP BY 1, 2
		ORDER BY 3 DESC, 1, 2
		LIMIT $1`, topLocations)
	if err != nil {
		return nil, fmt.Errorf("location stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lc LocationCount
		if err := rows.Scan(&lc.Borough, &lc.Neighborhood, &lc.Count); err != nil {
			return nil, err
		}
		st.TopLocations = append(st.TopLocations, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if st.TopBoroughs, err = p.valueCounts(ctx, `
		SELECT l->>'borough', COUNT(*)
		FROM users, `+locations+` l
		GROUP BY 1
		ORDER BY 2 DESC, 1
		LIMIT $1`, topBoroughs); err != nil {
		return nil, fmt.Errorf("borough stats: %w", err)
	}

	if st.TopOccupations, err = p.valueCounts(ctx, `
		SELECT doc->'professionalInfo'->>'occupation', COUNT(*)
		FROM users
		WHERE COALESCE(doc->'professionalInfo'->>'occupation', '') <> ''
		GROUP BY 1
		ORDER BY 2 DESC, 1
		LIMIT $1`, topOccupations); err != nil {
		return nil, fmt.Errorf("occupation stats: %w", err)
	}

	crows, err := p.db.QueryContext(ctx, `
		SELECT COALESCE((doc->'metadata'->>'profileCompleteness')::int, 0), COUNT(*)
		FROM users
		GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("completeness stats: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var completeness, n int
		if err := crows.Scan(&completeness, &n); err != nil {
			return nil, err
		}
		st.Completeness[bucketIndex(completeness)].Count += n
	}
	return st, crows.Err()
}

func (p *Postgres) valueCounts(ctx context.Context, query string, args ...any) ([]ValueCount, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ValueCount
	for rows.Next() {
		var vc ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close(ctx context.Context) error {
	return p.db.Close()
}
