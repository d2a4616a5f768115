// Package postgres stores claims in PostgreSQL.
//
// A partial unique index on job_id over the active statuses makes claim
// insertion atomic: the second claimant's insert hits ON CONFLICT DO NOTHING
// and comes back empty. Updates are guarded by the version column.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/detailing/internal/domain"
)

//go:embed schema.sql
var schema string

const (
	table = "detailing_claims"

	uniqueViolation = "23505"
)

var columns = []string{
	"job_id", "claimed_by_username", "claimed_at", "job_number",
	"client_id", "client_name", "engineer_id", "engineer_name",
	"claimed_by_staff_id", "status", "file_sets", "version",
}

var activeStatuses = []string{
	string(domain.StatusUnverified),
	string(domain.StatusStarted),
	string(domain.StatusPaused),
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Store is a claim store backed by PostgreSQL.
type Store struct {
	db DBTX
	sq sq.StatementBuilderType
}

// New creates a store using db.
func New(db DBTX) *Store {
	return &Store{db: db, sq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// Migrate creates the claims table and its indexes if they are missing.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, c domain.Claim) (domain.Claim, error) {
	fileSets, err := encodeFileSets(c.FileSets)
	if err != nil {
		return domain.Claim{}, err
	}

	query, args, err := s.sq.Insert(table).
		Columns(columns...).
		Values(c.JobID, c.ClaimedByUsername, c.ClaimedAt, c.JobNumber,
			c.ClientID, c.ClientName, c.EngineerID, c.EngineerName,
			c.ClaimedByStaffID, string(c.Status), fileSets, 1).
		Suffix("ON CONFLICT DO NOTHING RETURNING version").
		ToSql()
	if err != nil {
		return domain.Claim{}, fmt.Errorf("build insert: %w", err)
	}

	var version int64
	err = s.db.QueryRow(ctx, query, args...).Scan(&version)
	switch {
	case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
		return domain.Claim{}, fmt.Errorf("job %s: %w", c.JobID, domain.ErrAlreadyClaimed)
	case err != nil:
		return domain.Claim{}, fmt.Errorf("insert claim: %w", err)
	}

	c = c.Clone()
	c.Version = version
	return c, nil
}

func (s *Store) Update(ctx context.Context, c domain.Claim) (domain.Claim, error) {
	fileSets, err := encodeFileSets(c.FileSets)
	if err != nil {
		return domain.Claim{}, err
	}

	query, args, err := s.sq.Update(table).
		Set("job_number", c.JobNumber).
		Set("client_id", c.ClientID).
		Set("client_name", c.ClientName).
		Set("engineer_id", c.EngineerID).
		Set("engineer_name", c.EngineerName).
		Set("claimed_by_staff_id", c.ClaimedByStaffID).
		Set("status", string(c.Status)).
		Set("file_sets", fileSets).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", sq.Expr("now()")).
		Where(keyEq(c.Key())).
		Where(sq.Eq{"version": c.Version}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return domain.Claim{}, fmt.Errorf("build update: %w", err)
	}

	var version int64
	err = s.db.QueryRow(ctx, query, args...).Scan(&version)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, findErr := s.FindByKey(ctx, c.Key()); findErr != nil {
			return domain.Claim{}, findErr
		}
		return domain.Claim{}, fmt.Errorf("claim %s version %d: %w", c.Key(), c.Version, domain.ErrStaleClaim)
	case isUniqueViolation(err):
		return domain.Claim{}, fmt.Errorf("job %s: %w", c.JobID, domain.ErrAlreadyClaimed)
	case err != nil:
		return domain.Claim{}, fmt.Errorf("update claim: %w", err)
	}

	c = c.Clone()
	c.Version = version
	return c, nil
}

func (s *Store) FindByKey(ctx context.Context, key domain.ClaimKey) (domain.Claim, error) {
	return s.one(ctx, s.selectClaims().Where(keyEq(key)), "claim "+key.String())
}

func (s *Store) FindActive(ctx context.Context, jobID string) (domain.Claim, error) {
	q := s.selectClaims().Where(sq.Eq{"job_id": jobID, "status": activeStatuses})
	return s.one(ctx, q, "active claim for "+jobID)
}

func (s *Store) FindStarted(ctx context.Context, jobID, username string) (domain.Claim, error) {
	return s.findOwned(ctx, jobID, username, domain.StatusStarted)
}

func (s *Store) FindPaused(ctx context.Context, jobID, username string) (domain.Claim, error) {
	return s.findOwned(ctx, jobID, username, domain.StatusPaused)
}

func (s *Store) findOwned(ctx context.Context, jobID, username string, status domain.Status) (domain.Claim, error) {
	q := s.selectClaims().Where(sq.Eq{
		"job_id":              jobID,
		"claimed_by_username": username,
		"status":              string(status),
	})
	return s.one(ctx, q, fmt.Sprintf("%s claim for %s by %s", status, jobID, username))
}

func (s *Store) FindByJob(ctx context.Context, jobID string) ([]domain.Claim, error) {
	q := s.selectClaims().
		Where(sq.Eq{"job_id": jobID}).
		OrderBy("claimed_at ASC", "claimed_by_username ASC")
	return s.many(ctx, q)
}

func (s *Store) List(ctx context.Context, f domain.ClaimFilter) ([]domain.Claim, int, error) {
	where := filterWhere(f)

	countSQL, countArgs, err := s.sq.Select("count(*)").From(table).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := s.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count claims: %w", err)
	}

	claims, err := s.many(ctx, s.listQuery(f))
	if err != nil {
		return nil, 0, err
	}
	return claims, total, nil
}

func (s *Store) listQuery(f domain.ClaimFilter) sq.SelectBuilder {
	q := s.selectClaims().
		Where(filterWhere(f)).
		OrderBy("claimed_at DESC", "job_id ASC", "claimed_by_username ASC")
	if f.PageSize > 0 {
		q = q.Limit(uint64(f.PageSize)).Offset(uint64(f.Offset()))
	}
	return q
}

func filterWhere(f domain.ClaimFilter) sq.And {
	where := sq.And{}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, sq.Eq{"status": statuses})
	}
	if f.Username != "" {
		where = append(where, sq.Eq{"claimed_by_username": f.Username})
	}
	if len(f.JobIDs) > 0 {
		where = append(where, sq.Eq{"job_id": f.JobIDs})
	}
	return where
}

func keyEq(k domain.ClaimKey) sq.Eq {
	return sq.Eq{
		"job_id":              k.JobID,
		"claimed_by_username": k.Username,
		"claimed_at":          domain.ClaimInstant(k.ClaimedAt),
	}
}

func (s *Store) selectClaims() sq.SelectBuilder {
	return s.sq.Select(columns...).From(table)
}

func (s *Store) one(ctx context.Context, q sq.SelectBuilder, what string) (domain.Claim, error) {
	query, args, err := q.Limit(1).ToSql()
	if err != nil {
		return domain.Claim{}, fmt.Errorf("build query: %w", err)
	}

	c, err := scanClaim(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Claim{}, fmt.Errorf("%s: %w", what, domain.ErrClaimNotFound)
	}
	if err != nil {
		return domain.Claim{}, fmt.Errorf("find %s: %w", what, err)
	}
	return c, nil
}

func (s *Store) many(ctx context.Context, q sq.SelectBuilder) ([]domain.Claim, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	out := []domain.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}
	return out, nil
}

func scanClaim(row pgx.Row) (domain.Claim, error) {
	var (
		c         domain.Claim
		status    string
		fileSets  []byte
		claimedAt time.Time
	)
	err := row.Scan(
		&c.JobID, &c.ClaimedByUsername, &claimedAt, &c.JobNumber,
		&c.ClientID, &c.ClientName, &c.EngineerID, &c.EngineerName,
		&c.ClaimedByStaffID, &status, &fileSets, &c.Version,
	)
	if err != nil {
		return domain.Claim{}, err
	}

	c.ClaimedAt = domain.ClaimInstant(claimedAt)
	c.Status = domain.Status(status)
	c.FileSets, err = decodeFileSets(fileSets)
	if err != nil {
		return domain.Claim{}, err
	}
	return c, nil
}

func encodeFileSets(sets map[string]domain.FileSet) (string, error) {
	if sets == nil {
		sets = map[string]domain.FileSet{}
	}
	b, err := json.Marshal(sets)
	if err != nil {
		return "", fmt.Errorf("encode file sets: %w", err)
	}
	return string(b), nil
}

func decodeFileSets(b []byte) (map[string]domain.FileSet, error) {
	sets := map[string]domain.FileSet{}
	if len(b) == 0 {
		return sets, nil
	}
	if err := json.Unmarshal(b, &sets); err != nil {
		return nil, fmt.Errorf("decode file sets: %w", err)
	}
	return sets, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
