package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"user_service/internal/models"
	"user_service/internal/storage/migrations"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
)

const usersTable = "users"

const uniqueViolationCode = "23505"

// PersistentStore is the production backend: one base table keyed by
// (tenant, id) plus unique secondary indexes on (tenant, login) and
// (tenant, email). Every query carries the tenant, so one pool can serve
// several tenant-scoped store instances.
type PersistentStore struct {
	db     *pgxpool.Pool
	tenant string
}

func NewPersistentStore(ctx context.Context, dbURL, tenant string) (*PersistentStore, error) {
	const op = "storage.NewPersistentStore"

	pool, err := pgxpool.Connect(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	return &PersistentStore{db: pool, tenant: tenant}, nil
}

// RunMigrations applies the embedded goose migrations against the database.
func RunMigrations(ctx context.Context, dbURL string) error {
	const op = "storage.RunMigrations"

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *PersistentStore) TenantID() string {
	return p.tenant
}

func (p *PersistentStore) Close() {
	p.db.Close()
}

const recordColumns = "tenant, id, login, email, password_hash, name, surname, record_kind, tokens, old_passwords"

func (p *PersistentStore) FindByID(ctx context.Context, id string) (models.UserRecord, error) {
	const op = "storage.FindByID"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE tenant=$1 AND id=$2;", recordColumns, usersTable)
	return p.queryRecord(ctx, op, query, p.tenant, id)
}

func (p *PersistentStore) FindByLogin(ctx context.Context, login string) (models.UserRecord, error) {
	const op = "storage.FindByLogin"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE tenant=$1 AND login=$2;", recordColumns, usersTable)
	return p.queryRecord(ctx, op, query, p.tenant, login)
}

func (p *PersistentStore) FindByEmail(ctx context.Context, email string) (models.UserRecord, error) {
	const op = "storage.FindByEmail"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE tenant=$1 AND email=$2;", recordColumns, usersTable)
	return p.queryRecord(ctx, op, query, p.tenant, email)
}

func (p *PersistentStore) FindByPrimaryFields(ctx context.Context, q Query) (models.UserRecord, error) {
	switch {
	case q.ID != "":
		return p.FindByID(ctx, q.ID)
	case q.Email != "":
		return p.FindByEmail(ctx, q.Email)
	case q.Login != "":
		return p.FindByLogin(ctx, q.Login)
	default:
		return models.UserRecord{}, ErrNotFound
	}
}

func (p *PersistentStore) Exists(ctx context.Context, q Query) (bool, error) {
	_, err := p.FindByPrimaryFields(ctx, q)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *PersistentStore) Create(ctx context.Context, rec models.UserRecord) (models.UserRecord, error) {
	const op = "storage.Create"

	for _, q := range []Query{{Login: rec.Login}, {Email: rec.Email}} {
		taken, err := p.Exists(ctx, q)
		if err != nil {
			return models.UserRecord{}, err
		}
		if taken {
			return models.UserRecord{}, ErrConflict
		}
	}

	rec.Tenant = p.tenant

	tokens, oldPasswords, err := marshalSlices(rec)
	if err != nil {
		return models.UserRecord{}, fmt.Errorf("%s: %w", op, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s(%s)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`, usersTable, recordColumns)

	_, err = p.db.Exec(ctx, query,
		rec.Tenant, rec.ID, rec.Login, rec.Email, rec.PasswordHash,
		rec.Name, rec.Surname, rec.RecordKind, tokens, oldPasswords,
	)
	if err != nil {
		// The unique indexes close the pre-check race: the losing insert
		// surfaces as a conflict, not a fault.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return models.UserRecord{}, ErrConflict
		}
		return models.UserRecord{}, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	return rec, nil
}

func (p *PersistentStore) Update(ctx context.Context, id string, rec models.UserRecord) (models.UserRecord, error) {
	const op = "storage.Update"

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return models.UserRecord{}, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf("SELECT %s FROM %s WHERE tenant=$1 AND id=$2 FOR UPDATE;", recordColumns, usersTable)
	stored, err := scanRecord(tx.QueryRow(ctx, query, p.tenant, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserRecord{}, ErrNotFound
		}
		return models.UserRecord{}, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	merged := mergeRecord(stored, rec)

	tokens, oldPasswords, err := marshalSlices(merged)
	if err != nil {
		return models.UserRecord{}, fmt.Errorf("%s: %w", op, err)
	}

	update := fmt.Sprintf(`UPDATE %s SET
	login=$3, email=$4, password_hash=$5, name=$6, surname=$7, record_kind=$8, tokens=$9, old_passwords=$10
	WHERE tenant=$1 AND id=$2;`, usersTable)

	_, err = tx.Exec(ctx, update,
		merged.Tenant, merged.ID, merged.Login, merged.Email, merged.PasswordHash,
		merged.Name, merged.Surname, merged.RecordKind, tokens, oldPasswords,
	)
	if err != nil {
		return models.UserRecord{}, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.UserRecord{}, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	return merged, nil
}

func (p *PersistentStore) Delete(ctx context.Context, id string) (bool, error) {
	const op = "storage.Delete"

	query := fmt.Sprintf("DELETE FROM %s WHERE tenant=$1 AND id=$2;", usersTable)
	if _, err := p.db.Exec(ctx, query, p.tenant, id); err != nil {
		return false, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return true, nil
}

func (p *PersistentStore) queryRecord(ctx context.Context, op, query string, args ...interface{}) (models.UserRecord, error) {
	rec, err := scanRecord(p.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserRecord{}, ErrNotFound
		}
		return models.UserRecord{}, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (models.UserRecord, error) {
	var rec models.UserRecord
	var tokens, oldPasswords []byte

	err := row.Scan(
		&rec.Tenant, &rec.ID, &rec.Login, &rec.Email, &rec.PasswordHash,
		&rec.Name, &rec.Surname, &rec.RecordKind, &tokens, &oldPasswords,
	)
	if err != nil {
		return rec, err
	}

	if len(tokens) > 0 {
		if err := json.Unmarshal(tokens, &rec.Tokens); err != nil {
			return rec, err
		}
	}
	if len(oldPasswords) > 0 {
		if err := json.Unmarshal(oldPasswords, &rec.OldPasswords); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func marshalSlices(rec models.UserRecord) ([]byte, []byte, error) {
	tokens, err := json.Marshal(rec.Tokens)
	if err != nil {
		return nil, nil, err
	}
	oldPasswords, err := json.Marshal(rec.OldPasswords)
	if err != nil {
		return nil, nil, err
	}
	return tokens, oldPasswords, nil
}
