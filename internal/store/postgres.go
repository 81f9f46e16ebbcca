package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"habitsync/internal/logger"
	"habitsync/internal/remote"
)

// Account is a registered user, owned by the auth service.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// PostgresStore keeps all collections in one documents table with a JSONB
// payload. Successful writes publish a change event on the bus; publishing is
// best-effort since subscribers refetch rather than patch.
type PostgresStore struct {
	db  *sql.DB
	bus remote.Bus
}

func NewPostgresStore(db *sql.DB, bus remote.Bus) *PostgresStore {
	return &PostgresStore{db: db, bus: bus}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) List(ctx context.Context, collection string, queries ...remote.Query) ([]remote.Document, error) {
	query := `SELECT collection, id, user_id, created_at, fields FROM documents WHERE collection=$1`
	args := []any{collection}
	limit := 0

	for _, q := range queries {
		switch q.Op {
		case remote.OpEqual:
			if !validFieldName(q.Field) {
				return nil, fmt.Errorf("invalid field name %q", q.Field)
			}
			args = append(args, q.Value)
			if q.Field == "user_id" {
				query += ` AND user_id=$` + strconv.Itoa(len(args))
			} else {
				query += fmt.Sprintf(` AND fields->>'%s'=$%d`, q.Field, len(args))
			}
		case remote.OpGreaterThanEqual:
			if !validFieldName(q.Field) {
				return nil, fmt.Errorf("invalid field name %q", q.Field)
			}
			// Timestamps are stored as RFC3339 strings, which order
			// lexicographically.
			args = append(args, q.Value)
			query += fmt.Sprintf(` AND fields->>'%s'>=$%d`, q.Field, len(args))
		case remote.OpLimit:
			if n, ok := q.Value.(int); ok && n > 0 {
				limit = n
			}
		default:
			return nil, fmt.Errorf("unsupported query op %q", q.Op)
		}
	}

	query += ` ORDER BY created_at`
	if limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	items := make([]remote.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return items, nil
}

func (s *PostgresStore) Create(ctx context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return remote.Document{}, fmt.Errorf("marshal fields: %w", err)
	}
	userID, _ := fields["user_id"].(string)

	var doc remote.Document
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (collection, id, user_id, fields)
		VALUES ($1, $2, $3, $4)
		RETURNING collection, id, user_id, created_at, fields
	`, collection, id, userID, payload).Scan(&doc.Collection, &doc.ID, &doc.UserID, &doc.CreatedAt, &payload)
	if err != nil {
		return remote.Document{}, fmt.Errorf("create document: %w", err)
	}
	if err := json.Unmarshal(payload, &doc.Fields); err != nil {
		return remote.Document{}, fmt.Errorf("decode fields: %w", err)
	}

	s.publish(ctx, remote.EventCreate, doc)
	return doc, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return remote.Document{}, fmt.Errorf("marshal fields: %w", err)
	}

	var doc remote.Document
	err = s.db.QueryRowContext(ctx, `
		UPDATE documents
		SET fields = fields || $3::jsonb
		WHERE collection=$1 AND id=$2
		RETURNING collection, id, user_id, created_at, fields
	`, collection, id, payload).Scan(&doc.Collection, &doc.ID, &doc.UserID, &doc.CreatedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return remote.Document{}, remote.ErrNotFound
	}
	if err != nil {
		return remote.Document{}, fmt.Errorf("update document: %w", err)
	}
	if err := json.Unmarshal(payload, &doc.Fields); err != nil {
		return remote.Document{}, fmt.Errorf("decode fields: %w", err)
	}

	s.publish(ctx, remote.EventUpdate, doc)
	return doc, nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	var doc remote.Document
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM documents
		WHERE collection=$1 AND id=$2
		RETURNING collection, id, user_id, created_at, fields
	`, collection, id).Scan(&doc.Collection, &doc.ID, &doc.UserID, &doc.CreatedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return remote.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := json.Unmarshal(payload, &doc.Fields); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}

	s.publish(ctx, remote.EventDelete, doc)
	return nil
}

func (s *PostgresStore) publish(ctx context.Context, kind remote.EventKind, doc remote.Document) {
	if s.bus == nil {
		return
	}
	event := remote.Event{Kind: kind, Collection: doc.Collection, Document: doc}
	if err := s.bus.Publish(ctx, event); err != nil {
		logger.Warn("publish change event failed", "collection", doc.Collection, "kind", kind, "error", err)
	}
}

// validFieldName rejects anything that could escape the JSONB path literal.
func validFieldName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r != '_' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (remote.Document, error) {
	var doc remote.Document
	var payload []byte
	if err := row.Scan(&doc.Collection, &doc.ID, &doc.UserID, &doc.CreatedAt, &payload); err != nil {
		return remote.Document{}, err
	}
	if err := json.Unmarshal(payload, &doc.Fields); err != nil {
		return remote.Document{}, fmt.Errorf("decode fields: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
	`, account.ID, account.Email, account.Name, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	var account Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at FROM accounts WHERE email=$1
	`, email).Scan(&account.ID, &account.Email, &account.Name, &account.PasswordHash, &account.CreatedAt)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (s *PostgresStore) GetAccountByID(ctx context.Context, id string) (Account, error) {
	var account Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at FROM accounts WHERE id=$1
	`, id).Scan(&account.ID, &account.Email, &account.Name, &account.PasswordHash, &account.CreatedAt)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}
