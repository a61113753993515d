package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/streams"
)

// ProviderRepository implements models.Repository[*models.ProviderRecord].
//
// Type ids come from the providers sequence, so they are never reused after a delete. Endpoints
// are unique across all kinds.
type ProviderRepository struct {
	db      *sql.DB
	changed *streams.Signal
}

// NewProviderRepository creates a new ProviderRepository with the given database connection
func NewProviderRepository(db *sql.DB) *ProviderRepository {
	return &ProviderRepository{db: db, changed: streams.NewSignal()}
}

// Changed fires after every committed write.
func (r *ProviderRepository) Changed() *streams.Signal { return r.changed }

// Create assigns a type id and inserts the record.
func (r *ProviderRepository) Create(record *models.ProviderRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidProvider, err)
	}

	sequence, err := NextSequence(r.db, "providers")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	record.SetTypeID(int64(sequence))

	query := `
		INSERT INTO providers (kind, type_id, name, endpoint, username, password, legacy_auth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		record.Kind().String(),
		record.TypeID(),
		record.Name(),
		record.Endpoint(),
		record.Username(),
		record.Password(),
		record.LegacyAuth(),
		record.CreatedAt(),
		record.UpdatedAt(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", shared.ErrProviderExists, record.Endpoint())
	}
	if err != nil {
		return fmt.Errorf("failed to insert provider: %w", err)
	}

	r.changed.Notify()
	return nil
}

// Get retrieves a record by its identifier string, e.g. "jellyfin/3".
func (r *ProviderRepository) Get(id string) (*models.ProviderRecord, error) {
	ident := models.ParseProviderIdentifier(id)
	if !ident.Type.Remote() {
		return nil, fmt.Errorf("%w: provider %s", shared.ErrNotFound, id)
	}
	return r.GetByIdentifier(ident)
}

// GetByIdentifier retrieves a record by its identity.
func (r *ProviderRepository) GetByIdentifier(id models.ProviderIdentifier) (*models.ProviderRecord, error) {
	query := `
		SELECT kind, type_id, name, endpoint, username, password, legacy_auth, created_at, updated_at
		FROM providers
		WHERE kind = ? AND type_id = ?
	`

	return r.scan(r.db.QueryRow(query, id.Type.String(), id.TypeID))
}

// Update rewrites the name, endpoint and credentials of an existing record.
func (r *ProviderRepository) Update(record *models.ProviderRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidProvider, err)
	}

	now := time.Now()
	record.SetUpdatedAt(now)

	query := `
		UPDATE providers
		SET name = ?, endpoint = ?, username = ?, password = ?, legacy_auth = ?, updated_at = ?
		WHERE kind = ? AND type_id = ?
	`

	result, err := r.db.Exec(query,
		record.Name(),
		record.Endpoint(),
		record.Username(),
		record.Password(),
		record.LegacyAuth(),
		now,
		record.Kind().String(),
		record.TypeID(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", shared.ErrProviderExists, record.Endpoint())
	}
	if err != nil {
		return fmt.Errorf("failed to update provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: provider %s", shared.ErrNotFound, record.ID())
	}

	r.changed.Notify()
	return nil
}

// Delete removes a record by its identifier string.
func (r *ProviderRepository) Delete(id string) error {
	ident := models.ParseProviderIdentifier(id)

	result, err := r.db.Exec(`DELETE FROM providers WHERE kind = ? AND type_id = ?`, ident.Type.String(), ident.TypeID)
	if err != nil {
		return fmt.Errorf("failed to delete provider: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: provider %s", shared.ErrNotFound, id)
	}

	r.changed.Notify()
	return nil
}

// List returns all records ordered by kind and type id. The "kind" criterion filters by
// [models.ProviderType].
func (r *ProviderRepository) List(criteria map[string]any) ([]*models.ProviderRecord, error) {
	query := `
		SELECT kind, type_id, name, endpoint, username, password, legacy_auth, created_at, updated_at
		FROM providers
	`

	args := []any{}
	if kind, ok := criteria["kind"].(models.ProviderType); ok {
		query += " WHERE kind = ?"
		args = append(args, kind.String())
	}
	query += " ORDER BY kind ASC, type_id ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	records := []*models.ProviderRecord{}
	for rows.Next() {
		record, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *ProviderRepository) scan(row scanner) (*models.ProviderRecord, error) {
	var (
		kind       string
		typeID     int64
		name       string
		endpoint   string
		username   string
		password   string
		legacyAuth bool
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := row.Scan(&kind, &typeID, &name, &endpoint, &username, &password, &legacyAuth, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: provider", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan provider: %w", err)
	}

	t, err := models.ParseProviderType(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to scan provider: %w", err)
	}

	return models.RestoreProviderRecord(t, typeID, name, endpoint, username, password, legacyAuth, createdAt, updatedAt), nil
}
