// package models defines the media entities, provider identity and persistence interfaces
package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// ProviderRecord is a persisted remote provider: identity, display name, endpoint and credentials.
type ProviderRecord struct {
	kind       ProviderType
	typeID     int64
	name       string
	endpoint   string
	username   string
	password   string
	legacyAuth bool
	createdAt  time.Time
	updatedAt  time.Time
}

// NewProviderRecord builds an unsaved record. The type id is assigned on create.
func NewProviderRecord(kind ProviderType, name, endpoint, username, password string) *ProviderRecord {
	now := time.Now()
	return &ProviderRecord{
		kind:      kind,
		name:      name,
		endpoint:  strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		username:  username,
		password:  password,
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreProviderRecord rebuilds a record read from storage.
func RestoreProviderRecord(kind ProviderType, typeID int64, name, endpoint, username, password string, legacyAuth bool, createdAt, updatedAt time.Time) *ProviderRecord {
	return &ProviderRecord{
		kind:       kind,
		typeID:     typeID,
		name:       name,
		endpoint:   endpoint,
		username:   username,
		password:   password,
		legacyAuth: legacyAuth,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

// ID returns the serialized [ProviderIdentifier].
func (p *ProviderRecord) ID() string                     { return p.Identifier().String() }
func (p *ProviderRecord) Kind() ProviderType             { return p.kind }
func (p *ProviderRecord) TypeID() int64                  { return p.typeID }
func (p *ProviderRecord) Name() string                   { return p.name }
func (p *ProviderRecord) Endpoint() string               { return p.endpoint }
func (p *ProviderRecord) Username() string               { return p.username }
func (p *ProviderRecord) Password() string               { return p.password }
func (p *ProviderRecord) LegacyAuth() bool               { return p.legacyAuth }
func (p *ProviderRecord) CreatedAt() time.Time           { return p.createdAt }
func (p *ProviderRecord) UpdatedAt() time.Time           { return p.updatedAt }
func (p *ProviderRecord) SetTypeID(id int64)             { p.typeID = id }
func (p *ProviderRecord) SetName(name string)            { p.name = name }
func (p *ProviderRecord) SetPassword(password string)    { p.password = password }
func (p *ProviderRecord) SetUsername(username string)    { p.username = username }
func (p *ProviderRecord) SetLegacyAuth(legacy bool)      { p.legacyAuth = legacy }
func (p *ProviderRecord) SetUpdatedAt(updated time.Time) { p.updatedAt = updated }

func (p *ProviderRecord) SetEndpoint(endpoint string) {
	p.endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
}

func (p *ProviderRecord) Identifier() ProviderIdentifier {
	return ProviderIdentifier{Type: p.kind, TypeID: p.typeID}
}

// Provider returns the user-facing view of the record.
func (p *ProviderRecord) Provider() Provider {
	return Provider{Type: p.kind, TypeID: p.typeID, Name: p.name}
}

// Validate checks the record can be used to build a remote backend.
func (p *ProviderRecord) Validate() error {
	if !p.kind.Remote() {
		return fmt.Errorf("provider type %s cannot be stored", p.kind)
	}
	if strings.TrimSpace(p.name) == "" {
		return fmt.Errorf("provider name is required")
	}
	u, err := url.Parse(p.endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("provider endpoint %q must be an http(s) URL", p.endpoint)
	}
	if p.username == "" {
		return fmt.Errorf("provider username is required")
	}
	return nil
}

// Same reports whether two records would build identical backends.
func (p *ProviderRecord) Same(o *ProviderRecord) bool {
	return o != nil &&
		p.kind == o.kind &&
		p.typeID == o.typeID &&
		p.name == o.name &&
		p.endpoint == o.endpoint &&
		p.username == o.username &&
		p.password == o.password &&
		p.legacyAuth == o.legacyAuth
}
