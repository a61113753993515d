package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProviderType tags the backend family a provider belongs to.
type ProviderType int

const (
	ProviderTypeLocal ProviderType = iota
	ProviderTypeSubsonic
	ProviderTypeJellyfin
)

func (t ProviderType) String() string {
	switch t {
	case ProviderTypeLocal:
		return "local"
	case ProviderTypeSubsonic:
		return "subsonic"
	case ProviderTypeJellyfin:
		return "jellyfin"
	default:
		return fmt.Sprintf("ProviderType(%d)", int(t))
	}
}

// ParseProviderType accepts the names produced by [ProviderType.String].
func ParseProviderType(name string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "local":
		return ProviderTypeLocal, nil
	case "subsonic", "navidrome":
		return ProviderTypeSubsonic, nil
	case "jellyfin", "emby":
		return ProviderTypeJellyfin, nil
	default:
		return 0, fmt.Errorf("unknown provider type %q", name)
	}
}

// Remote reports whether providers of this type talk to a server.
func (t ProviderType) Remote() bool {
	return t == ProviderTypeSubsonic || t == ProviderTypeJellyfin
}

func (t ProviderType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ProviderType) UnmarshalText(text []byte) error {
	parsed, err := ParseProviderType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ProviderIdentifier is the identity of a provider: its type plus an id unique within that type.
type ProviderIdentifier struct {
	Type   ProviderType `json:"type" yaml:"type"`
	TypeID int64        `json:"type_id" yaml:"type_id"`
}

// LocalProviderID is the identifier of the always-present local provider.
var LocalProviderID = ProviderIdentifier{Type: ProviderTypeLocal, TypeID: 0}

func (p ProviderIdentifier) String() string {
	return fmt.Sprintf("%s/%d", p.Type, p.TypeID)
}

// Serialize encodes the identifier as a JSON object.
func (p ProviderIdentifier) Serialize() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

// ParseProviderIdentifier decodes either the JSON form produced by [ProviderIdentifier.Serialize]
// or the "type/id" form produced by [ProviderIdentifier.String].
//
// Malformed input yields [LocalProviderID]; callers always get a usable value.
func ParseProviderIdentifier(s string) ProviderIdentifier {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		var id ProviderIdentifier
		if err := json.Unmarshal([]byte(s), &id); err != nil {
			return LocalProviderID
		}
		return id
	}

	kind, rest, ok := strings.Cut(s, "/")
	if !ok {
		return LocalProviderID
	}
	t, err := ParseProviderType(kind)
	if err != nil {
		return LocalProviderID
	}
	typeID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return LocalProviderID
	}
	return ProviderIdentifier{Type: t, TypeID: typeID}
}

// Provider is a configured backend instance as shown to the user.
type Provider struct {
	Type   ProviderType `json:"type" yaml:"type"`
	TypeID int64        `json:"type_id" yaml:"type_id"`
	Name   string       `json:"name" yaml:"name"`
}

func (p Provider) Identifier() ProviderIdentifier {
	return ProviderIdentifier{Type: p.Type, TypeID: p.TypeID}
}
