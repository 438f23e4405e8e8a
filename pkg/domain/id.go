package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// ID is a plain resource identifier.
//
// The fleet API is inconsistent about how it serializes references: sometimes
// a bare string, sometimes a Mongo extended-JSON object ({"$oid": "..."}), and
// sometimes a populated document ({"_id": "...", ...}). ID accepts all of them
// and always holds the plain identifier, so callers never unwrap references.
type ID string

// String returns the identifier as a string.
func (id ID) String() string { return string(id) }

// IsZero reports whether the identifier is empty.
func (id ID) IsZero() bool { return id == "" }

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	case '{':
		var ref struct {
			OID   ID `json:"$oid"`
			Mongo ID `json:"_id"`
			Plain ID `json:"id"`
		}
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		*id = firstID(ref.OID, ref.Mongo, ref.Plain)
		return nil
	default:
		// numeric identifiers are kept verbatim
		*id = ID(data)
		return nil
	}
}

func firstID(ids ...ID) ID {
	for _, id := range ids {
		if !id.IsZero() {
			return id
		}
	}
	return ""
}

// unmarshalWithID decodes data into v (an alias of the entity without its
// UnmarshalJSON method) and then resolves the entity identifier from either
// "_id" or "id".
func unmarshalWithID(data []byte, v any, id *ID) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	var keys struct {
		Mongo ID `json:"_id"`
		Plain ID `json:"id"`
	}
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*id = firstID(keys.Mongo, keys.Plain)
	return nil
}

// Base carries the identity and timestamps every stored entity has.
type Base struct {
	ID        ID        `json:"_id,omitempty" bson:"_id,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// EntityID returns the entity identifier.
func (b *Base) EntityID() ID { return b.ID }

// SetID assigns the entity identifier.
func (b *Base) SetID(id ID) { b.ID = id }

// Created returns the creation time.
func (b *Base) Created() time.Time { return b.CreatedAt }

// SetCreated overrides the creation time.
func (b *Base) SetCreated(t time.Time) { b.CreatedAt = t }

// Stamp records a write at now. CreatedAt is only set on the first write.
func (b *Base) Stamp(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// Record is satisfied by pointers to the stored entity types.
type Record[T any] interface {
	*T
	EntityID() ID
	SetID(ID)
	Created() time.Time
	SetCreated(time.Time)
	Stamp(now time.Time)
}
