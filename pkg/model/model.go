// Package model defines the base contract every storable object satisfies:
// identity, lifecycle timestamps, and serialization to and from a plain
// attribute map. Concrete types embed Base and register a factory with the
// type registry so the storage engine can reconstruct them by name.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClassKey is the reserved attribute carrying the concrete type name in a
// serialized record. It is consumed during reconstruction, never stored as
// a field.
const ClassKey = "__class__"

// TimeLayout is the textual form of timestamps in serialized records.
const TimeLayout = time.RFC3339Nano

// timeLayoutNoZone accepts offset-less ISO 8601 timestamps, which some
// producers emit for UTC instants. Parsed values are taken as UTC.
const timeLayoutNoZone = "2006-01-02T15:04:05.999999999"

var (
	// ErrInvalidArgument is returned when construction receives a
	// structurally disallowed value, such as an explicit null identity.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownType is returned when a type name has no registered factory.
	ErrUnknownType = errors.New("unknown type")
)

// Object is the contract a type must satisfy to participate in storage.
type Object interface {
	// ObjectID returns the opaque unique identifier.
	ObjectID() string
	// TypeName returns the registered type name, e.g. "User".
	TypeName() string
	// Touch refreshes the updated-at timestamp.
	Touch(now time.Time)
	// ToMap serializes the object to a plain attribute map containing
	// exactly the declared fields plus the ClassKey type tag. Timestamps
	// are rendered as TimeLayout text.
	ToMap() map[string]any
	// FromMap assigns the given attributes onto the object. The attrs map
	// is not mutated.
	FromMap(attrs map[string]any) error
}

// Base carries identity and lifecycle timestamps for every storable type.
// Concrete types embed it and add their own fields.
type Base struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Extra holds attributes from a reconstruction map that match no
	// declared field. They survive re-serialization unchanged.
	Extra map[string]any
}

// NewBase returns a Base with a fresh identity and both timestamps set to
// the same instant.
func NewBase() Base {
	now := time.Now().UTC()
	return Base{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ObjectID returns the object's identifier.
func (b *Base) ObjectID() string { return b.ID }

// Touch refreshes UpdatedAt.
func (b *Base) Touch(now time.Time) { b.UpdatedAt = now }

// applyBase consumes id, created_at, updated_at and the type tag from
// attrs, returning the remaining attributes. Explicit nulls for the
// structural fields are rejected with ErrInvalidArgument.
func (b *Base) applyBase(attrs map[string]any) (map[string]any, error) {
	rest := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch k {
		case ClassKey:
			// Type selection is the registry's concern, not a field.
		case "id":
			s, ok := v.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("%w: id must be a non-empty string, got %v", ErrInvalidArgument, v)
			}
			b.ID = s
		case "created_at":
			t, err := parseTime(k, v)
			if err != nil {
				return nil, err
			}
			b.CreatedAt = t
		case "updated_at":
			t, err := parseTime(k, v)
			if err != nil {
				return nil, err
			}
			b.UpdatedAt = t
		default:
			rest[k] = v
		}
	}
	return rest, nil
}

// baseMap renders identity, timestamps and any extra attributes.
func (b *Base) baseMap() map[string]any {
	m := make(map[string]any, len(b.Extra)+3)
	for k, v := range b.Extra {
		m[k] = v
	}
	m["id"] = b.ID
	m["created_at"] = b.CreatedAt.Format(TimeLayout)
	m["updated_at"] = b.UpdatedAt.Format(TimeLayout)
	return m
}

func parseTime(field string, v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(TimeLayout, t)
		if err != nil {
			parsed, err = time.ParseInLocation(timeLayoutNoZone, t, time.UTC)
		}
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s is not a parseable timestamp: %v", ErrInvalidArgument, field, err)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %s must be a timestamp, got %v", ErrInvalidArgument, field, v)
	}
}

func stringField(attrs map[string]any, key string, dst *string) error {
	v, ok := attrs[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: %s must be a string, got %v", ErrInvalidArgument, key, v)
	}
	*dst = s
	delete(attrs, key)
	return nil
}
