// Package domain holds value types shared across bounded contexts: typed
// identifiers, recurrence kinds, period anchors, and payload references.
// Construct values via the Parse* functions at trust boundaries; direct
// casting bypasses validation.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "obligo/pkg/domain-errors"
)

// OccurrenceID identifies one materialized occurrence of an obligation.
type OccurrenceID uuid.UUID

// NewOccurrenceID allocates a fresh occurrence ID.
func NewOccurrenceID() OccurrenceID { return OccurrenceID(uuid.New()) }

// ParseOccurrenceID constructs an OccurrenceID from external input.
// Errors: CodeInvalidInput when the value is empty, malformed, or nil.
func ParseOccurrenceID(s string) (OccurrenceID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return OccurrenceID{}, err
	}
	return OccurrenceID(u), nil
}

func (id OccurrenceID) String() string { return uuid.UUID(id).String() }
func (id OccurrenceID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the ID in canonical UUID form so JSON payloads carry a
// string, not a byte array.
func (id OccurrenceID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *OccurrenceID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	*id = OccurrenceID(u)
	return nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

// DefinitionCode is the stable, externally assigned key of an obligation
// definition (e.g. "REP-010"). Immutable once created.
type DefinitionCode string

// ParseDefinitionCode constructs a DefinitionCode from external input.
func ParseDefinitionCode(s string) (DefinitionCode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "definition code cannot be empty")
	}
	if len(s) > 64 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "definition code exceeds 64 characters")
	}
	if strings.ContainsAny(s, " \t\n") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "definition code cannot contain whitespace")
	}
	return DefinitionCode(s), nil
}

func (c DefinitionCode) String() string { return string(c) }

// ActorRef is an opaque reference to a responsible actor supplied by the
// external identity service. The engine never resolves it.
type ActorRef string

// ParseActorRef constructs an ActorRef from external input.
func ParseActorRef(s string) (ActorRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "actor reference cannot be empty")
	}
	return ActorRef(s), nil
}

func (a ActorRef) String() string { return string(a) }

// EntityRef is an opaque reference to the external entity an obligation is
// owed to (a regulator, ministry, exchange, ...).
type EntityRef string
