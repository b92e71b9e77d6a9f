// Package identity provides nominally typed entity identifiers.
//
// Each entity kind gets its own instantiation of ID, so a CartID can never be
// passed where a ProductID is expected. The wrapped string is validated on
// construction and the zero value is reserved for "no identity".
package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/commercecore/pkg/errors"
)

// MaxLength is the upper bound on the byte length of an identifier.
const MaxLength = 255

// Kind is implemented by the marker types that brand an ID.
type Kind interface {
	kindName() string
}

// ID is an identifier branded by its entity Kind.
type ID[K Kind] struct {
	value string
}

// New validates raw and returns it as an identifier of kind K.
func New[K Kind](raw string) (ID[K], error) {
	var k K
	field := k.kindName() + "_id"

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ID[K]{}, apperrors.Validation(field, raw, "must not be empty")
	}
	if len(raw) > MaxLength {
		return ID[K]{}, apperrors.Validation(field, raw, fmt.Sprintf("must be at most %d characters", MaxLength))
	}
	return ID[K]{value: raw}, nil
}

// MustNew is like New but panics on invalid input. Intended for tests and
// compile-time constants.
func MustNew[K Kind](raw string) ID[K] {
	id, err := New[K](raw)
	if err != nil {
		panic(err)
	}
	return id
}

// Generate returns a fresh random identifier of kind K.
func Generate[K Kind]() ID[K] {
	return ID[K]{value: uuid.NewString()}
}

// String returns the raw identifier.
func (id ID[K]) String() string { return id.value }

// IsZero reports whether the identifier is unset.
func (id ID[K]) IsZero() bool { return id.value == "" }

// Equal reports whether two identifiers of the same kind are equal.
func (id ID[K]) Equal(other ID[K]) bool { return id.value == other.value }

// Kind returns the entity kind name, e.g. "cart".
func (id ID[K]) Kind() string {
	var k K
	return k.kindName()
}

// MarshalText implements encoding.TextMarshaler.
func (id ID[K]) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input decodes to
// the zero identifier so optional ids survive a round trip.
func (id *ID[K]) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = ID[K]{}
		return nil
	}
	parsed, err := New[K](string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
