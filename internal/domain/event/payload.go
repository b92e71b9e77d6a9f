package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one key/value pair of a payload.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for building a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Payload is an ordered list of fields. Order is the order fields were given.
type Payload []Field

// NewPayload builds a payload from fields.
func NewPayload(fields ...Field) Payload {
	return Payload(fields).clone()
}

func (p Payload) clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	copy(out, p)
	return out
}

// Get returns the value for key.
func (p Payload) Get(key string) (any, bool) {
	for _, f := range p {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in order.
func (p Payload) Keys() []string {
	keys := make([]string, len(p))
	for i, f := range p {
		keys[i] = f.Key
	}
	return keys
}

// Len returns the number of fields.
func (p Payload) Len() int { return len(p) }

// MarshalJSON encodes the payload as a JSON object preserving field order.
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal payload field %s: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
