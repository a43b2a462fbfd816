// Package profile holds the signed-in user's profile as an opaque structured
// record. A handful of well-known fields have typed accessors; everything else
// the server sends is kept verbatim so that a round trip through the
// credential store loses nothing.
package profile

import (
	"errors"
	"fmt"
	"maps"
	"strconv"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Well-known profile keys as sent by the operations API.
const (
	KeyID       = "id"
	KeyEmail    = "email"
	KeyUsername = "username"
	KeyRole     = "role"
)

// ErrInvalid is returned when profile data cannot be decoded or represented.
var ErrInvalid = errors.New("invalid profile")

// Profile is an immutable value. The zero value is an empty profile.
type Profile struct {
	s *structpb.Struct
}

// Patch is a partial update: present keys overwrite, absent keys are kept.
type Patch map[string]any

// New builds a Profile from plain Go values (the shapes accepted by
// structpb.NewValue).
func New(fields map[string]any) (Profile, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return Profile{s: s}, nil
}

// Parse decodes a JSON object into a Profile.
func Parse(data []byte) (Profile, error) {
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return Profile{s: s}, nil
}

// IsZero reports whether the profile carries no fields.
func (p Profile) IsZero() bool {
	return p.s == nil || len(p.s.GetFields()) == 0
}

// ID returns the user identifier. Numeric identifiers are formatted without
// a fractional part.
func (p Profile) ID() string {
	v := p.s.GetFields()[KeyID]
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	default:
		return ""
	}
}

func (p Profile) Email() string { return p.str(KeyEmail) }
func (p Profile) Role() string  { return p.str(KeyRole) }

// DisplayName returns the username, falling back to the email address.
func (p Profile) DisplayName() string {
	if name := p.str(KeyUsername); name != "" {
		return name
	}
	return p.Email()
}

// Get returns the plain Go value stored under key.
func (p Profile) Get(key string) (any, bool) {
	v, ok := p.s.GetFields()[key]
	if !ok {
		return nil, false
	}
	return v.AsInterface(), true
}

// Fields returns a copy of all fields as plain Go values.
func (p Profile) Fields() map[string]any {
	if p.s == nil {
		return map[string]any{}
	}
	return p.s.AsMap()
}

// Merge returns a new Profile with patch applied on top of p. p is unchanged.
func (p Profile) Merge(patch Patch) (Profile, error) {
	merged := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if p.s != nil {
		merged = proto.Clone(p.s).(*structpb.Struct)
		if merged.Fields == nil {
			merged.Fields = map[string]*structpb.Value{}
		}
	}

	values := make(map[string]*structpb.Value, len(patch))
	for k, raw := range patch {
		v, err := structpb.NewValue(raw)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: field %q: %v", ErrInvalid, k, err)
		}
		values[k] = v
	}
	maps.Copy(merged.Fields, values)

	return Profile{s: merged}, nil
}

// Equal reports whether both profiles carry the same fields and values.
func (p Profile) Equal(other Profile) bool {
	if p.IsZero() || other.IsZero() {
		return p.IsZero() == other.IsZero()
	}
	return proto.Equal(p.s, other.s)
}

// MarshalJSON encodes the profile as a JSON object.
func (p Profile) MarshalJSON() ([]byte, error) {
	if p.s == nil {
		return []byte("{}"), nil
	}
	return protojson.Marshal(p.s)
}

// UnmarshalJSON decodes a JSON object into p.
func (p *Profile) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Profile) str(key string) string {
	return p.s.GetFields()[key].GetStringValue()
}
