package models

import (
	"bytes"
	"encoding/json"
)

// ResolveID normalises a user reference to its id. The backend sends either
// a bare id ("u1") or an embedded user object ({"_id": "u1", "name": ...});
// both resolve to "u1". Anything else resolves to "".
func ResolveID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	switch raw[0] {
	case '"':
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return ""
		}
		return id
	case '{':
		var object struct {
			UnderscoreID json.RawMessage `json:"_id"`
			ID           json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(raw, &object); err != nil {
			return ""
		}
		if id := ResolveID(object.UnderscoreID); id != "" {
			return id
		}
		return ResolveID(object.ID)
	default:
		// Numeric ids from SQL-backed deployments.
		var number json.Number
		if err := json.Unmarshal(raw, &number); err != nil {
			return ""
		}
		return number.String()
	}
}

// UserSummary is the embedded user object the backend attaches to messages,
// projects and bids, and the element type of the conversations listing.
type UserSummary struct {
	ID     string `json:"_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role,omitempty"`
}

// UnmarshalJSON accepts "_id" or "id", string or numeric.
func (s *UserSummary) UnmarshalJSON(data []byte) error {
	type plain UserSummary
	var decoded struct {
		plain
		ID json.RawMessage `json:"_id"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*s = UserSummary(decoded.plain)
	s.ID = ResolveID(data)
	return nil
}

// UserRef is a reference to a user that may arrive as a bare id or as an
// embedded UserSummary. ID is always populated with the resolved id.
type UserRef struct {
	ID   string
	User *UserSummary
}

// Ref builds a bare reference.
func Ref(id string) UserRef {
	return UserRef{ID: id}
}

// UnmarshalJSON resolves the id through ResolveID and keeps the embedded
// summary when one was sent.
func (r *UserRef) UnmarshalJSON(data []byte) error {
	*r = UserRef{ID: ResolveID(data)}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var summary UserSummary
		if err := json.Unmarshal(trimmed, &summary); err != nil {
			return err
		}
		r.User = &summary
	}
	return nil
}

// MarshalJSON writes the embedded summary if present, else the bare id.
func (r UserRef) MarshalJSON() ([]byte, error) {
	if r.User != nil {
		summary := *r.User
		summary.ID = r.ID
		return json.Marshal(summary)
	}
	return json.Marshal(r.ID)
}

// Name returns the embedded display name, if any.
func (r UserRef) Name() string {
	if r.User == nil {
		return ""
	}
	return r.User.Name
}
