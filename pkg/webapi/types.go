package webapi

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/tendant/simple-valtuudet/pkg/errors"
)

// Mode selects the delegation variant.
type Mode string

const (
	// ModeHPA is person acting on behalf of a person.
	ModeHPA Mode = "hpa"
	// ModeYPA is person acting on behalf of an organization.
	ModeYPA Mode = "ypa"
)

// ParseMode accepts "hpa" or "ypa".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeHPA, ModeYPA:
		return Mode(s), nil
	}
	return "", apperrors.Newf(apperrors.ErrCodeNotFound, "unknown delegation mode %q", s)
}

// Credentials are issued by the backend operator and loaded once at startup.
type Credentials struct {
	ClientID       string
	ClientSecret   string
	APIOAuthSecret string
}

// Registration is the register call response.
type Registration struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// Token is the token endpoint response. Only AccessToken is used.
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Principal is a person selected in the backend's selection UI. Fields the
// client does not interpret are kept in Attributes and written back as-is.
type Principal struct {
	PersonID   string
	Name       string
	Attributes map[string]json.RawMessage
}

// UnmarshalJSON requires a JSON object with a string personId.
func (p *Principal) UnmarshalJSON(data []byte) error {
	raw, err := decodeObject(data)
	if err != nil {
		return err
	}
	if p.PersonID, err = takeString(raw, "personId"); err != nil {
		return err
	}
	if p.PersonID == "" {
		return fmt.Errorf("principal has no personId")
	}
	if p.Name, err = takeString(raw, "name"); err != nil {
		return err
	}
	p.Attributes = nonEmpty(raw)
	return nil
}

// MarshalJSON flattens Attributes next to personId and name.
func (p Principal) MarshalJSON() ([]byte, error) {
	out := copyAttributes(p.Attributes)
	if err := putString(out, "personId", p.PersonID); err != nil {
		return nil, err
	}
	if p.Name != "" {
		if err := putString(out, "name", p.Name); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// AuthorizationResult is one authorization lookup response, tagged with the
// principal it was requested for.
type AuthorizationResult struct {
	Principal  Principal
	Result     string
	Attributes map[string]json.RawMessage
}

// UnmarshalJSON decodes the backend body. Principal is not part of the
// backend payload and is set by the caller.
func (a *AuthorizationResult) UnmarshalJSON(data []byte) error {
	raw, err := decodeObject(data)
	if err != nil {
		return err
	}
	if a.Result, err = takeString(raw, "result"); err != nil {
		return err
	}
	delete(raw, "principal")
	a.Attributes = nonEmpty(raw)
	return nil
}

// ErrorMessage returns the errorMessage the backend may put in an otherwise
// successful lookup response, or "".
func (a AuthorizationResult) ErrorMessage() string {
	v, ok := a.Attributes["errorMessage"]
	if !ok {
		return ""
	}
	var msg string
	if err := json.Unmarshal(v, &msg); err != nil {
		return string(v)
	}
	return msg
}

// MarshalJSON writes the backend attributes with the principal embedded.
func (a AuthorizationResult) MarshalJSON() ([]byte, error) {
	out := copyAttributes(a.Attributes)
	if a.Result != "" {
		if err := putString(out, "result", a.Result); err != nil {
			return nil, err
		}
	}
	principal, err := json.Marshal(a.Principal)
	if err != nil {
		return nil, err
	}
	out["principal"] = principal
	return json.Marshal(out)
}

// RolesResult is the organization roles payload, passed through untouched.
type RolesResult = json.RawMessage

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("expected a JSON object, got null")
	}
	return raw, nil
}

// takeString removes key from raw and returns its string value. A missing
// key or JSON null yields "".
func takeString(raw map[string]json.RawMessage, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", nil
	}
	delete(raw, key)
	var s *string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

func putString(out map[string]json.RawMessage, key, value string) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	out[key] = b
	return nil
}

func copyAttributes(in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func nonEmpty(raw map[string]json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
