// Package credential defines saved site logins and the ordered collection
// they are persisted in.
package credential

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/samber/lo"
)

var (
	// ErrNotFound is returned when no credential has the requested ID.
	ErrNotFound = errors.New("credential not found")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports a required field left blank.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + " is required"
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Credential is one saved login. site, username and password keep the
// field names of the original popup layout.
type Credential struct {
	ID        string    `json:"id,omitempty"`
	Site      string    `json:"site"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// New builds a validated credential with a fresh ID.
func New(site, username, password string, now time.Time) (Credential, error) {
	c := Credential{
		Site:     strings.TrimSpace(site),
		Username: strings.TrimSpace(username),
		Password: strings.TrimSpace(password),
	}
	if err := c.Validate(); err != nil {
		return Credential{}, err
	}

	id, err := NewID()
	if err != nil {
		return Credential{}, err
	}

	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

// NewID returns a time-ordered identifier for a credential.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("new credential id: %w", err)
	}
	return id.String(), nil
}

// Validate checks that site, username and password are non-blank.
func (c Credential) Validate() error {
	switch {
	case strings.TrimSpace(c.Site) == "":
		return &ValidationError{Field: "site"}
	case strings.TrimSpace(c.Username) == "":
		return &ValidationError{Field: "username"}
	case strings.TrimSpace(c.Password) == "":
		return &ValidationError{Field: "password"}
	}
	return nil
}

// Matches reports whether site or username contains query, ignoring case.
func (c Credential) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(c.Site), q) ||
		strings.Contains(strings.ToLower(c.Username), q)
}

// Collection is the ordered list of saved credentials. Order is append
// order; duplicates are allowed. Methods return new slices and leave the
// receiver untouched.
type Collection []Credential

// Append returns the collection with c added at the end.
func (col Collection) Append(c Credential) Collection {
	out := slices.Clone(col)
	return append(out, c)
}

// Find returns the credential with the given ID.
func (col Collection) Find(id string) (Credential, bool) {
	c, _, ok := lo.FindIndexOf(col, func(c Credential) bool { return c.ID == id })
	return c, ok
}

// Replace overwrites the credential sharing c's ID, keeping its position.
func (col Collection) Replace(c Credential) (Collection, error) {
	i := col.index(c.ID)
	if i < 0 {
		return nil, fmt.Errorf("replace %s: %w", c.ID, ErrNotFound)
	}
	out := slices.Clone(col)
	out[i] = c
	return out, nil
}

// Remove drops the credential with the given ID and keeps the rest in order.
func (col Collection) Remove(id string) (Collection, error) {
	i := col.index(id)
	if i < 0 {
		return nil, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	return slices.Delete(slices.Clone(col), i, i+1), nil
}

// Filter keeps credentials whose site or username contains query.
// An empty query keeps everything.
func (col Collection) Filter(query string) Collection {
	if query == "" {
		return slices.Clone(col)
	}
	return lo.Filter(col, func(c Credential, _ int) bool {
		return c.Matches(query)
	})
}

// AssignIDs gives every credential without an ID a new one from newID.
// It reports whether any credential changed. The receiver is untouched.
func (col Collection) AssignIDs(newID func() (string, error)) (Collection, bool, error) {
	out := slices.Clone(col)
	changed := false
	for i := range out {
		if out[i].ID != "" {
			continue
		}
		id, err := newID()
		if err != nil {
			return nil, false, err
		}
		out[i].ID = id
		changed = true
	}
	return out, changed, nil
}

func (col Collection) index(id string) int {
	if id == "" {
		return -1
	}
	_, i, _ := lo.FindIndexOf(col, func(c Credential) bool { return c.ID == id })
	return i
}
