package password

import (
	"fmt"
	"strings"
)

// Delegating encodes with a default hasher and verifies with whichever
// hasher a stored hash names in its "{id}" prefix.
type Delegating struct {
	defaultID string
	hashers   map[string]Hasher
}

// NewDelegating returns an encoder that hashes with def and also accepts
// hashes produced by others.
func NewDelegating(def Hasher, others ...Hasher) (*Delegating, error) {
	if def == nil {
		return nil, fmt.Errorf("default hasher is required")
	}
	d := &Delegating{defaultID: def.ID(), hashers: make(map[string]Hasher, len(others)+1)}
	for _, h := range append([]Hasher{def}, others...) {
		id := h.ID()
		if id == "" || strings.ContainsAny(id, "{}") {
			return nil, fmt.Errorf("invalid hasher id %q", id)
		}
		if _, dup := d.hashers[id]; dup {
			return nil, fmt.Errorf("duplicate hasher id %q", id)
		}
		d.hashers[id] = h
	}
	return d, nil
}

// NewDefault returns argon2id as default with bcrypt accepted for verification.
func NewDefault() (*Delegating, error) {
	a, err := NewArgon2(DefaultConfig())
	if err != nil {
		return nil, err
	}
	b, err := NewBcrypt(0)
	if err != nil {
		return nil, err
	}
	return NewDelegating(a, b)
}

// Hash encodes password with the default hasher.
func (d *Delegating) Hash(password string) (string, error) {
	out, err := d.hashers[d.defaultID].Hash(password)
	if err != nil {
		return "", err
	}
	return "{" + d.defaultID + "}" + out, nil
}

// Verify reports whether password matches encodedHash.
func (d *Delegating) Verify(password, encodedHash string) (bool, error) {
	h, inner, err := d.split(encodedHash)
	if err != nil {
		return false, err
	}
	return h.Verify(password, inner)
}

// NeedsUpgrade reports whether encodedHash should be re-hashed with the
// default hasher.
func (d *Delegating) NeedsUpgrade(encodedHash string) (bool, error) {
	h, inner, err := d.split(encodedHash)
	if err != nil {
		return false, err
	}
	if h.ID() != d.defaultID {
		return true, nil
	}
	return h.NeedsUpgrade(inner)
}

func (d *Delegating) split(encodedHash string) (Hasher, string, error) {
	if !strings.HasPrefix(encodedHash, "{") {
		return nil, "", ErrInvalidHash
	}
	end := strings.IndexByte(encodedHash, '}')
	if end < 0 {
		return nil, "", ErrInvalidHash
	}
	id := encodedHash[1:end]
	h, ok := d.hashers[id]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownHasher, id)
	}
	return h, encodedHash[end+1:], nil
}
