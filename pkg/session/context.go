// Package session holds per-user session state and the conversation
// lifecycle: which conversation is active, its in-memory turn buffer, and
// when the buffer gets distilled into the summary chain.
package session

import (
	"errors"

	"github.com/pcl-labs/navigator/pkg/crypto"
)

// ErrNoSecret is returned by Login when the owner secret is empty.
var ErrNoSecret = errors.New("session: owner secret is required")

// Context carries the identity and key material for one logged-in user.
// It is passed explicitly to everything that needs it; there is no global
// current-user state. The derived key lives only in process memory.
type Context struct {
	UserID   string
	Key      []byte
	Language string
}

// Login derives the user's encryption key from their secret and returns a
// ready session context. The salt is the user id, so the same secret
// yields different keys for different users. The secret itself is not
// retained.
func Login(userID, secret, language string) (*Context, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if language == "" {
		language = "en"
	}
	return &Context{
		UserID:   userID,
		Key:      crypto.DeriveKey([]byte(secret), []byte(userID)),
		Language: language,
	}, nil
}

// Close zeroes the derived key. The context must not be used afterwards.
func (c *Context) Close() {
	crypto.Zero(c.Key)
}
