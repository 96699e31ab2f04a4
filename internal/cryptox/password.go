// Package cryptox implements the password digest scheme: a salted
// HMAC-SHA256 over the plaintext password, with the salt stored next to the
// digest on the master record.
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
)

// saltLength is the stored salt length in hex characters.
const saltLength = 16

// Digest is a hashed password together with the salt it was keyed with.
type Digest struct {
	Password string
	Salt     string
}

// GenSalt returns a fresh random salt: 8 random bytes, hex-encoded to a
// 16-character string.
func GenSalt() (string, error) {
	s, err := common.MakeRandHexString(saltLength / 2)
	if err != nil {
		return "", err
	}
	return s[:saltLength], nil
}

// Sha256 computes the digest of password keyed with salt. If salt is empty a
// fresh one is generated. The result is deterministic for a given
// (password, salt) pair, which is what verification relies on.
func Sha256(password, salt string) (Digest, error) {
	if salt == "" {
		s, err := GenSalt()
		if err != nil {
			return Digest{}, err
		}
		salt = s
	}

	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(password))

	return Digest{
		Password: hex.EncodeToString(h.Sum(nil)),
		Salt:     salt,
	}, nil
}

// Verify recomputes the digest of candidate with the stored salt and
// compares it against the stored digest in constant time.
func Verify(candidate, salt, stored string) bool {
	d, err := Sha256(candidate, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(d.Password), []byte(stored)) == 1
}
