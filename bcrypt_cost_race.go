//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// race builds run the hashing tests many times slower, keep them under the
// default test timeout.
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
