// Package digest hashes serialized component trees into a thumbmark.
package digest

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Sum returns the xxhash64 of s as 16 lowercase hex characters.
func Sum(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}
