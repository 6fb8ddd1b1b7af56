package digest

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{16}$`)

func TestSumIsDeterministic(t *testing.T) {
	assert.Equal(t, Sum(`{"a":1}`), Sum(`{"a":1}`))
}

func TestSumFormat(t *testing.T) {
	for _, in := range []string{"", "x", `{"canvas":{"commonPixelsHash":"abc"}}`} {
		assert.Regexp(t, hexDigest, Sum(in))
	}
	// xxhash64 of the empty input.
	assert.Equal(t, "ef46db3751d8e999", Sum(""))
}

func TestSumSensitiveToEveryByte(t *testing.T) {
	base := `{"a":1,"b":"two"}`
	seen := map[string]bool{Sum(base): true}
	for i := range len(base) {
		b := []byte(base)
		b[i] ^= 0x01
		s := Sum(string(b))
		assert.False(t, seen[s], "collision flipping byte %d", i)
		seen[s] = true
	}
}
