package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// MinLength is the shortest password accepted on signup and reset.
const MinLength = 8

const saltLen = 16

var errMalformed = errors.New("password: malformed hash")

// Params are the Argon2id cost settings encoded into every hash.
type Params struct {
	Memory  uint32
	Time    uint32
	Threads uint8
	KeyLen  uint32
}

// Current is used for new hashes. Hashes encoded with other settings still
// verify but report NeedsRehash.
var Current = Params{Memory: 64 * 1024, Time: 1, Threads: 4, KeyLen: 32}

type encodedHash struct {
	params Params
	salt   []byte
	key    []byte
}

// Strong reports whether password satisfies the minimum policy.
func Strong(password string) bool {
	return len(strings.TrimSpace(password)) >= MinLength
}

// Hash returns an encoded Argon2id hash with a random salt.
func Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	h := encodedHash{params: Current, salt: salt}
	h.key = derive(password, h.params, salt, h.params.KeyLen)
	return h.String(), nil
}

// Verify checks password against an encoded hash in constant time.
func Verify(password, encoded string) bool {
	h, err := decode(encoded)
	if err != nil {
		return false
	}
	check := derive(password, h.params, h.salt, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(h.key, check) == 1
}

// NeedsRehash reports whether encoded was produced with settings other than
// Current. Malformed input needs a rehash too.
func NeedsRehash(encoded string) bool {
	h, err := decode(encoded)
	if err != nil {
		return true
	}
	return h.params != Current
}

func derive(password string, p Params, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, keyLen)
}

func (h encodedHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key))
}

// decode parses "$argon2id$v=19$m=..,t=..,p=..$salt$key".
func decode(encoded string) (encodedHash, error) {
	var h encodedHash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return h, errMalformed
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return h, errMalformed
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Time, &h.params.Threads); err != nil {
		return h, errMalformed
	}
	if h.params.Memory == 0 || h.params.Time == 0 || h.params.Threads == 0 {
		return h, errMalformed
	}
	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return h, errMalformed
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(h.key) == 0 {
		return h, errMalformed
	}
	h.params.KeyLen = uint32(len(h.key))
	return h, nil
}
