package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/bistro-backend/pkg/config"
)

// CustomerPasswordLength is the size of passwords generated for self-registered customers.
const CustomerPasswordLength = 12

const tempPasswordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ErrInvalidHash signals a malformed Argon2id hash string.
var ErrInvalidHash = errors.New("invalid argon2id hash")

type argonCost struct {
	memory  uint32
	time    uint32
	threads uint8
	saltLen uint32
	keyLen  uint32
}

// costFor clamps the configured cost into a range that stays usable on a
// small container.
func costFor(cfg config.PasswordConfig) argonCost {
	return argonCost{
		memory:  uint32(clamp(cfg.ArgonMemoryKB, 8, 512*1024)),
		time:    uint32(clamp(cfg.ArgonTime, 1, 10)),
		threads: uint8(clamp(cfg.ArgonParallelism, 1, 255)),
		saltLen: uint32(clamp(cfg.ArgonSaltLen, 8, 64)),
		keyLen:  uint32(clamp(cfg.ArgonKeyLen, 16, 64)),
	}
}

// argonHash is the PHC form: $argon2id$v=19$m=..,t=..,p=..$salt$key
type argonHash struct {
	cost argonCost
	salt []byte
	key  []byte
}

func (h argonHash) String() string {
	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.cost.memory, h.cost.time, h.cost.threads,
		enc.EncodeToString(h.salt), enc.EncodeToString(h.key))
}

func parseArgonHash(encoded string) (argonHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return argonHash{}, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonHash{}, ErrInvalidHash
	}
	var h argonHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.cost.memory, &h.cost.time, &h.cost.threads); err != nil {
		return argonHash{}, ErrInvalidHash
	}
	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return argonHash{}, ErrInvalidHash
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(h.key) == 0 {
		return argonHash{}, ErrInvalidHash
	}
	h.cost.saltLen = uint32(len(h.salt))
	h.cost.keyLen = uint32(len(h.key))
	return h, nil
}

func derive(password string, salt []byte, c argonCost) []byte {
	return argon2.IDKey([]byte(password), salt, c.time, c.memory, c.threads, c.keyLen)
}

// HashPassword returns a formatted Argon2id hash for the provided password.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	c := costFor(cfg)
	salt := make([]byte, c.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return argonHash{cost: c, salt: salt, key: derive(password, salt, c)}.String(), nil
}

// VerifyPassword reports whether password matches encoded. The cost is read
// from the hash, so older hashes keep verifying after a config change.
func VerifyPassword(password, encoded string) (bool, error) {
	h, err := parseArgonHash(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(h.key, derive(password, h.salt, h.cost)) == 1, nil
}

// NeedsRehash is true when encoded was produced with a different cost than
// cfg now asks for. Malformed hashes are left alone.
func NeedsRehash(encoded string, cfg config.PasswordConfig) bool {
	h, err := parseArgonHash(encoded)
	if err != nil {
		return false
	}
	return h.cost != costFor(cfg)
}

// GenerateTempPassword produces a random alphanumeric string suitable for
// temporary credentials.
func GenerateTempPassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}
	limit := big.NewInt(int64(len(tempPasswordCharset)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b.WriteByte(tempPasswordCharset[idx.Int64()])
	}
	return b.String(), nil
}

func clamp(value, lo, hi int) int {
	return min(max(value, lo), hi)
}
