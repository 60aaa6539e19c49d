// Package password hashes and verifies operator passwords with argon2id.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	defaultMemory  uint32 = 64 * 1024
	defaultTime    uint32 = 3
	defaultThreads uint8  = 2
	saltLength            = 16
	keyLength      uint32 = 32
)

// Hash derives an argon2id digest in the standard encoded form.
func Hash(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("empty_password")
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plain), salt, defaultTime, defaultMemory, defaultThreads, keyLength)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		defaultMemory,
		defaultTime,
		defaultThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plain matches the encoded argon2id digest.
func Verify(plain, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return false
	}

	var memory, timeCost uint32
	var threads uint8
	{
		params := strings.Split(parts[3], ",")
		if len(params) != 3 {
			return false
		}
		m, ok := strings.CutPrefix(params[0], "m=")
		if !ok {
			return false
		}
		t, ok := strings.CutPrefix(params[1], "t=")
		if !ok {
			return false
		}
		p, ok := strings.CutPrefix(params[2], "p=")
		if !ok {
			return false
		}

		mv, err := strconv.ParseUint(m, 10, 32)
		if err != nil {
			return false
		}
		tv, err := strconv.ParseUint(t, 10, 32)
		if err != nil {
			return false
		}
		pv, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return false
		}
		memory = uint32(mv)
		timeCost = uint32(tv)
		threads = uint8(pv)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	key := argon2.IDKey([]byte(plain), salt, timeCost, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1
}
