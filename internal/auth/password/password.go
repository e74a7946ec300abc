// Package password hashes and verifies login passwords with Argon2id.
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

// MinLength is the shortest password accepted at signup.
const MinLength = 8

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

var (
	ErrTooShort      = errors.New("password_too_short")
	errMalformedHash = errors.New("malformed argon2id hash")
)

type params struct {
	memory  uint32
	time    uint32
	threads uint8
}

// Validate checks the signup password policy.
func Validate(password string) error {
	if len(strings.TrimSpace(password)) < MinLength {
		return ErrTooShort
	}
	return nil
}

// Hash returns the PHC-formatted Argon2id hash of password.
func Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks whether a password matches the encoded Argon2id hash.
func Verify(password, encoded string) bool {
	p, salt, hash, err := decode(encoded)
	if err != nil {
		return false
	}
	check := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, check) == 1
}

func decode(encoded string) (params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return params{}, nil, nil, errMalformedHash
	}

	p, err := parseParams(parts[3])
	if err != nil {
		return params{}, nil, nil, err
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params{}, nil, nil, errMalformedHash
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return params{}, nil, nil, errMalformedHash
	}
	return p, salt, hash, nil
}

func parseParams(raw string) (params, error) {
	values := map[string]uint64{}
	for _, field := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return params{}, errMalformedHash
		}
		bits := 32
		if key == "p" {
			bits = 8
		}
		parsed, err := strconv.ParseUint(value, 10, bits)
		if err != nil {
			return params{}, errMalformedHash
		}
		values[key] = parsed
	}

	m, okM := values["m"]
	t, okT := values["t"]
	th, okP := values["p"]
	if !okM || !okT || !okP || len(values) != 3 {
		return params{}, errMalformedHash
	}
	return params{memory: uint32(m), time: uint32(t), threads: uint8(th)}, nil
}
