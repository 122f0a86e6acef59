package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const version = "v1"

var (
	ErrMalformed = errors.New("signature is malformed")
	ErrMismatch  = errors.New("signature does not match payload")
	ErrStale     = errors.New("signature issued outside validity window")
)

// Engine signs code payloads with HMAC-SHA256. The issuance timestamp is
// part of the signed material, so a signature cannot be replayed against a
// different issuance time.
type Engine struct {
	key            []byte
	validityWindow time.Duration
	now            func() time.Time
}

// NewEngine creates an Engine with the process-wide signing key.
// validityWindow bounds how old an otherwise-correct signature may be;
// zero disables the window check.
func NewEngine(key string, validityWindow time.Duration) *Engine {
	return &Engine{
		key:            []byte(key),
		validityWindow: validityWindow,
		now:            time.Now,
	}
}

// Sign produces a signature of the form "v1.<issuedAtUnix>.<base64url mac>".
func (e *Engine) Sign(payload []byte, issuedAt time.Time) string {
	ts := strconv.FormatInt(issuedAt.Unix(), 10)
	mac := e.mac(payload, ts)
	return version + "." + ts + "." + base64.RawURLEncoding.EncodeToString(mac)
}

// Verify checks sig against payload. The embedded timestamp is authenticated
// by the MAC itself, then checked against the validity window.
func (e *Engine) Verify(payload []byte, sig string) error {
	parts := strings.Split(sig, ".")
	if len(parts) != 3 || parts[0] != version {
		return ErrMalformed
	}

	ts := parts[1]
	issuedAtUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrMalformed
	}

	got, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return ErrMalformed
	}

	want := e.mac(payload, ts)
	if !hmac.Equal(got, want) {
		return ErrMismatch
	}

	if e.validityWindow > 0 {
		issuedAt := time.Unix(issuedAtUnix, 0)
		if e.now().Sub(issuedAt) > e.validityWindow {
			return fmt.Errorf("%w: issued at %s", ErrStale, issuedAt.UTC().Format(time.RFC3339))
		}
	}
	return nil
}

// IssuedAt extracts the embedded issuance timestamp without verifying the MAC.
func IssuedAt(sig string) (time.Time, error) {
	parts := strings.Split(sig, ".")
	if len(parts) != 3 || parts[0] != version {
		return time.Time{}, ErrMalformed
	}
	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, ErrMalformed
	}
	return time.Unix(unix, 0), nil
}

func (e *Engine) mac(payload []byte, ts string) []byte {
	h := hmac.New(sha256.New, e.key)
	h.Write([]byte(ts))
	h.Write([]byte("."))
	h.Write(payload)
	return h.Sum(nil)
}
