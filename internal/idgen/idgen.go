package idgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

const (
	suffixLength = 9
	charset      = "abcdefghijklmnopqrstuvwxyz0123456789"

	// bytes at or above this are discarded so every charset symbol is equally likely
	maxUnbiased = 256 - 256%len(charset)
)

// Generator produces opaque ids of the form <prefix>_<unix-ms>_<suffix>
type Generator interface {
	NewID(prefix string) string
}

// TimeRandom generates ids from the wall clock and a random base36 suffix
type TimeRandom struct {
	now    func() time.Time
	random io.Reader
}

// New creates a generator backed by time.Now and crypto/rand
func New() *TimeRandom {
	return &TimeRandom{now: time.Now, random: rand.Reader}
}

// NewID returns a fresh id with the given prefix. It panics only if the random
// source fails; crypto/rand.Reader does not return errors on supported platforms.
func (g *TimeRandom) NewID(prefix string) string {
	random := g.random
	if random == nil {
		random = rand.Reader
	}

	suffix, err := randomSuffix(random)
	if err != nil {
		panic(fmt.Sprintf("idgen: read random bytes: %v", err))
	}

	return fmt.Sprintf("%s_%d_%s", prefix, g.now().UnixMilli(), suffix)
}

func randomSuffix(random io.Reader) (string, error) {
	code := make([]byte, 0, suffixLength)
	buf := make([]byte, suffixLength*2)

	for len(code) < suffixLength {
		if _, err := io.ReadFull(random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			code = append(code, charset[int(b)%len(charset)])
			if len(code) == suffixLength {
				break
			}
		}
	}

	return string(code), nil
}
