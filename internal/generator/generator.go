// Package generator builds random passwords from selected character classes.
//
// The default source is math/rand/v2 and is NOT cryptographically secure.
// Use NewSecure when the output has to resist prediction.
package generator

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/zarlcorp/core/pkg/zcrypto"
)

// character classes, concatenated in this order when enabled
const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()_+{}[]|:;<>,.?/~"
)

// length bounds for the popup slider
const (
	MinLength     = 4
	MaxLength     = 32
	DefaultLength = 16
)

var (
	// ErrEmptyCharset is returned when no character class is enabled.
	ErrEmptyCharset = errors.New("select at least one character type")

	// ErrInvalidLength is returned for lengths below one.
	ErrInvalidLength = errors.New("password length must be positive")
)

// Options selects the character classes and length of a password.
type Options struct {
	Length int  `json:"length"`
	Lower  bool `json:"lower"`
	Upper  bool `json:"upper"`
	Digit  bool `json:"digit"`
	Symbol bool `json:"symbol"`
}

// DefaultOptions enables every class at the default length.
func DefaultOptions() Options {
	return Options{
		Length: DefaultLength,
		Lower:  true,
		Upper:  true,
		Digit:  true,
		Symbol: true,
	}
}

// Charset returns the concatenated alphabets of the enabled classes.
// Larger classes are proportionally more likely per position.
func Charset(opts Options) string {
	var s string
	if opts.Lower {
		s += lowerChars
	}
	if opts.Upper {
		s += upperChars
	}
	if opts.Digit {
		s += digitChars
	}
	if opts.Symbol {
		s += symbolChars
	}
	return s
}

// Clamp bounds n to [MinLength, MaxLength].
func Clamp(n int) int {
	return min(max(n, MinLength), MaxLength)
}

// Generator draws password characters from a random source.
type Generator struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	secure bool
}

// New creates a generator over a PCG source seeded from the runtime.
func New() *Generator {
	return NewWithSource(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewSecure creates a generator over a ChaCha8 stream seeded from the
// operating system's CSPRNG.
func NewSecure() (*Generator, error) {
	seed, err := zcrypto.RandBytes(32)
	if err != nil {
		return nil, fmt.Errorf("seed generator: %w", err)
	}
	defer zcrypto.Erase(seed)

	var s [32]byte
	copy(s[:], seed)
	g := NewWithSource(rand.NewChaCha8(s))
	g.secure = true
	return g, nil
}

// NewWithSource creates a generator over src. Tests use it for determinism.
func NewWithSource(src rand.Source) *Generator {
	return &Generator{rnd: rand.New(src)}
}

// Secure reports whether the generator draws from a cryptographic stream.
func (g *Generator) Secure() bool {
	return g.secure
}

// Generate returns a password of opts.Length characters, each drawn
// independently and uniformly from Charset(opts).
func (g *Generator) Generate(opts Options) (string, error) {
	charset := Charset(opts)
	if charset == "" {
		return "", ErrEmptyCharset
	}
	if opts.Length < 1 {
		return "", ErrInvalidLength
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	b := make([]byte, opts.Length)
	for i := range b {
		b[i] = charset[g.rnd.IntN(len(charset))]
	}
	return string(b), nil
}
