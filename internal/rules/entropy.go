package rules

import (
	"fmt"
	"math"
	"strings"
)

const (
	Base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/="
	HexChars    = "0123456789abcdefABCDEF"

	DefaultEntropyID        = "high-entropy"
	DefaultEntropyMessage   = "High Entropy"
	DefaultEntropyThreshold = 4.5
	DefaultEntropyMinLength = 20
)

// Entropy reports runs of alphabet characters longer than minLength whose
// Shannon entropy exceeds threshold.
type Entropy struct {
	base
	alphabet  string
	set       map[rune]struct{}
	threshold float64
	minLength int
}

// EntropyOptions configures NewEntropy. Zero values select the defaults.
type EntropyOptions struct {
	ID        string
	Message   string
	Severity  Severity
	Alphabet  string
	Threshold float64
	MinLength int
}

func NewEntropy(opts EntropyOptions) (*Entropy, error) {
	if opts.ID == "" {
		opts.ID = DefaultEntropyID
	}
	if opts.Message == "" {
		opts.Message = DefaultEntropyMessage
	}
	if opts.Alphabet == "" {
		opts.Alphabet = Base64Chars
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultEntropyThreshold
	}
	if opts.MinLength == 0 {
		opts.MinLength = DefaultEntropyMinLength
	}
	if opts.Threshold < 0 || opts.MinLength < 0 {
		return nil, fmt.Errorf("entropy rule %q: threshold and min_length must not be negative", opts.ID)
	}
	if opts.Severity != 0 && !opts.Severity.Valid() {
		return nil, fmt.Errorf("entropy rule %q: invalid severity", opts.ID)
	}

	alphabet := dedupe(opts.Alphabet)
	return &Entropy{
		base:      newBase(opts.ID, opts.Message, opts.Severity),
		alphabet:  alphabet,
		set:       runeSet(alphabet),
		threshold: opts.Threshold,
		minLength: opts.MinLength,
	}, nil
}

func (e *Entropy) Alphabet() string   { return e.alphabet }
func (e *Entropy) Threshold() float64 { return e.threshold }
func (e *Entropy) MinLength() int     { return e.minLength }

func (e *Entropy) FindAll(line string) []string {
	var matched []string
	for _, word := range getStrings(line, e.set, e.minLength) {
		if shannonEntropy(word, e.alphabet) > e.threshold {
			matched = append(matched, word)
		}
	}
	return matched
}

// GetStrings extracts maximal runs of alphabet characters whose length is
// strictly greater than minLength.
func GetStrings(s, alphabet string, minLength int) []string {
	return getStrings(s, runeSet(alphabet), minLength)
}

func getStrings(s string, set map[rune]struct{}, minLength int) []string {
	var (
		out   []string
		run   strings.Builder
		count int
	)
	flush := func() {
		if count > minLength {
			out = append(out, run.String())
		}
		run.Reset()
		count = 0
	}

	for _, r := range s {
		if _, ok := set[r]; ok {
			run.WriteRune(r)
			count++
			continue
		}
		flush()
	}
	flush()

	return out
}

// ShannonEntropy computes the entropy of s over alphabet, in bits. The
// entropy of an empty string is 0.
func ShannonEntropy(s, alphabet string) float64 {
	return shannonEntropy(s, dedupe(alphabet))
}

func shannonEntropy(s, alphabet string) float64 {
	if s == "" {
		return 0.0
	}

	counts := make(map[rune]int)
	total := 0
	for _, r := range s {
		counts[r]++
		total++
	}

	entropy := 0.0
	for _, r := range alphabet {
		px := float64(counts[r]) / float64(total)
		if px > 0 {
			entropy -= px * math.Log2(px)
		}
	}
	return entropy
}

func runeSet(alphabet string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(alphabet))
	for _, r := range alphabet {
		set[r] = struct{}{}
	}
	return set
}

func dedupe(alphabet string) string {
	seen := make(map[rune]struct{}, len(alphabet))
	var b strings.Builder
	for _, r := range alphabet {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		b.WriteRune(r)
	}
	return b.String()
}
