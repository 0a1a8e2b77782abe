// Package security holds the key-material hygiene primitives shared by the
// key types: zeroizable buffers, weak-key screening and timing jitter for
// failure paths.
package security

import (
	"bytes"
	"crypto/rand"
	mathrand "math/rand"
	"runtime"
	"strings"
	"sync"
	"time"
)

// SecureBytes wraps key material so it can be zeroed once the key is no
// longer needed.
type SecureBytes struct {
	data []byte
	mu   sync.Mutex
}

// NewSecureBytesFromSlice copies data into a zeroizable buffer. Large
// buffers get a finalizer as a backstop for callers that forget Destroy.
func NewSecureBytesFromSlice(data []byte) *SecureBytes {
	secure := &SecureBytes{
		data: make([]byte, len(data)),
	}
	copy(secure.data, data)

	if len(data) > 256 {
		runtime.SetFinalizer(secure, (*SecureBytes).destroy)
	}
	return secure
}

// Bytes returns the underlying slice. Callers must not retain it past the
// buffer's lifetime.
func (s *SecureBytes) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Len reports the buffer length, zero after Destroy.
func (s *SecureBytes) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Destroy zeros the buffer and detaches the finalizer.
func (s *SecureBytes) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroy()
	runtime.SetFinalizer(s, nil)
}

func (s *SecureBytes) destroy() {
	if s.data != nil {
		ZeroBytes(s.data)
		s.data = nil
	}
}

// ZeroBytes overwrites a slice with zeros, then ones, then zeros, and keeps
// the slice alive so the writes are not elided.
func ZeroBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	for i := range data {
		data[i] = 0
	}
	for i := range data {
		data[i] = 0xFF
	}
	for i := range data {
		data[i] = 0
	}
	runtime.KeepAlive(data)
}

// RandomDelay sleeps for a small random interval, used on verification
// failure paths to blur timing differences between rejection causes.
func RandomDelay() {
	delay := time.Duration(mathrand.Intn(50)+1) * time.Microsecond
	time.Sleep(delay)
}

// SecureRandomDelay is RandomDelay with a crypto-rand source, for paths
// where even the jitter should be unpredictable.
func SecureRandomDelay() {
	var b [1]byte
	rand.Read(b[:])
	delay := time.Duration(10+int(b[0])%90) * time.Microsecond
	time.Sleep(delay)
}

// IsWeakKey screens key material for patterns that defeat its nominal
// length: constant or near-constant bytes, dictionary words, keyboard walks
// and short repeating sequences.
func IsWeakKey(key []byte) bool {
	if len(key) == 0 {
		return true
	}

	constant := true
	for _, b := range key {
		if b != key[0] {
			constant = false
			break
		}
	}
	if constant {
		return true
	}

	if hasLowEntropy(key) {
		return true
	}

	lowered := strings.ToLower(string(key))
	for _, word := range weakWords {
		if strings.Contains(lowered, word) {
			return true
		}
	}
	if hasKeyboardWalk(lowered) {
		return true
	}

	if isByteSequence(key) {
		return true
	}
	return hasShortCycle(key)
}

var weakWords = []string{
	"12345678", "87654321", "11111111", "00000000", "aaaaaaaa",
	"abcdefgh", "password", "letmein", "welcome", "iloveyou",
	"default", "example", "sample", "demo", "guest",
	"secret", "test", "admin", "token",
}

// hasLowEntropy rejects keys whose byte diversity is far below what random
// material would show.
func hasLowEntropy(key []byte) bool {
	if len(key) < 8 {
		return true
	}
	unique := make(map[byte]struct{}, len(key))
	for _, b := range key {
		unique[b] = struct{}{}
	}
	return float64(len(unique))/float64(len(key)) < 0.3
}

func hasKeyboardWalk(lowered string) bool {
	walks := []string{
		"qwertyuiop", "asdfghjkl", "zxcvbnm",
		"1234567890", "qwerty", "asdfgh", "azerty",
	}
	for _, walk := range walks {
		if strings.Contains(lowered, walk) {
			return true
		}
		if strings.Contains(lowered, reverse(walk)) {
			return true
		}
	}
	return false
}

// isByteSequence detects +1/-1 runs such as 0x01 0x02 0x03 in the key's
// first eight bytes.
func isByteSequence(key []byte) bool {
	if len(key) < 8 {
		return false
	}
	ascending, descending := true, true
	for i := 1; i < 8; i++ {
		if key[i] != key[i-1]+1 {
			ascending = false
		}
		if key[i] != key[i-1]-1 {
			descending = false
		}
	}
	return ascending || descending
}

// hasShortCycle detects keys built by repeating a 2 to 4 byte motif.
func hasShortCycle(key []byte) bool {
	if len(key) < 6 {
		return false
	}
	for motifLen := 2; motifLen <= 4; motifLen++ {
		if len(key) < motifLen*3 {
			continue
		}
		motif := key[:motifLen]
		cycles := true
		for i := motifLen; i < len(key); i += motifLen {
			end := i + motifLen
			if end > len(key) {
				if !bytes.Equal(key[i:], motif[:len(key)-i]) {
					cycles = false
				}
				break
			}
			if !bytes.Equal(key[i:end], motif) {
				cycles = false
				break
			}
		}
		if cycles {
			return true
		}
	}
	return false
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
