// SPDX-License-Identifier: GPL-3.0-or-later

package dnsload

import (
	"math/rand/v2"
	"sync"
)

// Random label parameters.
const (
	labelAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	labelMinLength = 3
	labelMaxLength = 7
)

// NameProvider returns the name to query for a given sequence id.
//
// Implementations must be safe for concurrent use.
type NameProvider interface {
	Next(sequenceID int64) string
}

// NewNameProvider returns the [NameProvider] selected by cfg.
//
// When cfg.Randomized is false, the provider always returns cfg.Domain and
// src is ignored. Otherwise, src is the random source shared by all the
// workers of a run. Callers should create a new source for each run.
func NewNameProvider(cfg Config, src rand.Source) NameProvider {
	if !cfg.Randomized {
		return fixedNameProvider(cfg.Domain)
	}
	return &randomNameProvider{domain: cfg.Domain, rnd: rand.New(src)}
}

// fixedNameProvider always returns the same name.
type fixedNameProvider string

var _ NameProvider = fixedNameProvider("")

// Next implements [NameProvider].
func (p fixedNameProvider) Next(sequenceID int64) string {
	return string(p)
}

// randomNameProvider prepends a random label to the domain.
//
// Collisions are possible and not tracked.
type randomNameProvider struct {
	domain string

	// mu protects rnd, which is not safe for concurrent use.
	mu  sync.Mutex
	rnd *rand.Rand
}

var _ NameProvider = &randomNameProvider{}

// Next implements [NameProvider].
func (p *randomNameProvider) Next(sequenceID int64) string {
	return p.label() + "." + p.domain
}

func (p *randomNameProvider) label() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	size := labelMinLength + p.rnd.IntN(labelMaxLength-labelMinLength+1)
	label := make([]byte, size)
	for idx := range label {
		label[idx] = labelAlphabet[p.rnd.IntN(len(labelAlphabet))]
	}
	return string(label)
}

// newRandSource returns the random source for a run.
func newRandSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}
