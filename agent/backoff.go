package main

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

const backoffCapExponent = 5

// Backoff is the reconnect policy: after the n-th consecutive failure the
// agent waits min(Base * 2^min(n, 5), Max).
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// NewPolicy returns an exponential policy whose n-th NextBackOff is the
// delay after n failures. Reset it once a session is authenticated.
func (b Backoff) NewPolicy() *backoff.ExponentialBackOff {
	ceiling := b.ceiling()
	p := backoff.NewExponentialBackOff()
	p.InitialInterval = min(2*b.Base, ceiling)
	p.MaxInterval = ceiling
	p.Multiplier = 2
	p.RandomizationFactor = 0
	p.Reset()
	return p
}

func (b Backoff) ceiling() time.Duration {
	c := b.Base << backoffCapExponent
	if b.Max > 0 && b.Max < c {
		return b.Max
	}
	return c
}
