package currency

import (
	"fmt"
	"math/big"
	"sync"
	"time"
)

// StaticProvider serves rates from a fixed in-memory table. Rates are
// stored in one direction and inverted on demand, so a USD->EUR entry also
// answers EUR->USD.
type StaticProvider struct {
	mu    sync.RWMutex
	rates map[string]Rate // key: FROM/TO
}

// NewStaticProvider creates an empty provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{rates: make(map[string]Rate)}
}

func key(from, to string) string { return from + "/" + to }

// Set registers a rate for a currency pair.
func (p *StaticProvider) Set(rate Rate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rates[key(rate.From, rate.To)] = rate
}

// SetRat registers a rate given as a rational, stamped now.
func (p *StaticProvider) SetRat(from, to string, num, den int64) {
	p.Set(NewRate(from, to, num, den, time.Now()))
}

// Rate implements RateProvider. Unknown pairs fail with ErrNoRate.
func (p *StaticProvider) Rate(from, to string) (Rate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if r, ok := p.rates[key(from, to)]; ok {
		return r, nil
	}
	// Invert the reverse pair when present.
	if r, ok := p.rates[key(to, from)]; ok && r.Value.Sign() != 0 {
		return Rate{
			From:  from,
			To:    to,
			Value: new(big.Rat).Inv(r.Value),
			AsOf:  r.AsOf,
		}, nil
	}
	return Rate{}, fmt.Errorf("%w: %s -> %s", ErrNoRate, from, to)
}
