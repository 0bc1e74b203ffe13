package engine

import (
	"sync/atomic"

	"specsharp/internal/taxonomy"
)

// Provider hands out an Engine for the registry currently published by a
// Holder, rebuilding it only after the registry has been swapped.
type Provider struct {
	holder *taxonomy.Holder
	cfg    Config
	cur    atomic.Pointer[Engine]
}

func NewProvider(holder *taxonomy.Holder, cfg Config) (*Provider, error) {
	e, err := New(holder.Current(), cfg)
	if err != nil {
		return nil, err
	}
	p := &Provider{holder: holder, cfg: cfg}
	p.cur.Store(e)
	return p, nil
}

func (p *Provider) Engine() *Engine {
	reg := p.holder.Current()
	e := p.cur.Load()
	if e.reg == reg {
		return e
	}
	// Config was validated in NewProvider, so New cannot fail here.
	next, _ := New(reg, p.cfg)
	p.cur.CompareAndSwap(e, next)
	return next
}
