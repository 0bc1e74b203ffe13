package taxonomy

import "sync/atomic"

// Holder publishes the current Registry. Readers take a snapshot with
// Current and keep using it for the whole calculation; a reload swaps in
// a new Registry without touching the old one.
type Holder struct {
	reg atomic.Pointer[Registry]
}

func NewHolder(r *Registry) *Holder {
	h := &Holder{}
	h.reg.Store(r)
	return h
}

func (h *Holder) Current() *Registry {
	return h.reg.Load()
}

// Swap installs r and returns the registry it replaced.
func (h *Holder) Swap(r *Registry) *Registry {
	return h.reg.Swap(r)
}
