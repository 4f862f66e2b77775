package cache

// ScopedKeyer wraps a Keyer with a prefix for isolation.
// The HTTP service uses it to keep its entries apart from the CLI's when
// both share a Redis instance.
//
// Example usage:
//
//	serverKeyer := NewScopedKeyer(NewDefaultKeyer(), "serve:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// CarveKey generates a prefixed key for carved images.
func (k *ScopedKeyer) CarveKey(inputHash string, opts CarveKeyOpts) string {
	return k.prefix + k.inner.CarveKey(inputHash, opts)
}

// SeamKey generates a prefixed key for seams.
func (k *ScopedKeyer) SeamKey(inputHash string) string {
	return k.prefix + k.inner.SeamKey(inputHash)
}

// StatsKey generates a prefixed key for statistics.
func (k *ScopedKeyer) StatsKey(inputHash string) string {
	return k.prefix + k.inner.StatsKey(inputHash)
}
