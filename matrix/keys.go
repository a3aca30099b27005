package matrix

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// KeyManager owns the rotation keys of an encryption context. It implements
// rlwe.EvaluationKeySet, so a scheme evaluator constructed on top of it reads
// keys from the same cache that Ensure populates: once an amount has been
// ensured, every later evaluation finds its key without further generation.
//
// Key generation is expensive and never happens implicitly inside a transform;
// the engines assume all amounts were ensured up front. Concurrent Ensure
// calls with overlapping amount sets coalesce: each Galois element is
// generated exactly once, and readers never observe a key mid-generation.
type KeyManager struct {
	params *rlwe.Parameters
	kgen   *rlwe.KeyGenerator

	mu      sync.RWMutex
	keys    map[uint64]*rlwe.GaloisKey
	pending map[uint64]chan struct{}
	rlk     *rlwe.RelinearizationKey

	// genMu serializes use of the non-thread-safe key generator.
	genMu sync.Mutex

	generated atomic.Uint64
}

// NewKeyManager returns an empty key cache bound to the given parameters. Its
// lifetime is that of the encryption context; keys are never regenerated for
// an amount already present.
func NewKeyManager(params rlwe.ParameterProvider) *KeyManager {
	p := params.GetRLWEParameters()
	return &KeyManager{
		params:  p,
		kgen:    rlwe.NewKeyGenerator(p),
		keys:    make(map[uint64]*rlwe.GaloisKey),
		pending: make(map[uint64]chan struct{}),
	}
}

// Ensure generates rotation keys under sk for every amount not already cached.
// It is idempotent, and safe to call concurrently with overlapping sets:
// amounts being generated by another caller are waited on, not regenerated.
func (km *KeyManager) Ensure(sk *rlwe.SecretKey, amounts []int) error {
	galEls := km.params.GaloisElements(amounts)

	var own []uint64
	var wait []chan struct{}

	km.mu.Lock()
	for _, galEl := range galEls {
		if _, ok := km.keys[galEl]; ok {
			continue
		}
		if ch, ok := km.pending[galEl]; ok {
			wait = append(wait, ch)
			continue
		}
		ch := make(chan struct{})
		km.pending[galEl] = ch
		own = append(own, galEl)
	}
	km.mu.Unlock()

	for _, galEl := range own {
		km.genMu.Lock()
		gk := km.kgen.GenGaloisKeyNew(galEl, sk)
		km.genMu.Unlock()

		km.generated.Add(1)

		km.mu.Lock()
		km.keys[galEl] = gk
		ch := km.pending[galEl]
		delete(km.pending, galEl)
		km.mu.Unlock()
		close(ch)
	}

	for _, ch := range wait {
		<-ch
	}
	return nil
}

// EnsureRelinearizationKey generates the relinearization key under sk if it is
// not cached yet. It is required by ciphertext-ciphertext products.
func (km *KeyManager) EnsureRelinearizationKey(sk *rlwe.SecretKey) error {
	km.mu.RLock()
	present := km.rlk != nil
	km.mu.RUnlock()
	if present {
		return nil
	}

	km.genMu.Lock()
	defer km.genMu.Unlock()

	km.mu.RLock()
	present = km.rlk != nil
	km.mu.RUnlock()
	if present {
		return nil
	}

	rlk := km.kgen.GenRelinearizationKeyNew(sk)
	km.generated.Add(1)

	km.mu.Lock()
	km.rlk = rlk
	km.mu.Unlock()
	return nil
}

// GenerationCount reports how many keys have been generated since creation.
func (km *KeyManager) GenerationCount() uint64 {
	return km.generated.Load()
}

// GetGaloisKey returns the cached key for the given Galois element, or
// ErrKeyNotFound if no Ensure call covered it.
func (km *KeyManager) GetGaloisKey(galEl uint64) (*rlwe.GaloisKey, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	if gk, ok := km.keys[galEl]; ok {
		return gk, nil
	}
	return nil, fmt.Errorf("galois element %d: %w", galEl, ErrKeyNotFound)
}

// GetGaloisKeysList returns the Galois elements of all cached keys.
func (km *KeyManager) GetGaloisKeysList() []uint64 {
	km.mu.RLock()
	defer km.mu.RUnlock()
	galEls := maps.Keys(km.keys)
	slices.Sort(galEls)
	return galEls
}

// GetRelinearizationKey returns the cached relinearization key.
func (km *KeyManager) GetRelinearizationKey() (*rlwe.RelinearizationKey, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	if km.rlk == nil {
		return nil, fmt.Errorf("relinearization key: %w", ErrKeyNotFound)
	}
	return km.rlk, nil
}
