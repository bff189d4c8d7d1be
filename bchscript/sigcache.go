// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bchscript

import (
	"sync"
)

// sigCacheEntry represents an entry in the SigCache.  Entries within the
// SigCache are keyed by a 3-tuple of (sig hash, signature, public key).
type sigCacheEntry struct {
	sigHash string
	sig     string
	pubKey  string
}

// SigCache implements a signature verification cache with a randomized entry
// eviction policy.  Only valid signatures will be added to the cache.  The
// benefits of SigCache are two fold.  Firstly, usage of SigCache mitigates a
// DoS attack wherein an attacker causes a victim's client to hang due to
// worst-case behavior triggered while processing attacker crafted invalid
// signatures.  Secondly, it introduces a signature verification optimization
// which speeds up the re-validation of inputs whose signatures were already
// seen and verified.
//
// A SigCache is owned by the caller and passed to each engine that should use
// it; the package itself keeps no process-global state.
type SigCache struct {
	sync.RWMutex
	validSigs  map[sigCacheEntry]struct{}
	maxEntries uint
}

// NewSigCache creates and initializes a new instance of SigCache.  Its sole
// parameter 'maxEntries' represents the maximum number of entries allowed to
// exist in the SigCache at any particular moment.  Random entries are evicted
// to make room for new entries that would cause the number of entries in the
// cache to exceed the max.
func NewSigCache(maxEntries uint) *SigCache {
	return &SigCache{
		validSigs:  make(map[sigCacheEntry]struct{}, maxEntries),
		maxEntries: maxEntries,
	}
}

// Exists returns true if an existing entry of 'sig' over 'sigHash' for public
// key 'pubKey' is found within the SigCache.  Otherwise, false is returned.
//
// NOTE: This function is safe for concurrent access.  Readers won't be
// blocked unless there exists a writer, adding an entry to the SigCache.
func (s *SigCache) Exists(sigHash, sig, pubKey []byte) bool {
	entry := sigCacheEntry{string(sigHash), string(sig), string(pubKey)}

	s.RLock()
	_, ok := s.validSigs[entry]
	s.RUnlock()
	return ok
}

// Add adds an entry for a signature over 'sigHash' under public key 'pubKey'
// to the signature cache.  In the event that the SigCache is 'full', an
// existing entry is randomly chosen to be evicted in order to make space for
// the new entry.
//
// NOTE: This function is safe for concurrent access.  Writers will block
// simultaneous readers until function execution has concluded.
func (s *SigCache) Add(sigHash, sig, pubKey []byte) {
	s.Lock()
	defer s.Unlock()

	if s.maxEntries == 0 {
		return
	}

	// If adding this new entry will put us over the max number of allowed
	// entries, then evict an entry.  Go's range statement iterates the map
	// in pseudo-random key order, so the entry removed is effectively
	// random.
	if uint(len(s.validSigs))+1 > s.maxEntries {
		for entry := range s.validSigs {
			delete(s.validSigs, entry)
			break
		}
	}

	s.validSigs[sigCacheEntry{string(sigHash), string(sig), string(pubKey)}] = struct{}{}
}
