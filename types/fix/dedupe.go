package fix

import (
	"fmt"

	"github.com/golang/groupcache/lru"
	"github.com/halocircle/guardd/params"
	"github.com/mitchellh/hashstructure/v2"
)

// NewDedupePassLRUFunc returns a predicate that is true the first time it
// sees a fix and false for repeats, using an LRU of structure hashes.
// Devices re-deliver fixes across reconnects; repeats would double-feed the
// smoothing windows.
func NewDedupePassLRUFunc() func(RawFix) bool {
	dedupeCache := lru.New(params.DefaultDedupeCacheSize)
	return func(f RawFix) bool {
		hash, err := hashstructure.Hash(f, hashstructure.FormatV2, nil)
		if err != nil {
			return false
		}
		key := fmt.Sprintf("%d", hash)
		if _, ok := dedupeCache.Get(key); ok {
			return false
		}
		dedupeCache.Add(key, true)
		return true
	}
}
