package compiler

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	lru "github.com/hashicorp/golang-lru/v2"
)

// codeCacheSize is the number of translated programs kept in memory. A
// program is a few times the size of its bytecode, so this bounds the cache
// to a few hundred megabytes for worst-case contracts.
const codeCacheSize = 4096

var (
	cacheHitMeter   = metrics.NewRegisteredMeter("compiler/cache/hit", nil)
	cacheMissMeter  = metrics.NewRegisteredMeter("compiler/cache/miss", nil)
	translateFailed = metrics.NewRegisteredCounter("compiler/translate/failed", nil)
)

// Cache memoizes translated programs keyed by code hash. Translation is
// deterministic, so concurrent duplicate work is harmless and the cache
// needs no further coordination beyond the LRU's own lock.
type Cache struct {
	programs *lru.Cache[common.Hash, *Program]
}

// NewCache returns an empty program cache.
func NewCache() *Cache {
	programs, _ := lru.New[common.Hash, *Program](codeCacheSize)
	return &Cache{programs: programs}
}

// Get returns the translated program for the given code, translating and
// memoizing it on first sight. The zero hash is used for code without a
// known hash (e.g. init code) and bypasses the cache.
func (c *Cache) Get(codeHash common.Hash, code []byte) (*Program, error) {
	if codeHash == (common.Hash{}) {
		return Translate(code)
	}
	if program, ok := c.programs.Get(codeHash); ok {
		cacheHitMeter.Mark(1)
		return program, nil
	}
	cacheMissMeter.Mark(1)
	program, err := Translate(code)
	if err != nil {
		translateFailed.Inc(1)
		log.Debug("Bytecode translation failed", "codeHash", codeHash, "err", err)
		return nil, err
	}
	c.programs.Add(codeHash, program)
	return program, nil
}
