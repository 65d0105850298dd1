package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"citzn-api/internal/metrics"
	"citzn-api/internal/models"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	resultKeyPrefix   = "citzn:zip:"
	stateIndexPrefix  = "citzn:idx:state:"
	districtIdxPrefix = "citzn:idx:district:"
)

type entry struct {
	result    models.ZipLookupResult
	expiresAt time.Time
}

// TieredCache is a two-tier cache for resolved ZIP bundles: a bounded
// in-process LRU in front of Redis for cross-process sharing. Redis is
// optional; with a nil client the cache degrades to the in-process tier only.
//
// TTLs follow the source: static-table and geocoder results live for days
// since district boundaries change only with redistricting, fallback results
// get minutes because their quality is too low to trust for long.
type TieredCache struct {
	local       *lru.Cache[string, entry]
	rdb         *redis.Client
	ttl         time.Duration
	fallbackTTL time.Duration
}

// NewTieredCache creates a tiered cache with the given local size. rdb may be
// nil to run without the durable tier.
func NewTieredCache(size int, rdb *redis.Client, ttl, fallbackTTL time.Duration) (*TieredCache, error) {
	local, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to create local tier: %w", err)
	}
	return &TieredCache{local: local, rdb: rdb, ttl: ttl, fallbackTTL: fallbackTTL}, nil
}

// Get returns the cached result for a ZIP if an unexpired entry exists in
// either tier. A Redis hit is promoted into the local tier.
func (c *TieredCache) Get(ctx context.Context, zip string) (models.ZipLookupResult, bool) {
	if e, ok := c.local.Get(zip); ok {
		if time.Now().Before(e.expiresAt) {
			metrics.CacheHitsTotal.WithLabelValues("local").Inc()
			return e.result, true
		}
		c.local.Remove(zip)
	}

	if c.rdb == nil {
		return models.ZipLookupResult{}, false
	}

	data, err := c.rdb.Get(ctx, resultKeyPrefix+zip).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Str("zip", zip).Err(err).Msg("redis get failed")
		}
		return models.ZipLookupResult{}, false
	}

	var result models.ZipLookupResult
	if err := json.Unmarshal(data, &result); err != nil {
		log.Warn().Str("zip", zip).Err(err).Msg("corrupt cache entry dropped")
		c.rdb.Del(ctx, resultKeyPrefix+zip)
		return models.ZipLookupResult{}, false
	}

	metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
	c.local.Add(zip, entry{result: result, expiresAt: result.ResolvedAt.Add(c.ttlFor(result.Source))})
	return result, true
}

// Set stores a resolved bundle in both tiers and registers it in the state
// and district invalidation indexes. Writes are last-writer-wins; results are
// deterministic for a given dataset snapshot so that is safe.
func (c *TieredCache) Set(ctx context.Context, zip string, result models.ZipLookupResult) error {
	ttl := c.ttlFor(result.Source)
	c.local.Add(zip, entry{result: result, expiresAt: time.Now().Add(ttl)})

	if c.rdb == nil {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal result: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, resultKeyPrefix+zip, data, ttl)
	for _, key := range indexKeys(result) {
		pipe.SAdd(ctx, key, zip)
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: failed to write durable tier: %w", err)
	}
	return nil
}

// InvalidateZip drops a single ZIP from both tiers. Used by the manual
// data-correction workflow.
func (c *TieredCache) InvalidateZip(ctx context.Context, zip string) error {
	c.local.Remove(zip)
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, resultKeyPrefix+zip).Err(); err != nil {
		return fmt.Errorf("cache: failed to invalidate ZIP %s: %w", zip, err)
	}
	return nil
}

// InvalidateState drops every cached ZIP in a state. Used for redistricting
// events, which redraw boundaries statewide.
func (c *TieredCache) InvalidateState(ctx context.Context, state string) (int, error) {
	removed := c.purgeLocal(func(r models.ZipLookupResult) bool { return r.State == state })

	if c.rdb == nil {
		return removed, nil
	}

	n, err := c.dropIndexed(ctx, stateIndexPrefix+state)
	if err != nil {
		return removed, err
	}
	if n > removed {
		removed = n
	}
	return removed, nil
}

// InvalidateDistrict drops every cached ZIP assigned to one district,
// including ZIPs that carry it as an alternate.
func (c *TieredCache) InvalidateDistrict(ctx context.Context, state string, chamber models.Chamber, district int) (int, error) {
	removed := c.purgeLocal(func(r models.ZipLookupResult) bool {
		return r.State == state && resultHasDistrict(r, chamber, district)
	})

	if c.rdb == nil {
		return removed, nil
	}

	n, err := c.dropIndexed(ctx, districtIndexKey(state, chamber, district))
	if err != nil {
		return removed, err
	}
	if n > removed {
		removed = n
	}
	return removed, nil
}

func (c *TieredCache) purgeLocal(match func(models.ZipLookupResult) bool) int {
	removed := 0
	for _, key := range c.local.Keys() {
		if e, ok := c.local.Peek(key); ok && match(e.result) {
			c.local.Remove(key)
			removed++
		}
	}
	return removed
}

func (c *TieredCache) dropIndexed(ctx context.Context, indexKey string) (int, error) {
	zips, err := c.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: failed to read index %s: %w", indexKey, err)
	}

	keys := make([]string, 0, len(zips)+1)
	for _, zip := range zips {
		keys = append(keys, resultKeyPrefix+zip)
	}
	keys = append(keys, indexKey)

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("cache: failed to drop indexed entries: %w", err)
	}
	return len(zips), nil
}

func (c *TieredCache) ttlFor(source models.ResultSource) time.Duration {
	if source == models.SourceFallbackDefault {
		return c.fallbackTTL
	}
	return c.ttl
}

func indexKeys(result models.ZipLookupResult) []string {
	keys := []string{stateIndexPrefix + result.State}
	chambers := []struct {
		chamber  models.Chamber
		district int
	}{
		{models.ChamberCongressional, result.CongressionalDistrict},
		{models.ChamberStateSenate, result.StateSenateDistrict},
		{models.ChamberStateAssembly, result.StateAssemblyDistrict},
	}
	for _, c := range chambers {
		if c.district > 0 {
			keys = append(keys, districtIndexKey(result.State, c.chamber, c.district))
		}
	}
	// Alternate assignments must be indexed too: a redistricting event on a
	// district a ZIP holds only as an alternate still invalidates the entry.
	for _, alt := range result.AlternateDistricts {
		if alt.District > 0 {
			keys = append(keys, districtIndexKey(result.State, alt.Chamber, alt.District))
		}
	}
	return keys
}

func districtIndexKey(state string, chamber models.Chamber, district int) string {
	return fmt.Sprintf("%s%s:%s:%d", districtIdxPrefix, state, chamber, district)
}

func resultHasDistrict(r models.ZipLookupResult, chamber models.Chamber, district int) bool {
	switch chamber {
	case models.ChamberCongressional:
		if r.CongressionalDistrict == district {
			return true
		}
	case models.ChamberStateSenate:
		if r.StateSenateDistrict == district {
			return true
		}
	case models.ChamberStateAssembly:
		if r.StateAssemblyDistrict == district {
			return true
		}
	}
	for _, alt := range r.AlternateDistricts {
		if alt.Chamber == chamber && alt.District == district {
			return true
		}
	}
	return false
}
