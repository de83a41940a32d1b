package learner

import (
	"github.com/weixiaohua/xgboost/data"
	"github.com/weixiaohua/xgboost/pkg/errors"
)

// cacheEntry records one matrix registered in the prediction buffer cache.
type cacheEntry struct {
	mat          *data.DMatrix
	bufferOffset int64
	numRow       int
}

// bufferCache assigns each registered matrix a disjoint row range inside
// the booster's global prediction buffer. Offsets partition
// [0, totalRows) in registration order with no gaps, which is what lets
// the booster amortize per-round prediction down to newly added ensemble
// members only.
type bufferCache struct {
	owner   any
	entries []cacheEntry
}

// register assigns buffer offsets. Callable at most once per learner;
// duplicate handles inside mats are skipped. Returns the total number of
// buffered rows and the widest feature count seen.
func (c *bufferCache) register(mats []*data.DMatrix) (bufferSize int64, numFeature int, err error) {
	if len(c.entries) != 0 {
		return 0, 0, errors.NewValueError("SetCacheData", "can only call cache data once")
	}
	for i, mat := range mats {
		duplicate := false
		for j := 0; j < i; j++ {
			if mats[j] == mat {
				duplicate = true
			}
		}
		if duplicate {
			continue
		}
		// weak back-reference; a later registration under another learner
		// overwrites it and orphans this entry
		mat.SetCacheOwner(c.owner)
		c.entries = append(c.entries, cacheEntry{
			mat:          mat,
			bufferOffset: bufferSize,
			numRow:       mat.NumRow(),
		})
		bufferSize += int64(mat.NumRow())
		if mat.NumCol() > numFeature {
			numFeature = mat.NumCol()
		}
	}
	return bufferSize, numFeature, nil
}

// registered reports whether mat has an entry owned by this cache,
// regardless of staleness.
func (c *bufferCache) registered(mat *data.DMatrix) bool {
	for i := range c.entries {
		if c.entries[i].mat == mat && mat.CacheOwner() == c.owner {
			return true
		}
	}
	return false
}

// findOffset returns the buffer offset assigned to mat, or -1 when the
// matrix is unregistered, owned by another learner, or has changed row
// count since registration. The stale case is a performance condition, not
// an error: it warns and falls back to uncached prediction.
func (c *bufferCache) findOffset(mat *data.DMatrix) int64 {
	for i := range c.entries {
		entry := &c.entries[i]
		if entry.mat == mat && mat.CacheOwner() == c.owner {
			if entry.numRow == mat.NumRow() {
				return entry.bufferOffset
			}
			errors.Warn(errors.NewStaleCacheWarning(entry.numRow, mat.NumRow()))
		}
	}
	return -1
}
