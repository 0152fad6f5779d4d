package threaddata

import (
	"context"
	"inboxlens/internal/cache"
	"inboxlens/internal/ports"
	"inboxlens/internal/types"

	log "github.com/sirupsen/logrus"
)

// Service is the only component that decides fetch-vs-cache, and the single
// place coalesced analysis calls are issued.
type Service struct {
	cache         *cache.Timed
	api           ports.AnalysisAPI
	recordsFilter string
}

// NewService wires the TTL cache and the upstream client together.
// recordsFilter is an optional boolean JMESPath expression applied to the
// full-table record list; "" keeps everything.
func NewService(c *cache.Timed, api ports.AnalysisAPI, recordsFilter string) *Service {
	return &Service{cache: c, api: api, recordsFilter: recordsFilter}
}

// GetData serves already-fresh keys from the cache and issues exactly one
// analysis call for the miss subset. Successful results are written back to
// the cache; failed or unresolved keys are simply absent from the returned
// map -- callers treat a missing key as "no data available". An upstream
// fault is absorbed here: the fresh subset is still returned.
func (s *Service) GetData(ctx context.Context, keys []string) (map[string]types.ThreadData, error) {
	out := make(map[string]types.ThreadData, len(keys))
	var stale []string
	for _, k := range keys {
		if v, ok := s.cache.Get(ctx, k); ok {
			out[k] = v
		} else {
			stale = append(stale, k)
		}
	}
	if len(stale) == 0 {
		return out, nil
	}

	results, err := s.api.AnalyzeBatch(ctx, stale)
	if err != nil {
		log.WithError(err).WithField("ids", len(stale)).Error("batch analysis failed")
		return out, nil
	}
	for _, r := range results {
		if r.Status != types.StatusSuccess || r.Data == nil {
			continue
		}
		s.cache.Set(ctx, r.ID, *r.Data)
		out[r.ID] = *r.Data
	}
	return out, nil
}

// AddLabels merges newly observed labels into the entry for key, preserving
// previously known entities and passthrough fields. Safe to call when no
// entry exists yet; a minimal entry is created.
func (s *Service) AddLabels(ctx context.Context, key string, labels []string) {
	if len(labels) == 0 {
		return
	}
	s.cache.Merge(ctx, key, func(cur types.ThreadData) types.ThreadData {
		cur.Labels = unionLabels(cur.Labels, labels)
		return cur
	})
}

// GetAllRecords is the bulk, uncached fetch-everything path for the
// full-table view. It always goes upstream and degrades to an empty list on
// failure so the rendering layer shows "no data" rather than crashing.
func (s *Service) GetAllRecords(ctx context.Context) []map[string]any {
	records, err := s.api.ListRecords(ctx)
	if err != nil {
		log.WithError(err).Error("failed to list records")
		return []map[string]any{}
	}
	return FilterRecords(s.recordsFilter, records)
}

// unionLabels appends the labels of add not already present in cur,
// preserving first-seen order.
func unionLabels(cur, add []string) []string {
	seen := make(map[string]struct{}, len(cur))
	for _, l := range cur {
		seen[l] = struct{}{}
	}
	for _, l := range add {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		cur = append(cur, l)
	}
	return cur
}
