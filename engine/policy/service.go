package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	cacheSize = 64
	cacheTTL  = 30 * time.Second
)

// Service exposes typed reads over the settings store. The settings
// table is read-often write-rare, so values are cached with a short TTL
// and invalidated explicitly on the write path.
type Service struct {
	repo  Repository
	cache *lru.LRU[string, json.RawMessage]
}

// NewService creates a policy lookup service.
func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		cache: lru.NewLRU[string, json.RawMessage](cacheSize, nil, cacheTTL),
	}
}

func cacheKey(listName, label string) string {
	return listName + "/" + label
}

func (s *Service) itemValue(ctx context.Context, listName, label string) (json.RawMessage, error) {
	key := cacheKey(listName, label)
	if value, ok := s.cache.Get(key); ok {
		return value, nil
	}
	value, err := s.repo.GetItemValue(ctx, listName, label)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, value)
	return value, nil
}

// DefaultBreakMinutes returns the configured default break, or nil when
// the setting is absent or null.
func (s *Service) DefaultBreakMinutes(ctx context.Context) (*int, error) {
	value, err := s.itemValue(ctx, ListTimesheet, ItemDefaultBreakMinutes)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading default break minutes: %w", err)
	}
	if len(value) == 0 || string(value) == "null" {
		return nil, nil
	}
	var minutes int
	if err := json.Unmarshal(value, &minutes); err != nil {
		return nil, fmt.Errorf("parsing default break minutes: %w", err)
	}
	return &minutes, nil
}

// BreakEligibleEmployees returns the set of worker ids whose long
// shifts auto-deduct the default break.
func (s *Service) BreakEligibleEmployees(ctx context.Context) (map[core.ID]struct{}, error) {
	eligible := make(map[core.ID]struct{})
	value, err := s.itemValue(ctx, ListTimesheet, ItemBreakEligibleWorkers)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return eligible, nil
		}
		return nil, fmt.Errorf("reading break eligibility set: %w", err)
	}
	if len(value) == 0 || string(value) == "null" {
		return eligible, nil
	}
	var ids []string
	if err := json.Unmarshal(value, &ids); err != nil {
		return nil, fmt.Errorf("parsing break eligibility set: %w", err)
	}
	for _, id := range ids {
		eligible[core.ID(id)] = struct{}{}
	}
	return eligible, nil
}

// UpsertItem writes a settings value and invalidates the cached copy.
func (s *Service) UpsertItem(ctx context.Context, listName, label string, value json.RawMessage) error {
	if err := s.repo.UpsertItem(ctx, listName, label, value); err != nil {
		return err
	}
	s.cache.Remove(cacheKey(listName, label))
	return nil
}

// Invalidate drops every cached settings value.
func (s *Service) Invalidate() {
	s.cache.Purge()
}
