// Package search runs one-off job searches outside any saved definition.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/0xPuncker/job-watcher/internal/validation"
	"github.com/0xPuncker/job-watcher/pkg/types"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const DefaultTTL = 5 * time.Minute

type API interface {
	Search(ctx context.Context, query types.AdhocQuery) ([]string, error)
}

// Searcher validates the query, calls the backend and caches identical queries.
type Searcher struct {
	api    API
	logger *logrus.Logger
	cache  *cache.Cache
}

func NewSearcher(api API, logger *logrus.Logger, ttl time.Duration) *Searcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Searcher{
		api:    api,
		logger: logger,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func (s *Searcher) Search(ctx context.Context, query types.AdhocQuery) ([]string, error) {
	if query.Count == 0 {
		query.Count = types.DefaultCount
	}
	if err := validation.Query(query); err != nil {
		return nil, err
	}
	query.Text = strings.TrimSpace(query.Text)

	key := cacheKey(query)
	if cached, found := s.cache.Get(key); found {
		s.logger.WithField("query", query.Text).Debug("Search served from cache")
		return cached.([]string), nil
	}

	urls, err := s.api.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, urls, cache.DefaultExpiration)
	s.logger.WithFields(logrus.Fields{
		"query":   query.Text,
		"level":   query.Level,
		"results": len(urls),
	}).Info("Search completed")
	return urls, nil
}

func cacheKey(q types.AdhocQuery) string {
	return fmt.Sprintf("%s|%s|%d", strings.ToLower(q.Text), q.Level, q.Count)
}
