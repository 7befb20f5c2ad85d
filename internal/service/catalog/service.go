package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mehdidhammou/ai-connect-four/internal/domain"
)

const (
	solversKey      = "catalog:solvers"
	modelsKeyPrefix = "catalog:models:"
)

// Source lists what the solver API offers.
type Source interface {
	Solvers(ctx context.Context) ([]domain.SolverIdentity, error)
	Models(ctx context.Context, provider string) ([]domain.ModelInfo, error)
}

// CacheRepository is satisfied by the Redis wrapper. Get returns ("", nil)
// on a miss.
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// Service lists the opponents a player can pick from.
type Service struct {
	source Source
	cache  CacheRepository // optional, can be nil
	ttl    time.Duration
}

func NewService(source Source, cache CacheRepository, ttl time.Duration) *Service {
	return &Service{
		source: source,
		cache:  cache,
		ttl:    ttl,
	}
}

func (s *Service) Solvers(ctx context.Context) ([]domain.SolverIdentity, error) {
	var solvers []domain.SolverIdentity
	if s.readCache(ctx, solversKey, &solvers) {
		return solvers, nil
	}

	solvers, err := s.source.Solvers(ctx)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, solversKey, solvers)
	return solvers, nil
}

func (s *Service) Models(ctx context.Context, provider string) ([]domain.ModelInfo, error) {
	key := modelsKeyPrefix + provider

	var models []domain.ModelInfo
	if s.readCache(ctx, key, &models) {
		return models, nil
	}

	models, err := s.source.Models(ctx, provider)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, key, models)
	return models, nil
}

// Contains reports whether identity is one of the listed solvers.
func (s *Service) Contains(ctx context.Context, identity domain.SolverIdentity) (bool, error) {
	solvers, err := s.Solvers(ctx)
	if err != nil {
		return false, err
	}
	for _, candidate := range solvers {
		if candidate == identity {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops the cached solver list and the given providers' models.
func (s *Service) Invalidate(ctx context.Context, providers ...string) error {
	if s.cache == nil {
		return nil
	}
	keys := []string{solversKey}
	for _, p := range providers {
		keys = append(keys, modelsKeyPrefix+p)
	}
	return s.cache.Del(ctx, keys...)
}

func (s *Service) readCache(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Str("component", "catalog").Str("key", key).Err(err).Msg("cache read failed")
		return false
	}
	if raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		log.Warn().Str("component", "catalog").Str("key", key).Err(err).Msg("dropping corrupt cache entry")
		return false
	}
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		log.Warn().Str("component", "catalog").Str("key", key).Err(err).Msg("cache write failed")
	}
}
