package cache

import (
	"context"

	"messaging/internal/constants"
	"messaging/internal/logger"
	apperrors "messaging/pkg/errors"
	"messaging/pkg/models"
)

// PropositionCache persists the surface to propositions mapping as a single
// blob. Every write replaces the whole blob.
type PropositionCache struct {
	store  Store
	key    string
	logger logger.Logger
}

func NewPropositionCache(store Store, log logger.Logger) *PropositionCache {
	return &PropositionCache{
		store:  store,
		key:    Key(constants.CacheDirectory, constants.PropositionCacheName),
		logger: log,
	}
}

func (c *PropositionCache) ArePropositionsCached(ctx context.Context) bool {
	return len(c.GetCachedPropositions(ctx)) > 0
}

// GetCachedPropositions returns nil when nothing usable is cached. Read and
// decode failures are logged and treated as an empty cache.
func (c *PropositionCache) GetCachedPropositions(ctx context.Context) map[models.Surface][]models.Proposition {
	props, err := c.read(ctx)
	if err != nil {
		c.logger.WarnwCtx(ctx, "Unable to read cached propositions", "error", err)
		return nil
	}
	if len(props) == 0 {
		return nil
	}
	return props
}

// read returns an error only when the store cannot be read. A missing or
// undecodable blob reads as empty.
func (c *PropositionCache) read(ctx context.Context) (map[models.Surface][]models.Proposition, error) {
	data, err := c.store.Get(ctx, c.key)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	props, skipped, err := models.DecodeSurfacePayloads(data)
	if err != nil {
		c.logger.WarnwCtx(ctx, "Unable to decode cached propositions", "error", err)
		return nil, nil
	}
	for _, e := range skipped {
		c.logger.DebugwCtx(ctx, "Skipping cached proposition", "error", e)
	}
	return props, nil
}

// CachePropositions replaces the cached blob with propositions. An empty map
// removes the blob.
func (c *PropositionCache) CachePropositions(ctx context.Context, propositions map[models.Surface][]models.Proposition) error {
	nonEmpty := 0
	for _, props := range propositions {
		if len(props) > 0 {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return c.ClearCachedData(ctx)
	}

	data, err := models.EncodeSurfacePayloads(propositions)
	if err != nil {
		return apperrors.ErrInternal.WithMessage("failed to encode propositions").WithCause(err)
	}
	if err := c.store.Set(ctx, c.key, data); err != nil {
		return apperrors.ErrServiceUnavailable.WithMessage("failed to write proposition cache").WithCause(err)
	}
	return nil
}

// UpdateSurfaces reads the current blob, drops surfacesToRemove, overlays
// propositions and writes the result back. Nothing is written when the
// current blob cannot be read.
func (c *PropositionCache) UpdateSurfaces(ctx context.Context, propositions map[models.Surface][]models.Proposition, surfacesToRemove []models.Surface) error {
	merged, err := c.read(ctx)
	if err != nil {
		return apperrors.ErrServiceUnavailable.WithMessage("failed to read proposition cache").WithCause(err)
	}
	if merged == nil {
		merged = make(map[models.Surface][]models.Proposition)
	}
	for _, s := range surfacesToRemove {
		delete(merged, s)
	}
	for s, props := range propositions {
		if len(props) == 0 {
			delete(merged, s)
			continue
		}
		merged[s] = props
	}
	return c.CachePropositions(ctx, merged)
}

func (c *PropositionCache) ClearCachedData(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.key); err != nil {
		return apperrors.ErrServiceUnavailable.WithMessage("failed to clear proposition cache").WithCause(err)
	}
	return nil
}
