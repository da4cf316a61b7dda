// Package strategy holds the registry of named, versioned allocation
// strategies. Exactly one strategy is active at a time; activation is an
// atomic swap performed by the Store.
package strategy

import (
	"context"
	"errors"
	"strings"
	"sync"

	"exam-allocation/internal/apperrors"
	"exam-allocation/internal/models"

	"go.uber.org/zap"
)

// Store persists strategies. Lookups return apperrors.ErrRecordNotFound for
// missing rows and CreateStrategy returns apperrors.ErrDuplicateRecord for a
// taken name.
type Store interface {
	ListStrategies(ctx context.Context) ([]*models.Strategy, error)
	GetStrategy(ctx context.Context, id int64) (*models.Strategy, error)
	GetStrategyByName(ctx context.Context, name string) (*models.Strategy, error)
	GetActiveStrategy(ctx context.Context) (*models.Strategy, error)
	CreateStrategy(ctx context.Context, s *models.Strategy) error
	DeleteStrategy(ctx context.Context, id int64) error
	// ActivateStrategy deactivates every strategy and activates id in one
	// transaction. Readers never observe zero or two active strategies.
	ActivateStrategy(ctx context.Context, id int64) error
	// SeedStrategies inserts the strategies whose names are not taken yet.
	SeedStrategies(ctx context.Context, strategies []*models.Strategy) error
}

type Registry struct {
	store  Store
	logger *zap.Logger
	seedMu sync.Mutex
}

func NewRegistry(store Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, logger: logger}
}

// GetActive returns the active strategy. Without one it falls back to the
// default strategy, seeding the built-in catalog first when even that is missing.
func (r *Registry) GetActive(ctx context.Context) (*models.Strategy, error) {
	s, err := r.lookupActive(ctx)
	if err == nil || !errors.Is(err, apperrors.ErrRecordNotFound) {
		return s, err
	}

	r.seedMu.Lock()
	defer r.seedMu.Unlock()
	// Another caller may have seeded while we waited.
	if s, err := r.lookupActive(ctx); !errors.Is(err, apperrors.ErrRecordNotFound) {
		return s, err
	}
	r.logger.Info("seeding built-in strategies")
	if err := r.store.SeedStrategies(ctx, Builtins()); err != nil {
		return nil, apperrors.Persistence("seed strategies", err)
	}
	s, err = r.lookupActive(ctx)
	if errors.Is(err, apperrors.ErrRecordNotFound) {
		return nil, apperrors.For(apperrors.KindStrategyNotFound, "strategy", DefaultStrategyName, "default strategy missing after seeding")
	}
	return s, err
}

func (r *Registry) lookupActive(ctx context.Context) (*models.Strategy, error) {
	s, err := r.store.GetActiveStrategy(ctx)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, apperrors.ErrRecordNotFound) {
		return nil, apperrors.Persistence("get active strategy", err)
	}
	s, err = r.store.GetStrategyByName(ctx, DefaultStrategyName)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, apperrors.ErrRecordNotFound) {
		return nil, err
	}
	return nil, apperrors.Persistence("get default strategy", err)
}

func (r *Registry) GetByID(ctx context.Context, id int64) (*models.Strategy, error) {
	s, err := r.store.GetStrategy(ctx, id)
	if errors.Is(err, apperrors.ErrRecordNotFound) {
		return nil, apperrors.For(apperrors.KindStrategyNotFound, "strategy", id, "")
	}
	if err != nil {
		return nil, apperrors.Persistence("get strategy", err)
	}
	return s, nil
}

func (r *Registry) List(ctx context.Context) ([]*models.Strategy, error) {
	list, err := r.store.ListStrategies(ctx)
	if err != nil {
		return nil, apperrors.Persistence("list strategies", err)
	}
	return list, nil
}

// Activate makes id the only active strategy.
func (r *Registry) Activate(ctx context.Context, id int64) error {
	err := r.store.ActivateStrategy(ctx, id)
	if errors.Is(err, apperrors.ErrRecordNotFound) {
		return apperrors.For(apperrors.KindStrategyNotFound, "strategy", id, "")
	}
	if err != nil {
		return apperrors.Persistence("activate strategy", err)
	}
	r.logger.Info("strategy activated", zap.Int64("strategy_id", id))
	return nil
}

type CreateRequest struct {
	Name        string
	Description string
	Version     string
	Type        models.StrategyType
	Rules       []string
}

// Create registers an inactive strategy. Rule tokens are stored as given;
// tokens the planner does not know are harmless.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*models.Strategy, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.New(apperrors.KindInvalidAllocationInput, "strategy name is required")
	}
	typ := req.Type
	if typ == "" {
		typ = models.StrategyAlphabeticalGrouping
	}
	if !typ.Valid() {
		return nil, apperrors.Newf(apperrors.KindInvalidAllocationInput, "unknown strategy type %q", typ)
	}
	version := req.Version
	if version == "" {
		version = builtinVersion
	}

	if _, err := r.store.GetStrategyByName(ctx, name); err == nil {
		return nil, apperrors.For(apperrors.KindDuplicateStrategyName, "strategy", name, "")
	} else if !errors.Is(err, apperrors.ErrRecordNotFound) {
		return nil, apperrors.Persistence("get strategy by name", err)
	}

	s := &models.Strategy{
		Name:        name,
		Description: req.Description,
		Version:     version,
		Type:        typ,
		Rules:       append([]string{}, req.Rules...),
	}
	err := r.store.CreateStrategy(ctx, s)
	if errors.Is(err, apperrors.ErrDuplicateRecord) {
		return nil, apperrors.For(apperrors.KindDuplicateStrategyName, "strategy", name, "")
	}
	if err != nil {
		return nil, apperrors.Persistence("create strategy", err)
	}
	r.logger.Info("strategy created", zap.Int64("strategy_id", s.ID), zap.String("name", s.Name))
	return s, nil
}

// Delete removes a strategy. The default strategy cannot be deleted.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s.Name == DefaultStrategyName {
		return apperrors.For(apperrors.KindDefaultStrategyProtected, "strategy", s.Name, "the default strategy cannot be deleted")
	}
	err = r.store.DeleteStrategy(ctx, id)
	if errors.Is(err, apperrors.ErrRecordNotFound) {
		return apperrors.For(apperrors.KindStrategyNotFound, "strategy", id, "")
	}
	if err != nil {
		return apperrors.Persistence("delete strategy", err)
	}
	r.logger.Info("strategy deleted", zap.Int64("strategy_id", id), zap.String("name", s.Name))
	return nil
}
