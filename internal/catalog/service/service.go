package service

import (
	"context"
	"errors"
	"log/slog"

	"corretaje/internal/catalog/models"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/requestcontext"
)

type Store[E models.Entry[E]] interface {
	Create(ctx context.Context, e E) error
	Update(ctx context.Context, e E) error
	FindByID(ctx context.Context, id int64) (E, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, skip, limit int) ([]E, error)
	FindDefault(ctx context.Context) (E, error)
}

// Cache holds list pages per kind.
type Cache interface {
	Load(ctx context.Context, kind string, skip, limit int, dst any) (key string, hit bool)
	Store(ctx context.Context, key string, v any)
	Invalidate(ctx context.Context, kind string)
}

// Check validates a row against other data before it is written.
type Check[E any] func(ctx context.Context, e E) error

// Service manages one catalog kind.
type Service[E models.Entry[E]] struct {
	kind   models.Kind
	store  Store[E]
	cache  Cache
	checks []Check[E]
	logger *slog.Logger
}

type Option[E models.Entry[E]] func(*Service[E])

func WithLogger[E models.Entry[E]](logger *slog.Logger) Option[E] {
	return func(s *Service[E]) {
		s.logger = logger
	}
}

func WithCache[E models.Entry[E]](c Cache) Option[E] {
	return func(s *Service[E]) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithCheck adds a pre-write validation.
func WithCheck[E models.Entry[E]](check Check[E]) Option[E] {
	return func(s *Service[E]) {
		s.checks = append(s.checks, check)
	}
}

func New[E models.Entry[E]](kind models.Kind, store Store[E], opts ...Option[E]) (*Service[E], error) {
	if store == nil {
		return nil, errors.New("catalog store is required")
	}
	s := &Service[E]{kind: kind, store: store, cache: noCache{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service[E]) Kind() models.Kind {
	return s.kind
}

func (s *Service[E]) Create(ctx context.Context, e E) (E, error) {
	var zero E
	if err := s.validate(ctx, e); err != nil {
		return zero, err
	}
	e.Stamp(requestcontext.Now(ctx))
	if err := s.store.Create(ctx, e); err != nil {
		return zero, s.translate(err, "failed to create catalog entry")
	}
	s.cache.Invalidate(ctx, string(s.kind))
	s.logAudit(ctx, "catalog_created", "id", e.Key())
	return e, nil
}

func (s *Service[E]) Get(ctx context.Context, id int64) (E, error) {
	e, err := s.store.FindByID(ctx, id)
	if err != nil {
		var zero E
		return zero, s.translate(err, "failed to load catalog entry")
	}
	return e, nil
}

func (s *Service[E]) Exists(ctx context.Context, id int64) (bool, error) {
	return s.store.Exists(ctx, id)
}

// List returns a page ordered by id, served from the cache when possible.
func (s *Service[E]) List(ctx context.Context, skip, limit int) ([]E, error) {
	var cached []E
	key, hit := s.cache.Load(ctx, string(s.kind), skip, limit, &cached)
	if hit {
		return cached, nil
	}
	out, err := s.store.List(ctx, skip, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list catalog")
	}
	s.cache.Store(ctx, key, out)
	return out, nil
}

// Default returns the canonical default row: the lowest-id active row
// flagged as default. Other flagged rows are left alone.
func (s *Service[E]) Default(ctx context.Context) (E, error) {
	e, err := s.store.FindDefault(ctx)
	if err != nil {
		var zero E
		if errors.Is(err, sentinel.ErrNotFound) {
			return zero, dErrors.New(dErrors.CodeNotFound, "no default "+string(s.kind)+" entry")
		}
		return zero, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load default entry")
	}
	return e, nil
}

// Update loads the row, applies patch and re-checks every invariant.
func (s *Service[E]) Update(ctx context.Context, id int64, patch models.Patch[E]) (E, error) {
	var zero E
	e, err := s.store.FindByID(ctx, id)
	if err != nil {
		return zero, s.translate(err, "failed to load catalog entry")
	}
	patch.Apply(e)
	if err := s.validate(ctx, e); err != nil {
		return zero, err
	}
	e.Stamp(requestcontext.Now(ctx))
	if err := s.store.Update(ctx, e); err != nil {
		return zero, s.translate(err, "failed to update catalog entry")
	}
	s.cache.Invalidate(ctx, string(s.kind))
	s.logAudit(ctx, "catalog_updated", "id", id)
	return e, nil
}

// Deactivate soft-deletes a row. Deactivating an inactive row is a no-op.
func (s *Service[E]) Deactivate(ctx context.Context, id int64) error {
	e, err := s.store.FindByID(ctx, id)
	if err != nil {
		return s.translate(err, "failed to load catalog entry")
	}
	if !e.Active() {
		return nil
	}
	e.Deactivate()
	e.Stamp(requestcontext.Now(ctx))
	if err := s.store.Update(ctx, e); err != nil {
		return s.translate(err, "failed to deactivate catalog entry")
	}
	s.cache.Invalidate(ctx, string(s.kind))
	s.logAudit(ctx, "catalog_deactivated", "id", id)
	return nil
}

func (s *Service[E]) validate(ctx context.Context, e E) error {
	if err := e.Validate(); err != nil {
		return err
	}
	for _, check := range s.checks {
		if err := check(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service[E]) translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, string(s.kind)+" entry not found")
	case errors.Is(err, sentinel.ErrConflict):
		field := sentinel.FieldOf(err)
		return dErrors.New(dErrors.CodeConflict, "an entry with this "+field+" already exists").WithField(field)
	case errors.Is(err, sentinel.ErrInvalidReference):
		field := sentinel.FieldOf(err)
		return dErrors.New(dErrors.CodeValidation, field+" references a missing record").WithField(field)
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeValidation, "entry violates a data constraint").WithField(sentinel.FieldOf(err))
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service[E]) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if actor := requestcontext.OperatorID(ctx); actor != 0 {
		attributes = append(attributes, "actor_id", actor)
	}
	args := append(attributes, "kind", string(s.kind), "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}

type noCache struct{}

func (noCache) Load(context.Context, string, int, int, any) (string, bool) { return "", false }
func (noCache) Store(context.Context, string, any)                        {}
func (noCache) Invalidate(context.Context, string)                        {}

// InsurerExists returns a check rejecting insurance types whose
// aseguradora_id does not resolve.
func InsurerExists(insurers interface {
	Exists(ctx context.Context, id int64) (bool, error)
}) Check[*models.InsuranceType] {
	return func(ctx context.Context, t *models.InsuranceType) error {
		if t.InsurerID == nil {
			return nil
		}
		ok, err := insurers.Exists(ctx, *t.InsurerID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check insurer")
		}
		if !ok {
			return dErrors.New(dErrors.CodeValidation, "aseguradora_id references a missing insurer").WithField("aseguradora_id")
		}
		return nil
	}
}
