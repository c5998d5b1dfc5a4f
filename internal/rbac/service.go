package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lostfound/lostfound/internal/shared"
)

// DecisionObserver records authorization outcomes.
type DecisionObserver interface {
	ObserveAuthz(allowed bool)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	RefreshEvery time.Duration
	Notifier     Notifier
	Observer     DecisionObserver
	Logger       *slog.Logger
}

// Service owns the catalog snapshot and answers authorization questions.
type Service struct {
	repo         RepositoryPort
	resolver     *Resolver
	notifier     Notifier
	observer     DecisionObserver
	logger       *slog.Logger
	refreshEvery time.Duration
	loadedAt     atomic.Int64
	group        singleflight.Group
	now          func() time.Time
}

// NewService constructs a Service. The catalog is loaded lazily.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	every := cfg.RefreshEvery
	if every <= 0 {
		every = time.Minute
	}
	return &Service{
		repo:         repo,
		resolver:     NewResolver(nil),
		notifier:     cfg.Notifier,
		observer:     cfg.Observer,
		logger:       logger,
		refreshEvery: every,
		now:          time.Now,
	}
}

// Catalog returns the current snapshot, reloading it when stale. A failed
// reload keeps serving the last committed snapshot.
func (s *Service) Catalog(ctx context.Context) (*Catalog, error) {
	current := s.resolver.Catalog()
	if current != nil && s.now().Sub(time.Unix(0, s.loadedAt.Load())) < s.refreshEvery {
		return current, nil
	}
	fresh, err := s.Refresh(ctx)
	if err != nil {
		if current != nil {
			s.logger.Warn("rbac catalog refresh", slog.Any("error", err), slog.Int64("version", current.Version()))
			return current, nil
		}
		return nil, err
	}
	return fresh, nil
}

// Refresh reloads the catalog from the store. Concurrent callers share one load.
func (s *Service) Refresh(ctx context.Context) (*Catalog, error) {
	ch := s.group.DoChan("catalog", func() (interface{}, error) {
		snap, err := s.repo.LoadSnapshot(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("rbac: load catalog: %w", err)
		}
		c, err := NewCatalog(snap.Version, snap.Permissions, snap.Implications)
		if err != nil {
			return nil, err
		}
		s.resolver.Swap(c)
		s.loadedAt.Store(s.now().UnixNano())
		return s.resolver.Catalog(), nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Catalog), nil
	}
}

// Watch refreshes the snapshot whenever another instance announces a newer
// revision. It blocks until ctx is cancelled.
func (s *Service) Watch(ctx context.Context) error {
	if s.notifier == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	versions, closeFn := s.notifier.Subscribe(ctx)
	defer func() { _ = closeFn() }()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-versions:
			if !ok {
				return nil
			}
			if v <= s.resolver.Catalog().Version() {
				continue
			}
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.Warn("rbac catalog watch refresh", slog.Any("error", err), slog.Int64("version", v))
			}
		}
	}
}

// EffectivePermissions returns the permissions explicitly granted to the principal's role.
func (s *Service) EffectivePermissions(ctx context.Context, p shared.Principal) ([]string, error) {
	if p.RoleID == nil {
		return nil, nil
	}
	perms, err := s.repo.RolePermissions(ctx, *p.RoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, shared.Internal("rbac: role permissions", err)
	}
	return perms, nil
}

// Allowed reports whether the principal satisfies any of required.
func (s *Service) Allowed(ctx context.Context, p shared.Principal, required ...string) (bool, error) {
	if !p.IsActive {
		s.observe(false)
		return false, nil
	}
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return false, shared.Internal("rbac: catalog", err)
	}
	granted, err := s.EffectivePermissions(ctx, p)
	if err != nil {
		return false, err
	}
	allowed := Resolve(catalog, granted, required)
	s.observe(allowed)
	return allowed, nil
}

// Authorize returns nil when allowed and a Forbidden error otherwise.
func (s *Service) Authorize(ctx context.Context, p shared.Principal, required ...string) error {
	allowed, err := s.Allowed(ctx, p, required...)
	if err != nil {
		return err
	}
	if allowed {
		return nil
	}
	if !p.IsActive {
		return shared.Forbidden(shared.ReasonInactive, "account is inactive")
	}
	return shared.Forbidden(shared.ReasonRoleDenied, "missing permission %v", required)
}

func (s *Service) observe(allowed bool) {
	if s.observer != nil {
		s.observer.ObserveAuthz(allowed)
	}
}

// ListPermissions returns all permissions ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, shared.Internal("rbac: list permissions", err)
	}
	return perms, nil
}

// CatalogView is the read model served by GET /permissions.
type CatalogView struct {
	Version      int64         `json:"version"`
	Permissions  []Permission  `json:"permissions"`
	Implications []Implication `json:"implications"`
}

// DescribeCatalog lists permissions and edges of the current snapshot.
func (s *Service) DescribeCatalog(ctx context.Context) (CatalogView, error) {
	c, err := s.Catalog(ctx)
	if err != nil {
		return CatalogView{}, shared.Internal("rbac: catalog", err)
	}
	perms, err := s.ListPermissions(ctx)
	if err != nil {
		return CatalogView{}, err
	}
	view := CatalogView{Version: c.Version(), Permissions: perms, Implications: []Implication{}}
	for _, parent := range c.Categories() {
		for _, child := range c.Children(parent) {
			view.Implications = append(view.Implications, Implication{Parent: parent, Child: child})
		}
	}
	return view, nil
}

// CreatePermission registers a new permission name.
func (s *Service) CreatePermission(ctx context.Context, actor shared.Principal, req CreatePermissionRequest) (Permission, error) {
	name := Normalize(req.Name)
	if name == "" {
		return Permission{}, shared.Validation("permission name required")
	}
	var created Permission
	err := s.mutate(ctx, func(ctx context.Context, tx TxRepository, _ Snapshot) error {
		var err error
		created, err = tx.InsertPermission(ctx, Permission{Name: name, Description: req.Description})
		return err
	})
	return created, err
}

// AddImplication adds parent -> child, refusing edges that would form a cycle.
func (s *Service) AddImplication(ctx context.Context, actor shared.Principal, req ImplicationRequest) error {
	edge := Implication{Parent: Normalize(req.Parent), Child: Normalize(req.Child)}
	return s.mutate(ctx, func(ctx context.Context, tx TxRepository, snap Snapshot) error {
		c, err := NewCatalog(snap.Version, snap.Permissions, snap.Implications)
		if err != nil {
			return shared.Internal("rbac: stored catalog invalid", err)
		}
		if !c.Has(edge.Parent) {
			return shared.NotFound(shared.ReasonPermission, "permission %q not found", edge.Parent)
		}
		if !c.Has(edge.Child) {
			return shared.NotFound(shared.ReasonPermission, "permission %q not found", edge.Child)
		}
		if c.HasEdge(edge.Parent, edge.Child) {
			return shared.Conflict(shared.ReasonImplication, "implication %s -> %s already exists", edge.Parent, edge.Child)
		}
		if c.WouldCycle(edge.Parent, edge.Child) {
			return shared.Conflict(shared.ReasonCycle, "implication %s -> %s would create a cycle", edge.Parent, edge.Child)
		}
		if err := tx.InsertImplication(ctx, edge); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditImplicationAdd,
			Entity:   "permission_implication",
			EntityID: edge.Parent + ">" + edge.Child,
		})
	})
}

// RemoveImplication deletes parent -> child.
func (s *Service) RemoveImplication(ctx context.Context, actor shared.Principal, req ImplicationRequest) error {
	edge := Implication{Parent: Normalize(req.Parent), Child: Normalize(req.Child)}
	return s.mutate(ctx, func(ctx context.Context, tx TxRepository, _ Snapshot) error {
		removed, err := tx.DeleteImplication(ctx, edge)
		if err != nil {
			return err
		}
		if !removed {
			return shared.NotFound(shared.ReasonImplication, "implication %s -> %s not found", edge.Parent, edge.Child)
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditImplicationRemove,
			Entity:   "permission_implication",
			EntityID: edge.Parent + ">" + edge.Child,
		})
	})
}

// mutate serialises catalog changes on the revision row, bumps the revision
// and propagates the new snapshot after commit.
func (s *Service) mutate(ctx context.Context, fn func(context.Context, TxRepository, Snapshot) error) error {
	var version int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockRevision(ctx); err != nil {
			return err
		}
		snap, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, snap); err != nil {
			return err
		}
		version, err = tx.BumpRevision(ctx)
		return err
	})
	if err != nil {
		if shared.IsDomain(err) {
			return err
		}
		return shared.Internal("rbac: catalog change", err)
	}
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("rbac refresh after change", slog.Any("error", err))
	}
	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, version); err != nil {
			s.logger.Warn("rbac publish revision", slog.Any("error", err), slog.Int64("version", version))
		}
	}
	return nil
}
