package roles

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/lostfound/lostfound/internal/rbac"
	"github.com/lostfound/lostfound/internal/shared"
)

// CatalogSource yields the current permission catalog.
type CatalogSource interface {
	Catalog(ctx context.Context) (*rbac.Catalog, error)
}

// Service handles role business logic.
type Service struct {
	repo    RepositoryPort
	catalog CatalogSource
	logger  *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, catalog CatalogSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, catalog: catalog, logger: logger}
}

// ListRoles returns every role grouped by permission category.
func (s *Service) ListRoles(ctx context.Context) ([]RoleView, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, shared.Internal("roles: list", err)
	}
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, shared.Internal("roles: catalog", err)
	}
	views := make([]RoleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, Project(catalog, role))
	}
	return views, nil
}

// Project builds the RoleView of role. A child permission is granted when the
// role holds it directly or holds its category.
func Project(catalog *rbac.Catalog, role Role) RoleView {
	expanded := catalog.ExpandOne(role.Permissions)
	direct := make(map[string]struct{}, len(role.Permissions))
	for _, p := range role.Permissions {
		direct[rbac.Normalize(p)] = struct{}{}
	}
	view := RoleView{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Protected:   role.IsProtected(),
		Permissions: role.Permissions,
		Categories:  []CategoryView{},
	}
	for _, category := range catalog.Categories() {
		_, granted := direct[category]
		cv := CategoryView{Name: category, Granted: granted}
		for _, child := range catalog.Children(category) {
			_, ok := expanded[child]
			cv.Permissions = append(cv.Permissions, PermissionFlag{Name: child, Granted: ok})
		}
		view.Categories = append(view.Categories, cv)
	}
	return view
}

// GetRole returns one role projection.
func (s *Service) GetRole(ctx context.Context, id int64) (RoleView, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return RoleView{}, s.mapErr("roles: get", id, err)
	}
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return RoleView{}, shared.Internal("roles: catalog", err)
	}
	return Project(catalog, role), nil
}

// CreateRole validates permissions against the catalog and stores the role.
func (s *Service) CreateRole(ctx context.Context, actor shared.Principal, req CreateRoleRequest) (Role, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Role{}, shared.Validation("role name required")
	}
	if IsReservedName(name) {
		return Role{}, shared.Conflict(shared.ReasonDuplicateRole, "role name %q is reserved", name)
	}
	perms, err := s.checkPermissions(ctx, req.Permissions)
	if err != nil {
		return Role{}, err
	}
	var created Role
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertRole(ctx, Role{Name: name, Description: strings.TrimSpace(req.Description), Permissions: perms})
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditRoleCreate,
			Entity:   "role",
			EntityID: shared.EntityID(created.ID),
			Meta:     map[string]any{"name": created.Name, "permissions": created.Permissions},
		})
	})
	if err != nil {
		return Role{}, s.mapErr("roles: create", 0, err)
	}
	s.logger.Info("role created", slog.Int64("role_id", created.ID), slog.Int64("actor_id", actor.ID))
	return created, nil
}

// UpdateRole applies patch to an unprotected role.
func (s *Service) UpdateRole(ctx context.Context, actor shared.Principal, id int64, patch UpdateRoleRequest) (Role, error) {
	var perms []string
	if patch.Permissions != nil {
		var err error
		if perms, err = s.checkPermissions(ctx, *patch.Permissions); err != nil {
			return Role{}, err
		}
	}
	var updated Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.LockRole(ctx, id)
		if err != nil {
			return err
		}
		if role.IsProtected() {
			return shared.Forbidden(shared.ReasonProtectedRole, "role %q is protected", role.Name)
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return shared.Validation("role name required")
			}
			if IsReservedName(name) {
				return shared.Conflict(shared.ReasonDuplicateRole, "role name %q is reserved", name)
			}
			role.Name = name
		}
		if patch.Description != nil {
			role.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Permissions != nil {
			role.Permissions = perms
		}
		if updated, err = tx.UpdateRole(ctx, role); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditRoleUpdate,
			Entity:   "role",
			EntityID: shared.EntityID(id),
			Meta:     map[string]any{"name": updated.Name, "permissions": updated.Permissions},
		})
	})
	if err != nil {
		return Role{}, s.mapErr("roles: update", id, err)
	}
	return updated, nil
}

// DeleteRole removes an unprotected role no user references.
func (s *Service) DeleteRole(ctx context.Context, actor shared.Principal, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.LockRole(ctx, id)
		if err != nil {
			return err
		}
		if role.IsProtected() {
			return shared.Forbidden(shared.ReasonProtectedRole, "role %q is protected", role.Name)
		}
		users, err := tx.CountUsers(ctx, id)
		if err != nil {
			return err
		}
		if users > 0 {
			return shared.Conflict(shared.ReasonRoleInUse, "role %q is assigned to %d users", role.Name, users)
		}
		if err := tx.DeleteRole(ctx, id); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditRoleDelete,
			Entity:   "role",
			EntityID: shared.EntityID(id),
			Meta:     map[string]any{"name": role.Name},
		})
	})
	if err != nil {
		return s.mapErr("roles: delete", id, err)
	}
	s.logger.Info("role deleted", slog.Int64("role_id", id), slog.Int64("actor_id", actor.ID))
	return nil
}

// ResolveByName returns the role id for name.
func (s *Service) ResolveByName(ctx context.Context, name string) (int64, error) {
	role, err := s.repo.GetRoleByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, ErrNotFound) {
		return 0, shared.NotFound(shared.ReasonRole, "role %q not found", name)
	}
	if err != nil {
		return 0, shared.Internal("roles: by name", err)
	}
	return role.ID, nil
}

// Exists reports whether a role with id exists.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	if _, err := s.repo.GetRole(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, shared.Internal("roles: exists", err)
	}
	return true, nil
}

func (s *Service) checkPermissions(ctx context.Context, requested []string) ([]string, error) {
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, shared.Internal("roles: catalog", err)
	}
	out := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, p := range requested {
		name := rbac.Normalize(p)
		if _, dup := seen[name]; dup {
			continue
		}
		if !catalog.Has(name) {
			return nil, shared.NotFound(shared.ReasonPermission, "permission %q not found", name)
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

func (s *Service) mapErr(op string, id int64, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return shared.NotFound(shared.ReasonRole, "role %d not found", id)
	case shared.IsDomain(err):
		return err
	default:
		return shared.Internal(op, err)
	}
}
