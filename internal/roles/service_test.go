package roles

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lostfound/lostfound/internal/rbac"
	"github.com/lostfound/lostfound/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	roles  map[int64]Role
	users  map[int64]int64
	audits []shared.AuditLog
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{roles: make(map[int64]Role), users: make(map[int64]int64)}
}

func (r *memoryRepo) seed(role Role) Role {
	r.nextID++
	role.ID = r.nextID
	role.CreatedAt = time.Now()
	r.roles[role.ID] = role
	return role
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListRoles(ctx context.Context) ([]Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Role, 0, len(r.roles))
	for id := int64(1); id <= r.nextID; id++ {
		if role, ok := r.roles[id]; ok {
			out = append(out, role)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (r *memoryRepo) GetRoleByName(ctx context.Context, name string) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if strings.EqualFold(role.Name, name) {
			return role, nil
		}
	}
	return Role{}, ErrNotFound
}

func (tx *memoryTx) LockRole(ctx context.Context, id int64) (Role, error) {
	role, ok := tx.repo.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (tx *memoryTx) nameTaken(name string, except int64) bool {
	for id, role := range tx.repo.roles {
		if id != except && strings.EqualFold(role.Name, name) {
			return true
		}
	}
	return false
}

func (tx *memoryTx) InsertRole(ctx context.Context, role Role) (Role, error) {
	if tx.nameTaken(role.Name, 0) {
		return Role{}, shared.Conflict(shared.ReasonDuplicateRole, "role %q already exists", role.Name)
	}
	return tx.repo.seed(role), nil
}

func (tx *memoryTx) UpdateRole(ctx context.Context, role Role) (Role, error) {
	if tx.nameTaken(role.Name, role.ID) {
		return Role{}, shared.Conflict(shared.ReasonDuplicateRole, "role %q already exists", role.Name)
	}
	role.UpdatedAt = time.Now()
	tx.repo.roles[role.ID] = role
	return role, nil
}

func (tx *memoryTx) CountUsers(ctx context.Context, roleID int64) (int64, error) {
	var n int64
	for _, rid := range tx.repo.users {
		if rid == roleID {
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) DeleteRole(ctx context.Context, id int64) error {
	delete(tx.repo.roles, id)
	return nil
}

func (tx *memoryTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	tx.repo.audits = append(tx.repo.audits, log)
	return nil
}

type staticCatalog struct {
	catalog *rbac.Catalog
}

func (s staticCatalog) Catalog(context.Context) (*rbac.Catalog, error) {
	return s.catalog, nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	var perms []rbac.Permission
	for _, n := range []string{"admin", "item_assign", "interest_assign", "item_reject", "interest_view", "item_create"} {
		perms = append(perms, rbac.Permission{Name: n})
	}
	catalog, err := rbac.NewCatalog(1, perms, []rbac.Implication{
		{Parent: "admin", Child: "item_assign"},
		{Parent: "admin", Child: "item_reject"},
		{Parent: "item_assign", Child: "interest_assign"},
	})
	require.NoError(t, err)
	repo := newMemoryRepo()
	return NewService(repo, staticCatalog{catalog: catalog}, nil), repo
}

var actor = shared.Principal{ID: 1, IsActive: true}

func TestCreateRole(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, actor, CreateRoleRequest{Name: " moderator ", Permissions: []string{"Item_Assign", "item_assign"}})
	require.NoError(t, err)
	require.Equal(t, "moderator", role.Name)
	require.Equal(t, []string{"item_assign"}, role.Permissions)
	require.Len(t, repo.audits, 1)

	_, err = svc.CreateRole(ctx, actor, CreateRoleRequest{Name: "moderator"})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreateRole(ctx, actor, CreateRoleRequest{Name: "Admin"})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreateRole(ctx, actor, CreateRoleRequest{Name: "ghosts", Permissions: []string{"haunt"}})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, shared.ReasonPermission, shared.ReasonOf(err))

	_, err = svc.CreateRole(ctx, actor, CreateRoleRequest{Name: "   "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestListRolesExpandsOneLevel(t *testing.T) {
	svc, repo := newTestService(t)
	repo.seed(Role{Name: "admin", Permissions: []string{"admin"}})
	repo.seed(Role{Name: "moderator", Permissions: []string{"item_assign"}})

	views, err := svc.ListRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	admin := views[0]
	require.True(t, admin.Protected)
	require.Equal(t, "admin", admin.Categories[0].Name)
	require.True(t, admin.Categories[0].Granted)
	require.Equal(t, []PermissionFlag{{Name: "item_assign", Granted: true}, {Name: "item_reject", Granted: true}}, admin.Categories[0].Permissions)
	require.Equal(t, []PermissionFlag{{Name: "interest_assign", Granted: false}}, admin.Categories[1].Permissions,
		"projection expands one implication level only")

	moderator := views[1]
	require.False(t, moderator.Protected)
	require.Equal(t, []PermissionFlag{{Name: "item_assign", Granted: true}, {Name: "item_reject", Granted: false}}, moderator.Categories[0].Permissions)
	require.Equal(t, []PermissionFlag{{Name: "interest_assign", Granted: true}}, moderator.Categories[1].Permissions)
}

func TestUpdateRole(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	admin := repo.seed(Role{Name: "admin", Permissions: []string{"admin"}})
	locked := repo.seed(Role{Name: "auditor", Protected: true})
	mod := repo.seed(Role{Name: "moderator", Permissions: []string{"item_assign"}})
	repo.seed(Role{Name: "helper"})

	name := "steward"
	perms := []string{"item_reject"}
	updated, err := svc.UpdateRole(ctx, actor, mod.ID, UpdateRoleRequest{Name: &name, Permissions: &perms})
	require.NoError(t, err)
	require.Equal(t, "steward", updated.Name)
	require.Equal(t, []string{"item_reject"}, updated.Permissions)

	_, err = svc.UpdateRole(ctx, actor, admin.ID, UpdateRoleRequest{Name: &name})
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Equal(t, shared.ReasonProtectedRole, shared.ReasonOf(err))

	_, err = svc.UpdateRole(ctx, actor, locked.ID, UpdateRoleRequest{})
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.UpdateRole(ctx, actor, 999, UpdateRoleRequest{})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, shared.ReasonRole, shared.ReasonOf(err))

	taken := "helper"
	_, err = svc.UpdateRole(ctx, actor, mod.ID, UpdateRoleRequest{Name: &taken})
	require.ErrorIs(t, err, shared.ErrConflict)

	reserved := "user"
	_, err = svc.UpdateRole(ctx, actor, mod.ID, UpdateRoleRequest{Name: &reserved})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestDeleteRoleGuards(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	userRole := repo.seed(Role{Name: "user"})
	inUse := repo.seed(Role{Name: "moderator"})
	spare := repo.seed(Role{Name: "spare"})
	repo.users[42] = inUse.ID

	err := svc.DeleteRole(ctx, actor, userRole.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	err = svc.DeleteRole(ctx, actor, inUse.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, shared.ReasonRoleInUse, shared.ReasonOf(err))
	_, stillThere := repo.roles[inUse.ID]
	require.True(t, stillThere)

	require.NoError(t, svc.DeleteRole(ctx, actor, spare.ID))
	_, err = svc.GetRole(ctx, spare.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	err = svc.DeleteRole(ctx, actor, spare.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResolveByName(t *testing.T) {
	svc, repo := newTestService(t)
	user := repo.seed(Role{Name: "user"})

	id, err := svc.ResolveByName(context.Background(), "USER")
	require.NoError(t, err)
	require.Equal(t, user.ID, id)

	_, err = svc.ResolveByName(context.Background(), "nobody")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestIsReservedName(t *testing.T) {
	for _, name := range []string{"admin", "Admin", " USER ", "uSeR"} {
		require.True(t, IsReservedName(name), name)
	}
	for _, name := range []string{"moderator", "admins", ""} {
		require.False(t, IsReservedName(name), name)
	}
	require.True(t, Role{Name: "moderator", Protected: true}.IsProtected())
	require.False(t, Role{Name: "moderator"}.IsProtected())
}
