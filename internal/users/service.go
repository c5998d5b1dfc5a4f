package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/lostfound/lostfound/internal/shared"
)

// RoleLookup resolves role names.
type RoleLookup interface {
	ResolveByName(ctx context.Context, name string) (int64, error)
}

// Authorizer answers permission questions.
type Authorizer interface {
	Allowed(ctx context.Context, p shared.Principal, required ...string) (bool, error)
}

// ViewGate reports whether viewer holds an approved profile-view request for owner.
type ViewGate interface {
	CanView(ctx context.Context, ownerID, viewerID int64) (bool, error)
}

// ServiceConfig carries optional collaborators.
type ServiceConfig struct {
	DefaultRole string
	BcryptCost  int
}

// Service handles user business logic.
type Service struct {
	repo        RepositoryPort
	roles       RoleLookup
	authz       Authorizer
	gate        ViewGate
	logger      *slog.Logger
	defaultRole string
	bcryptCost  int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roles RoleLookup, authz Authorizer, gate ViewGate, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		repo:        repo,
		roles:       roles,
		authz:       authz,
		gate:        gate,
		logger:      logger,
		defaultRole: cfg.DefaultRole,
		bcryptCost:  cost,
	}
}

// Principal loads the authorization identity of a user.
func (s *Service) Principal(ctx context.Context, id int64) (shared.Principal, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return shared.Principal{}, s.mapErr("users: principal", id, err)
	}
	return shared.Principal{ID: u.ID, RoleID: u.RoleID, IsActive: u.IsActive}, nil
}

// Exists reports whether a user with id exists.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, shared.Internal("users: exists", err)
	}
	return true, nil
}

// LookupContact returns the address notifications for id are sent to.
func (s *Service) LookupContact(ctx context.Context, id int64) (string, string, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return "", "", s.mapErr("users: contact", id, err)
	}
	return u.Email, u.Name, nil
}

// ListUsers returns one page of users.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	users, total, err := s.repo.ListUsers(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, shared.Internal("users: list", err)
	}
	return users, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Register creates an active account bound to the default role.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" || len(req.Password) < 8 {
		return User{}, shared.Validation("email, name and a password of at least 8 characters are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return User{}, shared.Internal("users: hash password", err)
	}
	user := User{Email: email, Name: name, PasswordHash: string(hash), IsActive: true}
	if s.defaultRole != "" && s.roles != nil {
		roleID, err := s.roles.ResolveByName(ctx, s.defaultRole)
		switch {
		case err == nil:
			user.RoleID = &roleID
		case errors.Is(err, shared.ErrNotFound):
			s.logger.Warn("default role missing", slog.String("role", s.defaultRole))
		default:
			return User{}, err
		}
	}
	created, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return User{}, s.mapErr("users: register", 0, err)
	}
	s.logger.Info("user registered", slog.Int64("user_id", created.ID))
	return created, nil
}

// AssignRole binds a user to a role.
func (s *Service) AssignRole(ctx context.Context, actor shared.Principal, userID, roleID int64) error {
	if err := s.repo.SetRole(ctx, userID, roleID); err != nil {
		return s.mapErr("users: assign role", userID, err)
	}
	s.logger.Info("user role assigned", slog.Int64("user_id", userID), slog.Int64("role_id", roleID), slog.Int64("actor_id", actor.ID))
	return nil
}

// Profile returns what viewer may see of user id. The full profile is shown
// to the user themself, to holders of user_view and to requesters with an
// approved profile-view request.
func (s *Service) Profile(ctx context.Context, viewer shared.Principal, id int64) (Profile, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return Profile{}, s.mapErr("users: profile", id, err)
	}
	full, err := s.canSeeFull(ctx, viewer, id)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{ID: u.ID, Name: u.Name, CreatedAt: u.CreatedAt}
	if full {
		active := u.IsActive
		p.Full = true
		p.Email = u.Email
		p.RoleID = u.RoleID
		p.IsActive = &active
	}
	return p, nil
}

func (s *Service) canSeeFull(ctx context.Context, viewer shared.Principal, ownerID int64) (bool, error) {
	if viewer.ID == ownerID {
		return true, nil
	}
	if s.authz != nil {
		ok, err := s.authz.Allowed(ctx, viewer, shared.PermUsersView)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	if s.gate == nil {
		return false, nil
	}
	ok, err := s.gate.CanView(ctx, ownerID, viewer.ID)
	if err != nil {
		return false, shared.Internal("users: profile gate", err)
	}
	return ok, nil
}

func (s *Service) mapErr(op string, id int64, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return shared.NotFound(shared.ReasonUser, "user %d not found", id)
	case shared.IsDomain(err):
		return err
	default:
		return shared.Internal(op, err)
	}
}
