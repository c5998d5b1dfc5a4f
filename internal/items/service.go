package items

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/lostfound/lostfound/internal/shared"
)

// Authorizer answers permission questions.
type Authorizer interface {
	Allowed(ctx context.Context, p shared.Principal, required ...string) (bool, error)
	Authorize(ctx context.Context, p shared.Principal, required ...string) error
}

// Service implements the item registry.
type Service struct {
	repo   RepositoryPort
	authz  Authorizer
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, authz Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, authz: authz, logger: logger}
}

// Create posts a new item. LOST and FOUND items belong to the actor; FREE
// items are ownerless and reserved to holders of item_free_create.
func (s *Service) Create(ctx context.Context, actor shared.Principal, req CreateRequest) (Item, error) {
	title := strings.TrimSpace(req.Title)
	if !req.Kind.Valid() || title == "" {
		return Item{}, shared.Validation("kind must be LOST, FOUND or FREE and title is required")
	}
	item := Item{
		Kind:        req.Kind,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		Status:      StatusActive,
	}
	required := shared.PermItemCreate
	if req.Kind == KindFree {
		required = shared.PermItemFreeCreate
	} else {
		owner := actor.ID
		item.OwnerID = &owner
	}
	if err := s.authz.Authorize(ctx, actor, required); err != nil {
		return Item{}, err
	}
	created, err := s.repo.Insert(ctx, item)
	if err != nil {
		return Item{}, shared.Internal("items: create", err)
	}
	s.logger.Info("item created", slog.Int64("item_id", created.ID), slog.String("kind", string(created.Kind)), slog.Int64("actor_id", actor.ID))
	return created, nil
}

// FindByID returns one item.
func (s *Service) FindByID(ctx context.Context, id int64) (Item, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Item{}, mapErr("items: find", id, err)
	}
	return item, nil
}

// FindAll lists items matching filter.
func (s *Service) FindAll(ctx context.Context, filter Filter) ([]Item, int, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, 0, shared.Validation("unknown kind %q", filter.Kind)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, shared.Validation("unknown status %q", filter.Status)
	}
	items, total, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, shared.Internal("items: list", err)
	}
	return items, total, nil
}

// Reject moves an ACTIVE item to REJECTED. The owner or a holder of
// item_reject may reject.
func (s *Service) Reject(ctx context.Context, actor shared.Principal, id int64) (Item, error) {
	var rejected Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.LockItem(ctx, id)
		if err != nil {
			return err
		}
		if !item.Status.CanTransition(StatusRejected) {
			return shared.InvalidState(shared.ReasonItemNotActive, "item %d is %s", id, item.Status)
		}
		if !item.OwnedBy(actor.ID) || !actor.IsActive {
			if err := s.authz.Authorize(ctx, actor, shared.PermItemReject); err != nil {
				return err
			}
		}
		if err := tx.SetStatus(ctx, id, StatusRejected); err != nil {
			return err
		}
		item.Status = StatusRejected
		rejected = item
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditItemReject,
			Entity:   "item",
			EntityID: shared.EntityID(id),
		})
	})
	if err != nil {
		return Item{}, mapErr("items: reject", id, err)
	}
	s.logger.Info("item rejected", slog.Int64("item_id", id), slog.Int64("actor_id", actor.ID))
	return rejected, nil
}

// Delete removes an item with its interests and profile-view requests.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, id int64) error {
	if err := s.authz.Authorize(ctx, actor, shared.PermItemDelete); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.LockItem(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, id); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditItemDelete,
			Entity:   "item",
			EntityID: shared.EntityID(id),
			Meta:     map[string]any{"kind": item.Kind, "status": item.Status},
		})
	})
	if err != nil {
		return mapErr("items: delete", id, err)
	}
	return nil
}

func mapErr(op string, id int64, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return shared.NotFound(shared.ReasonItem, "item %d not found", id)
	case shared.IsDomain(err):
		return err
	default:
		return shared.Internal(op, err)
	}
}
