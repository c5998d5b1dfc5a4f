package interests

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lostfound/lostfound/internal/items"
	"github.com/lostfound/lostfound/internal/shared"
)

// Authorizer answers permission questions.
type Authorizer interface {
	Allowed(ctx context.Context, p shared.Principal, required ...string) (bool, error)
}

// Service implements the interest ledger.
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

// CreateInterest records userID's interest in an ACTIVE FOUND or FREE item.
// The item row is share-locked so an assignment cannot complete in between.
func (s *Service) CreateInterest(ctx context.Context, itemID, userID int64) (Interest, error) {
	var created Interest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.LockItemShared(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Status != items.StatusActive || !item.Kind.AcceptsInterest() {
			return ErrNotFound
		}
		if item.OwnedBy(userID) {
			return shared.Forbidden(shared.ReasonSelfInterest, "owners cannot express interest in their own item")
		}
		created, err = tx.Insert(ctx, Interest{ItemID: itemID, UserID: userID})
		return err
	})
	if err != nil {
		return Interest{}, mapItemErr("interests: create", itemID, err)
	}
	s.logger.Info("interest created", slog.Int64("interest_id", created.ID), slog.Int64("item_id", itemID), slog.Int64("user_id", userID))
	return created, nil
}

// ListForItem returns the interests of an item to its owner or a holder of interest_view.
func (s *Service) ListForItem(ctx context.Context, actor shared.Principal, itemID int64) ([]Interest, error) {
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		return nil, mapItemErr("interests: find item", itemID, err)
	}
	if !item.OwnedBy(actor.ID) || !actor.IsActive {
		ok, err := s.authz.Allowed(ctx, actor, shared.PermInterestView)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.Forbidden(shared.ReasonRoleDenied, "not allowed to view interests of item %d", itemID)
		}
	}
	list, err := s.repo.ListForItem(ctx, itemID)
	if err != nil {
		return nil, shared.Internal("interests: list for item", err)
	}
	return list, nil
}

// ListMine returns the actor's own interests.
func (s *Service) ListMine(ctx context.Context, actor shared.Principal) ([]Interest, error) {
	list, err := s.repo.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, shared.Internal("interests: list mine", err)
	}
	return list, nil
}

func mapItemErr(op string, itemID int64, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return shared.NotFound(shared.ReasonItem, "item %d not found or not accepting interests", itemID)
	case shared.IsDomain(err):
		return err
	default:
		return shared.Internal(op, err)
	}
}
