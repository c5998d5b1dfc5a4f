package profileview

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/lostfound/lostfound/internal/shared"
	"github.com/lostfound/lostfound/jobs"
)

// Enqueuer schedules notifications after a request changes.
type Enqueuer interface {
	EnqueueProfileViewNotify(ctx context.Context, payload jobs.ProfileViewNotifyPayload) (*asynq.TaskInfo, error)
}

// Service implements the profile-view approval workflow.
type Service struct {
	repo     RepositoryPort
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewService builds Service. enqueuer may be nil.
func NewService(repo RepositoryPort, enqueuer Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, enqueuer: enqueuer, logger: logger}
}

// Create opens a PENDING request from actor to the owner of the item. The
// requester must prove a prior interaction: their own interest on the item or
// a chat message on the item exchanged with the owner.
func (s *Service) Create(ctx context.Context, actor shared.Principal, in CreateRequest) (Request, error) {
	if (in.InterestID == nil) == (in.ChatMessageID == nil) {
		return Request{}, shared.Validation("exactly one of interest_id or chat_message_id is required")
	}
	item, err := s.repo.FindItem(ctx, in.ItemID)
	if err != nil {
		return Request{}, mapErr("profileview: find item", in.ItemID, err)
	}
	if item.OwnerID == nil {
		return Request{}, shared.InvalidState(shared.ReasonItemWithoutOwner, "item %d has no owner", item.ID)
	}
	ownerID := *item.OwnerID
	if ownerID == actor.ID {
		return Request{}, shared.Forbidden(shared.ReasonSelfRequest, "cannot request your own profile")
	}

	var proven bool
	if in.InterestID != nil {
		proven, err = s.repo.HasInterestProof(ctx, *in.InterestID, item.ID, actor.ID)
	} else {
		proven, err = s.repo.HasChatProof(ctx, *in.ChatMessageID, item.ID, actor.ID, ownerID)
	}
	if err != nil {
		return Request{}, shared.Internal("profileview: proof", err)
	}
	if !proven {
		return Request{}, shared.Forbidden(shared.ReasonMissingProof, "no prior interaction with the owner of item %d", item.ID)
	}

	created, err := s.repo.Insert(ctx, Request{
		ItemID:        item.ID,
		OwnerID:       ownerID,
		RequesterID:   actor.ID,
		InterestID:    in.InterestID,
		ChatMessageID: in.ChatMessageID,
	})
	if err != nil {
		return Request{}, mapErr("profileview: insert", in.ItemID, err)
	}
	s.logger.Info("profile view requested", slog.Int64("request_id", created.ID), slog.Int64("item_id", item.ID),
		slog.Int64("requester_id", actor.ID))
	s.notify(ctx, created)
	return created, nil
}

// Approve moves a PENDING request to APPROVED.
func (s *Service) Approve(ctx context.Context, actor shared.Principal, id int64) (Request, error) {
	return s.transition(ctx, actor, id, StatusPending, StatusApproved, shared.AuditProfileViewApprove)
}

// Deny moves a PENDING request to DENIED.
func (s *Service) Deny(ctx context.Context, actor shared.Principal, id int64) (Request, error) {
	return s.transition(ctx, actor, id, StatusPending, StatusDenied, shared.AuditProfileViewDeny)
}

// Revoke withdraws an approval.
func (s *Service) Revoke(ctx context.Context, actor shared.Principal, id int64) (Request, error) {
	return s.transition(ctx, actor, id, StatusApproved, StatusDenied, shared.AuditProfileViewRevoke)
}

func (s *Service) transition(ctx context.Context, actor shared.Principal, id int64, from, to Status, action string) (Request, error) {
	var updated Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.LockRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.OwnerID != actor.ID {
			return shared.Forbidden(shared.ReasonNotOwner, "only the item owner may decide request %d", id)
		}
		if !actor.IsActive {
			return shared.Forbidden(shared.ReasonInactive, "inactive principal")
		}
		if req.Status != from || !from.CanTransition(to) {
			return shared.InvalidState(shared.ReasonIllegalTransition, "request %d is %s", id, req.Status)
		}
		updated, err = tx.SetStatus(ctx, id, to)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   action,
			Entity:   "profile_view_request",
			EntityID: shared.EntityID(id),
			Meta:     map[string]any{"from": string(from), "to": string(to), "requester_id": req.RequesterID},
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Request{}, shared.NotFound(shared.ReasonRequest, "request %d not found", id)
		}
		return Request{}, mapErr("profileview: transition", 0, err)
	}
	s.logger.Info("profile view decided", slog.Int64("request_id", id), slog.String("status", string(to)))
	s.notify(ctx, updated)
	return updated, nil
}

// ListIncoming returns requests addressed to the actor.
func (s *Service) ListIncoming(ctx context.Context, actor shared.Principal) ([]Request, error) {
	list, err := s.repo.ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, shared.Internal("profileview: list incoming", err)
	}
	return list, nil
}

// ListOutgoing returns requests made by the actor.
func (s *Service) ListOutgoing(ctx context.Context, actor shared.Principal) ([]Request, error) {
	list, err := s.repo.ListByRequester(ctx, actor.ID)
	if err != nil {
		return nil, shared.Internal("profileview: list outgoing", err)
	}
	return list, nil
}

// CanView reports whether viewerID holds an approved request from ownerID.
func (s *Service) CanView(ctx context.Context, ownerID, viewerID int64) (bool, error) {
	ok, err := s.repo.HasApproved(ctx, ownerID, viewerID)
	if err != nil {
		return false, shared.Internal("profileview: can view", err)
	}
	return ok, nil
}

func (s *Service) notify(ctx context.Context, req Request) {
	if s.enqueuer == nil {
		return
	}
	_, err := s.enqueuer.EnqueueProfileViewNotify(context.WithoutCancel(ctx), jobs.ProfileViewNotifyPayload{
		RequestID:   req.ID,
		ItemID:      req.ItemID,
		OwnerID:     req.OwnerID,
		RequesterID: req.RequesterID,
		Status:      string(req.Status),
	})
	if err != nil {
		s.logger.Warn("enqueue profile view notify", slog.Any("error", err), slog.Int64("request_id", req.ID))
	}
}

func mapErr(op string, itemID int64, err error) error {
	switch {
	case errors.Is(err, ErrItemNotFound):
		return shared.NotFound(shared.ReasonItem, "item %d not found", itemID)
	case shared.IsDomain(err):
		return err
	default:
		return shared.Internal(op, err)
	}
}
