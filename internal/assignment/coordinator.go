package assignment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/lostfound/lostfound/internal/items"
	"github.com/lostfound/lostfound/internal/shared"
	"github.com/lostfound/lostfound/jobs"
)

// Authorizer answers permission questions.
type Authorizer interface {
	Allowed(ctx context.Context, p shared.Principal, required ...string) (bool, error)
}

// Enqueuer schedules post-commit notifications.
type Enqueuer interface {
	EnqueueAssignmentNotify(ctx context.Context, payload jobs.AssignmentNotifyPayload) (*asynq.TaskInfo, error)
}

// Recorder counts assignment outcomes.
type Recorder interface {
	ObserveAssignment(outcome string)
}

// Coordinator binds exactly one receiver to an item.
type Coordinator struct {
	repo     RepositoryPort
	authz    Authorizer
	enqueuer Enqueuer
	recorder Recorder
	logger   *slog.Logger
}

// NewCoordinator builds Coordinator. enqueuer and recorder may be nil.
func NewCoordinator(repo RepositoryPort, authz Authorizer, enqueuer Enqueuer, recorder Recorder, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{repo: repo, authz: authz, enqueuer: enqueuer, recorder: recorder, logger: logger}
}

// AssignReceiver makes the interest's user the receiver of its item and
// completes the item, all in one transaction that holds the item row lock.
// Nothing is written unless every check passes.
func (c *Coordinator) AssignReceiver(ctx context.Context, actor shared.Principal, interestID int64) (Result, error) {
	var res Result
	err := c.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		interest, err := tx.FindInterest(ctx, interestID)
		if err != nil {
			return err
		}
		item, err := tx.LockItem(ctx, interest.ItemID)
		if err != nil {
			return err
		}
		if item.Status != items.StatusActive {
			return shared.InvalidState(shared.ReasonItemNotActive, "item %d is %s", item.ID, item.Status)
		}
		if err := c.authorize(ctx, actor, item); err != nil {
			return err
		}
		exists, err := tx.UserExists(ctx, interest.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return shared.NotFound(shared.ReasonReceiver, "receiver %d not found", interest.UserID)
		}
		if item.OwnedBy(interest.UserID) {
			return shared.Forbidden(shared.ReasonSelfAssignment, "item %d cannot be assigned to its owner", item.ID)
		}
		assigned, err := tx.HasAssignment(ctx, item.ID)
		if err != nil {
			return err
		}
		if assigned {
			return shared.Conflict(shared.ReasonAlreadyAssigned, "item %d already has an assigned receiver", item.ID)
		}
		if err := tx.MarkAssigned(ctx, interest.ID, actor.ID); err != nil {
			return err
		}
		if err := tx.CompleteItem(ctx, item.ID); err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditInterestAssign,
			Entity:   "interest",
			EntityID: shared.EntityID(interest.ID),
			Meta:     map[string]any{"item_id": item.ID, "receiver_id": interest.UserID, "kind": item.Kind},
		}); err != nil {
			return err
		}
		assignedBy := actor.ID
		interest.AssignedBy = &assignedBy
		item.Status = items.StatusCompleted
		res = Result{Item: item, Interest: interest}
		return nil
	})
	err = c.mapErr(interestID, err)
	c.observe(err)
	if err != nil {
		return Result{}, err
	}
	c.logger.Info("receiver assigned",
		slog.Int64("item_id", res.Item.ID),
		slog.Int64("interest_id", res.Interest.ID),
		slog.Int64("receiver_id", res.Interest.UserID),
		slog.Int64("actor_id", actor.ID))
	c.notify(ctx, res, actor)
	return res, nil
}

// authorize applies the kind-specific rule: FREE items need interest_assign,
// FOUND items accept their owner or interest_assign, other kinds cannot be
// assigned at all.
func (c *Coordinator) authorize(ctx context.Context, actor shared.Principal, item items.Item) error {
	switch item.Kind {
	case items.KindFree:
	case items.KindFound:
		if actor.IsActive && item.OwnedBy(actor.ID) {
			return nil
		}
	default:
		return shared.InvalidState(shared.ReasonWrongKind, "%s items cannot be assigned", item.Kind)
	}
	ok, err := c.authz.Allowed(ctx, actor, shared.PermInterestAssign)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if !actor.IsActive {
		return shared.Forbidden(shared.ReasonInactive, "account is inactive")
	}
	return shared.Forbidden(shared.ReasonRoleDenied, "not allowed to assign item %d", item.ID)
}

func (c *Coordinator) mapErr(interestID int64, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInterestNotFound):
		return shared.NotFound(shared.ReasonInterest, "interest %d not found", interestID)
	case errors.Is(err, ErrItemNotFound):
		return shared.NotFound(shared.ReasonItem, "item of interest %d not found", interestID)
	case shared.IsDomain(err):
		return err
	default:
		return shared.Internal("assignment: assign receiver", err)
	}
}

func (c *Coordinator) observe(err error) {
	if c.recorder != nil {
		c.recorder.ObserveAssignment(OutcomeOf(err))
	}
}

func (c *Coordinator) notify(ctx context.Context, res Result, actor shared.Principal) {
	if c.enqueuer == nil {
		return
	}
	_, err := c.enqueuer.EnqueueAssignmentNotify(context.WithoutCancel(ctx), jobs.AssignmentNotifyPayload{
		ItemID:     res.Item.ID,
		InterestID: res.Interest.ID,
		ReceiverID: res.Interest.UserID,
		AssignedBy: actor.ID,
	})
	if err != nil {
		c.logger.Warn("enqueue assignment notify", slog.Any("error", err), slog.Int64("interest_id", res.Interest.ID))
	}
}

