package fraudcase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"fraudflow/auth"
	"fraudflow/authz"
	"fraudflow/escalation"
)

var (
	// ErrValidation signals malformed input: empty reason, unknown
	// status/priority, or an ineligible assignee.
	ErrValidation = errors.New("fraudcase: invalid input")
	// ErrPermission signals the caller exists but the permission matrix
	// or ownership rule denies the action.
	ErrPermission = errors.New("fraudcase: permission denied")
	// ErrInvalidState signals the requested transition is illegal for the
	// case's current status.
	ErrInvalidState = errors.New("fraudcase: invalid status transition")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserDirectory resolves acting users and assignees. auth.PGRepository
// satisfies it.
type UserDirectory interface {
	GetUserByID(ctx context.Context, userID string) (auth.User, error)
}

// Ledger is the append-only escalation history. escalation.PGRepository
// satisfies it; Insert runs inside the service's transaction so the case
// update and its audit record commit atomically.
type Ledger interface {
	Insert(ctx context.Context, tx pgx.Tx, rec escalation.Record) (escalation.Record, error)
	ListByCase(ctx context.Context, caseID string) ([]escalation.Record, error)
}

// Service implements the case lifecycle: who may create, assign, update,
// escalate, and close a case, and which transitions are legal.
type Service struct {
	pool        TxBeginner
	repo        Repository
	users       UserDirectory
	ledger      Ledger
	idGenerator func() string
	now         func() time.Time
}

func NewService(pool TxBeginner, repo Repository, users UserDirectory, ledger Ledger) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		users:       users,
		ledger:      ledger,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateParams carries the caller-supplied fields for a new case.
type CreateParams struct {
	TxID        string
	Description string
	Priority    Priority
	CreatorID   string
}

// Create opens a new case with status open and no assignee. The creator
// must exist and hold create on case; a duplicate transaction reference
// fails with ErrConflict.
func (s *Service) Create(ctx context.Context, params CreateParams) (Case, error) {
	if strings.TrimSpace(params.TxID) == "" {
		return Case{}, fmt.Errorf("%w: transaction reference is required", ErrValidation)
	}
	if !ValidPriority(params.Priority) {
		return Case{}, fmt.Errorf("%w: unknown priority %q", ErrValidation, params.Priority)
	}

	creator, err := s.lookupUser(ctx, params.CreatorID)
	if err != nil {
		return Case{}, err
	}
	if !authz.Allowed(creator.Role, authz.ResourceCase, authz.ActionCreate) {
		return Case{}, fmt.Errorf("%w: role %s may not create cases", ErrPermission, creator.Role)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("fraudcase: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.Insert(ctx, tx, Case{
		ID:          s.idGenerator(),
		TxID:        params.TxID,
		Description: params.Description,
		Status:      StatusOpen,
		Priority:    params.Priority,
		CreatedBy:   creator.ID,
	})
	if err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("fraudcase: commit create: %w", err)
	}
	return created, nil
}

// Assign hands the case to assignee and forces status to in_progress,
// whatever the prior status. Re-assignment always overwrites, so the
// call is safe to repeat. Closed cases cannot be assigned.
func (s *Service) Assign(ctx context.Context, caseID, assigneeID, assignerID string) (Case, error) {
	assigner, err := s.users.GetUserByID(ctx, assignerID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return Case{}, fmt.Errorf("%w: assigner %s", ErrPermission, assignerID)
		}
		return Case{}, fmt.Errorf("fraudcase: lookup assigner: %w", err)
	}
	switch assigner.Role {
	case auth.RoleAdmin, auth.RoleInvestigator, auth.RoleAnalyst:
	default:
		return Case{}, fmt.Errorf("%w: role %s may not assign cases", ErrPermission, assigner.Role)
	}

	assignee, err := s.users.GetUserByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return Case{}, fmt.Errorf("%w: assignee %s does not exist", ErrValidation, assigneeID)
		}
		return Case{}, fmt.Errorf("fraudcase: lookup assignee: %w", err)
	}
	switch assignee.Role {
	case auth.RoleInvestigator, auth.RoleAnalyst:
	default:
		return Case{}, fmt.Errorf("%w: role %s is not assignable", ErrValidation, assignee.Role)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("fraudcase: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, caseID)
	if err != nil {
		return Case{}, err
	}
	if c.Status == StatusClosed {
		return Case{}, fmt.Errorf("%w: case is closed", ErrInvalidState)
	}

	status := StatusInProgress
	updated, err := s.repo.Update(ctx, tx, c.ID, UpdateParams{
		Status:     &status,
		AssignedTo: &assignee.ID,
	})
	if err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("fraudcase: commit assign: %w", err)
	}
	return updated, nil
}

// Update mutates only the fields present in params. The action is
// assignment-gated: admins always may, investigators and analysts only
// on cases assigned to them.
func (s *Service) Update(ctx context.Context, caseID string, params UpdateParams, actorID string) (Case, error) {
	actor, err := s.lookupUser(ctx, actorID)
	if err != nil {
		return Case{}, err
	}

	if params.Status != nil && !ValidStatus(*params.Status) {
		return Case{}, fmt.Errorf("%w: unknown status %q", ErrValidation, *params.Status)
	}
	if params.Priority != nil && !ValidPriority(*params.Priority) {
		return Case{}, fmt.Errorf("%w: unknown priority %q", ErrValidation, *params.Priority)
	}
	if params.TxID != nil && strings.TrimSpace(*params.TxID) == "" {
		return Case{}, fmt.Errorf("%w: transaction reference cannot be empty", ErrValidation)
	}
	if params.AssignedTo != nil {
		if _, err := s.users.GetUserByID(ctx, *params.AssignedTo); err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				return Case{}, fmt.Errorf("%w: assignee %s does not exist", ErrValidation, *params.AssignedTo)
			}
			return Case{}, fmt.Errorf("fraudcase: lookup assignee: %w", err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("fraudcase: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, caseID)
	if err != nil {
		return Case{}, err
	}
	if !canModify(actor, c) {
		return Case{}, fmt.Errorf("%w: update requires admin or current assignee", ErrPermission)
	}
	if c.Status == StatusClosed {
		return Case{}, fmt.Errorf("%w: case is closed", ErrInvalidState)
	}

	updated, err := s.repo.Update(ctx, tx, c.ID, params)
	if err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("fraudcase: commit update: %w", err)
	}
	return updated, nil
}

// EscalateParams carries one escalation request. NewStatus defaults to
// escalated when absent; NewPriority always applies.
type EscalateParams struct {
	CaseID      string
	EscalatorID string
	EscalatedTo *string
	NewStatus   *Status
	NewPriority Priority
	Reason      string
}

// Escalate raises a case: it captures the current status and priority,
// applies the new ones, optionally reassigns, and appends one ledger
// record in the same transaction, so no partial escalation is ever
// observable. Escalation is a forced forward action: without an
// explicit NewStatus the case lands on escalated even if it was
// already there.
func (s *Service) Escalate(ctx context.Context, params EscalateParams) (Case, escalation.Record, error) {
	if strings.TrimSpace(params.Reason) == "" {
		return Case{}, escalation.Record{}, fmt.Errorf("%w: escalation reason is required", ErrValidation)
	}
	if !ValidPriority(params.NewPriority) {
		return Case{}, escalation.Record{}, fmt.Errorf("%w: unknown priority %q", ErrValidation, params.NewPriority)
	}
	if params.NewStatus != nil && !ValidStatus(*params.NewStatus) {
		return Case{}, escalation.Record{}, fmt.Errorf("%w: unknown status %q", ErrValidation, *params.NewStatus)
	}

	escalator, err := s.lookupUser(ctx, params.EscalatorID)
	if err != nil {
		return Case{}, escalation.Record{}, err
	}
	if !authz.Allowed(escalator.Role, authz.ResourceCase, authz.ActionEscalate) {
		return Case{}, escalation.Record{}, fmt.Errorf("%w: role %s may not escalate cases", ErrPermission, escalator.Role)
	}

	if params.EscalatedTo != nil {
		if _, err := s.users.GetUserByID(ctx, *params.EscalatedTo); err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				return Case{}, escalation.Record{}, fmt.Errorf("%w: escalation target %s does not exist", ErrValidation, *params.EscalatedTo)
			}
			return Case{}, escalation.Record{}, fmt.Errorf("fraudcase: lookup escalation target: %w", err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, escalation.Record{}, fmt.Errorf("fraudcase: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, params.CaseID)
	if err != nil {
		return Case{}, escalation.Record{}, err
	}
	if c.Status == StatusClosed {
		return Case{}, escalation.Record{}, fmt.Errorf("%w: case is closed", ErrInvalidState)
	}

	newStatus := StatusEscalated
	if params.NewStatus != nil {
		newStatus = *params.NewStatus
	}

	update := UpdateParams{
		Status:     &newStatus,
		Priority:   &params.NewPriority,
		AssignedTo: params.EscalatedTo,
	}

	updated, err := s.repo.Update(ctx, tx, c.ID, update)
	if err != nil {
		return Case{}, escalation.Record{}, err
	}

	rec, err := s.ledger.Insert(ctx, tx, escalation.Record{
		CaseID:           c.ID,
		EscalatedBy:      escalator.ID,
		EscalatedTo:      params.EscalatedTo,
		PreviousStatus:   string(c.Status),
		NewStatus:        string(newStatus),
		PreviousPriority: string(c.Priority),
		NewPriority:      string(params.NewPriority),
		Reason:           params.Reason,
	})
	if err != nil {
		return Case{}, escalation.Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, escalation.Record{}, fmt.Errorf("fraudcase: commit escalate: %w", err)
	}
	return updated, rec, nil
}

// Close finalizes a resolved case. Closing is terminal: no transition
// leads out of closed, and only a resolved case may be closed.
func (s *Service) Close(ctx context.Context, caseID, actorID string) (Case, error) {
	actor, err := s.lookupUser(ctx, actorID)
	if err != nil {
		return Case{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("fraudcase: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, caseID)
	if err != nil {
		return Case{}, err
	}
	if !canModify(actor, c) {
		return Case{}, fmt.Errorf("%w: close requires admin or current assignee", ErrPermission)
	}
	if c.Status != StatusResolved {
		return Case{}, fmt.Errorf("%w: cannot close case in status %s", ErrInvalidState, c.Status)
	}

	status := StatusClosed
	updated, err := s.repo.Update(ctx, tx, c.ID, UpdateParams{Status: &status})
	if err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("fraudcase: commit close: %w", err)
	}
	return updated, nil
}

// Get returns the case by ID if the actor may see it; an invisible case
// reads as ErrNotFound.
func (s *Service) Get(ctx context.Context, caseID, actorID string) (Case, error) {
	actor, err := s.lookupUser(ctx, actorID)
	if err != nil {
		return Case{}, err
	}
	if !authz.Allowed(actor.Role, authz.ResourceCase, authz.ActionRead) {
		return Case{}, fmt.Errorf("%w: role %s may not read cases", ErrPermission, actor.Role)
	}

	c, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return Case{}, err
	}
	if !authz.Visible(actor.Role, actor.ID, c.CreatedBy, c.AssignedTo) {
		return Case{}, fmt.Errorf("%w: case %s", ErrNotFound, caseID)
	}
	return c, nil
}

// GetByTxID returns the case for a transaction reference, under the same
// visibility rule as Get.
func (s *Service) GetByTxID(ctx context.Context, txID, actorID string) (Case, error) {
	actor, err := s.lookupUser(ctx, actorID)
	if err != nil {
		return Case{}, err
	}
	if !authz.Allowed(actor.Role, authz.ResourceCase, authz.ActionRead) {
		return Case{}, fmt.Errorf("%w: role %s may not read cases", ErrPermission, actor.Role)
	}

	c, err := s.repo.GetByTxID(ctx, txID)
	if err != nil {
		return Case{}, err
	}
	if !authz.Visible(actor.Role, actor.ID, c.CreatedBy, c.AssignedTo) {
		return Case{}, fmt.Errorf("%w: transaction %s", ErrNotFound, txID)
	}
	return c, nil
}

// List returns the cases matching filters that the actor may see,
// preserving repository order.
func (s *Service) List(ctx context.Context, filters Filters, actorID string) ([]Case, error) {
	actor, err := s.lookupUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !authz.Allowed(actor.Role, authz.ResourceCase, authz.ActionRead) {
		return nil, fmt.Errorf("%w: role %s may not read cases", ErrPermission, actor.Role)
	}

	cases, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return FilterVisible(actor.Role, actor.ID, cases), nil
}

// History returns the case's escalation records in ascending creation
// order. Viewers are denied outright: the ledger gate is stricter than
// the matrix's viewer read grant and ignores ownership.
func (s *Service) History(ctx context.Context, caseID, actorID string) ([]escalation.Record, error) {
	actor, err := s.lookupUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case auth.RoleAdmin, auth.RoleInvestigator, auth.RoleAnalyst:
	default:
		return nil, fmt.Errorf("%w: role %s may not read escalation history", ErrPermission, actor.Role)
	}

	if _, err := s.repo.GetByID(ctx, caseID); err != nil {
		return nil, err
	}

	return s.ledger.ListByCase(ctx, caseID)
}

// FilterVisible returns the subset of cases visible to the user,
// preserving the input order.
func FilterVisible(role auth.Role, userID string, cases []Case) []Case {
	out := make([]Case, 0, len(cases))
	for _, c := range cases {
		if authz.Visible(role, userID, c.CreatedBy, c.AssignedTo) {
			out = append(out, c)
		}
	}
	return out
}

// canModify gates update and close: admin always, investigator or
// analyst only on cases currently assigned to them. Ownership of the
// case as creator grants nothing here.
func canModify(actor auth.User, c Case) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleInvestigator, auth.RoleAnalyst:
		return c.AssignedTo != nil && *c.AssignedTo == actor.ID
	default:
		return false
	}
}

func (s *Service) lookupUser(ctx context.Context, userID string) (auth.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return auth.User{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return auth.User{}, fmt.Errorf("fraudcase: lookup user: %w", err)
	}
	return user, nil
}
