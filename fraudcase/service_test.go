package fraudcase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"fraudflow/auth"
	"fraudflow/escalation"
)

func TestCreate_OpensUnassigned(t *testing.T) {
	f := newFixture()
	inv := f.addUser(auth.RoleInvestigator)

	c, err := f.svc.Create(context.Background(), CreateParams{
		TxID:      "TX-100",
		Priority:  PriorityHigh,
		CreatorID: inv,
	})
	if err != nil {
		t.Fatalf("create: unexpected error: %v", err)
	}
	if c.Status != StatusOpen {
		t.Fatalf("expected status %s got %s", StatusOpen, c.Status)
	}
	if c.AssignedTo != nil {
		t.Fatalf("expected no assignee, got %s", *c.AssignedTo)
	}
	if c.CreatedBy != inv {
		t.Fatalf("expected created_by %s got %s", inv, c.CreatedBy)
	}
	if !f.pool.lastTx.committed {
		t.Error("expected create to commit")
	}
}

func TestCreate_DuplicateTxID(t *testing.T) {
	f := newFixture()
	inv := f.addUser(auth.RoleInvestigator)

	if _, err := f.svc.Create(context.Background(), CreateParams{TxID: "TX1", Priority: PriorityLow, CreatorID: inv}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := f.svc.Create(context.Background(), CreateParams{TxID: "TX1", Priority: PriorityHigh, CreatorID: inv})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	inv := f.addUser(auth.RoleInvestigator)

	if _, err := f.svc.Create(context.Background(), CreateParams{TxID: " ", Priority: PriorityLow, CreatorID: inv}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank txid, got %v", err)
	}
	if _, err := f.svc.Create(context.Background(), CreateParams{TxID: "TX2", Priority: Priority("urgent"), CreatorID: inv}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown priority, got %v", err)
	}
	if _, err := f.svc.Create(context.Background(), CreateParams{TxID: "TX3", Priority: PriorityLow, CreatorID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing creator, got %v", err)
	}
}

func TestCreate_PermissionDenied(t *testing.T) {
	f := newFixture()

	for _, role := range []auth.Role{auth.RoleAnalyst, auth.RoleViewer} {
		id := f.addUser(role)
		_, err := f.svc.Create(context.Background(), CreateParams{TxID: "TX-" + id, Priority: PriorityLow, CreatorID: id})
		if !errors.Is(err, ErrPermission) {
			t.Fatalf("role %s: expected ErrPermission, got %v", role, err)
		}
	}
}

func TestAssign_ForcesInProgress(t *testing.T) {
	f := newFixture()
	inv := f.addUser(auth.RoleInvestigator)
	analyst := f.addUser(auth.RoleAnalyst)

	for _, prior := range []Status{StatusOpen, StatusEscalated, StatusResolved} {
		c := f.addCase(inv, prior, PriorityMedium)

		updated, err := f.svc.Assign(context.Background(), c.ID, analyst, inv)
		if err != nil {
			t.Fatalf("assign from %s: unexpected error: %v", prior, err)
		}
		if updated.Status != StatusInProgress {
			t.Fatalf("assign from %s: expected status %s got %s", prior, StatusInProgress, updated.Status)
		}
		if updated.AssignedTo == nil || *updated.AssignedTo != analyst {
			t.Fatalf("assign from %s: expected assignee %s", prior, analyst)
		}
	}
}

func TestAssign_Idempotent(t *testing.T) {
	f := newFixture()
	inv := f.addUser(auth.RoleInvestigator)
	analyst := f.addUser(auth.RoleAnalyst)
	c := f.addCase(inv, StatusOpen, PriorityHigh)

	first, err := f.svc.Assign(context.Background(), c.ID, analyst, inv)
	if err != nil {
		t.Fatalf("first assign: %v", err)
	}
	second, err := f.svc.Assign(context.Background(), c.ID, analyst, inv)
	if err != nil {
		t.Fatalf("second assign: %v", err)
	}
	if second.Status != first.Status || *second.AssignedTo != *first.AssignedTo {
		t.Fatalf("expected identical state after repeat assign: first=%+v second=%+v", first, second)
	}
}

func TestAssign_Errors(t *testing.T) {
	f := newFixture()
	inv := f.addUser(auth.RoleInvestigator)
	analyst := f.addUser(auth.RoleAnalyst)
	viewer := f.addUser(auth.RoleViewer)
	c := f.addCase(inv, StatusOpen, PriorityLow)

	if _, err := f.svc.Assign(context.Background(), "missing", analyst, inv); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing case: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Assign(context.Background(), c.ID, viewer, inv); !errors.Is(err, ErrValidation) {
		t.Fatalf("viewer assignee: expected ErrValidation, got %v", err)
	}
	if _, err := f.svc.Assign(context.Background(), c.ID, "missing", inv); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing assignee: expected ErrValidation, got %v", err)
	}
	if _, err := f.svc.Assign(context.Background(), c.ID, analyst, viewer); !errors.Is(err, ErrPermission) {
		t.Fatalf("viewer assigner: expected ErrPermission, got %v", err)
	}

	closed := f.addCase(inv, StatusClosed, PriorityLow)
	if _, err := f.svc.Assign(context.Background(), closed.ID, analyst, inv); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("closed case: expected ErrInvalidState, got %v", err)
	}
}

func TestUpdate_AssignmentGated(t *testing.T) {
	f := newFixture()
	admin := f.addUser(auth.RoleAdmin)
	inv := f.addUser(auth.RoleInvestigator)
	analyst := f.addUser(auth.RoleAnalyst)

	c := f.addCase(inv, StatusInProgress, PriorityMedium)
	f.setAssignee(c.ID, analyst)

	desc := "updated narrative"

	// the creator is not the assignee, so even an investigator is denied
	if _, err := f.svc.Update(context.Background(), c.ID, UpdateParams{Description: &desc}, inv); !errors.Is(err, ErrPermission) {
		t.Fatalf("non-assignee investigator: expected ErrPermission, got %v", err)
	}

	updated, err := f.svc.Update(context.Background(), c.ID, UpdateParams{Description: &desc}, analyst)
	if err != nil {
		t.Fatalf("assignee update: %v", err)
	}
	if updated.Description != desc {
		t.Fatalf("expected description %q got %q", desc, updated.Description)
	}

	status := StatusResolved
	if _, err := f.svc.Update(context.Background(), c.ID, UpdateParams{Status: &status}, admin); err != nil {
		t.Fatalf("admin update: %v", err)
	}
}

func TestUpdate_Validation(t *testing.T) {
	f := newFixture()
	admin := f.addUser(auth.RoleAdmin)
	inv := f.addUser(auth.RoleInvestigator)
	c := f.addCase(inv, StatusOpen, PriorityLow)

	bad := Status("archived")
	if _, err := f.svc.Update(context.Background(), c.ID, UpdateParams{Status: &bad}, admin); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status: expected ErrValidation, got %v", err)
	}

	ghost := "ghost"
	if _, err := f.svc.Update(context.Background(), c.ID, UpdateParams{AssignedTo: &ghost}, admin); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing assignee target: expected ErrValidation, got %v", err)
	}

	closed := f.addCase(inv, StatusClosed, PriorityLow)
	desc := "late edit"
	if _, err := f.svc.Update(context.Background(), closed.ID, UpdateParams{Description: &desc}, admin); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("closed case: expected ErrInvalidState, got %v", err)
	}
}

func TestEscalate_DefaultsToEscalated(t *testing.T) {
	f := newFixture()
	inv := f.addUser(auth.RoleInvestigator)

	for _, prior := range []Status{StatusOpen, StatusInProgress, StatusEscalated, StatusResolved} {
		c := f.addCase(inv, prior, PriorityHigh)

		updated, rec, err := f.svc.Escalate(context.Background(), EscalateParams{
			CaseID:      c.ID,
			EscalatorID: inv,
			NewPriority: PriorityCritical,
			Reason:      "needs senior review",
		})
		if err != nil {
			t.Fatalf("escalate from %s: %v", prior, err)
		}
		if updated.Status != StatusEscalated {
			t.Fatalf("escalate from %s: expected status %s got %s", prior, StatusEscalated, updated.Status)
		}
		if updated.Priority != PriorityCritical {
			t.Fatalf("escalate from %s: expected priority critical got %s", prior, updated.Priority)
		}
		if rec.PreviousStatus != string(prior) {
			t.Fatalf("escalate from %s: record previous_status %q", prior, rec.PreviousStatus)
		}
		if rec.PreviousPriority != string(PriorityHigh) || rec.NewPriority != string(PriorityCritical) {
			t.Fatalf("escalate from %s: priority pair %q -> %q", prior, rec.PreviousPriority, rec.NewPriority)
		}
		if !f.pool.lastTx.committed {
			t.Fatalf("escalate from %s: expected case update and ledger append to commit together", prior)
		}
	}
}

func TestEscalate_ExplicitStatusAndReassign(t *testing.T) {
	f := newFixture()
	inv := f.addUser(auth.RoleInvestigator)
	analyst := f.addUser(auth.RoleAnalyst)
	c := f.addCase(inv, StatusOpen, PriorityLow)

	status := StatusInProgress
	updated, rec, err := f.svc.Escalate(context.Background(), EscalateParams{
		CaseID:      c.ID,
		EscalatorID: inv,
		EscalatedTo: &analyst,
		NewStatus:   &status,
		NewPriority: PriorityHigh,
		Reason:      "hand to fraud desk",
	})
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if updated.Status != StatusInProgress {
		t.Fatalf("expected explicit status %s got %s", StatusInProgress, updated.Status)
	}
	if updated.AssignedTo == nil || *updated.AssignedTo != analyst {
		t.Fatal("expected escalation target to become assignee")
	}
	if rec.EscalatedTo == nil || *rec.EscalatedTo != analyst {
		t.Fatal("expected record to carry escalation target")
	}
}

func TestEscalate_Errors(t *testing.T) {
	f := newFixture()
	inv := f.addUser(auth.RoleInvestigator)
	viewer := f.addUser(auth.RoleViewer)
	c := f.addCase(inv, StatusOpen, PriorityLow)

	if _, _, err := f.svc.Escalate(context.Background(), EscalateParams{CaseID: c.ID, EscalatorID: inv, NewPriority: PriorityHigh, Reason: "   "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank reason: expected ErrValidation, got %v", err)
	}
	if _, _, err := f.svc.Escalate(context.Background(), EscalateParams{CaseID: c.ID, EscalatorID: viewer, NewPriority: PriorityHigh, Reason: "why"}); !errors.Is(err, ErrPermission) {
		t.Fatalf("viewer escalator: expected ErrPermission, got %v", err)
	}
	if _, _, err := f.svc.Escalate(context.Background(), EscalateParams{CaseID: "missing", EscalatorID: inv, NewPriority: PriorityHigh, Reason: "why"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing case: expected ErrNotFound, got %v", err)
	}

	closed := f.addCase(inv, StatusClosed, PriorityLow)
	if _, _, err := f.svc.Escalate(context.Background(), EscalateParams{CaseID: closed.ID, EscalatorID: inv, NewPriority: PriorityHigh, Reason: "why"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("closed case: expected ErrInvalidState, got %v", err)
	}
	if len(f.ledger.records) != 0 {
		t.Fatalf("expected no ledger records after failed escalations, got %d", len(f.ledger.records))
	}
}

func TestClose_OnlyResolved(t *testing.T) {
	f := newFixture()
	admin := f.addUser(auth.RoleAdmin)
	inv := f.addUser(auth.RoleInvestigator)

	for _, prior := range []Status{StatusOpen, StatusInProgress, StatusEscalated, StatusClosed} {
		c := f.addCase(inv, prior, PriorityLow)
		if _, err := f.svc.Close(context.Background(), c.ID, admin); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("close from %s: expected ErrInvalidState, got %v", prior, err)
		}
	}

	c := f.addCase(inv, StatusResolved, PriorityLow)
	closed, err := f.svc.Close(context.Background(), c.ID, admin)
	if err != nil {
		t.Fatalf("close resolved: %v", err)
	}
	if closed.Status != StatusClosed {
		t.Fatalf("expected status %s got %s", StatusClosed, closed.Status)
	}
}

func TestClose_AssignmentGated(t *testing.T) {
	f := newFixture()
	inv := f.addUser(auth.RoleInvestigator)
	analyst := f.addUser(auth.RoleAnalyst)

	c := f.addCase(inv, StatusResolved, PriorityLow)
	f.setAssignee(c.ID, analyst)

	if _, err := f.svc.Close(context.Background(), c.ID, inv); !errors.Is(err, ErrPermission) {
		t.Fatalf("non-assignee close: expected ErrPermission, got %v", err)
	}
	if _, err := f.svc.Close(context.Background(), c.ID, analyst); err != nil {
		t.Fatalf("assignee close: %v", err)
	}
}

func TestGet_VisibilityReadsAsNotFound(t *testing.T) {
	f := newFixture()
	inv := f.addUser(auth.RoleInvestigator)
	analyst := f.addUser(auth.RoleAnalyst)
	viewer := f.addUser(auth.RoleViewer)

	c := f.addCase(inv, StatusOpen, PriorityMedium)

	if _, err := f.svc.Get(context.Background(), c.ID, inv); err != nil {
		t.Fatalf("investigator get: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), c.ID, analyst); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unrelated analyst: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), c.ID, viewer); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unrelated viewer: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.GetByTxID(context.Background(), c.TxID, viewer); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unrelated viewer by txid: expected ErrNotFound, got %v", err)
	}

	f.setAssignee(c.ID, analyst)
	if _, err := f.svc.Get(context.Background(), c.ID, analyst); err != nil {
		t.Fatalf("assigned analyst get: %v", err)
	}
}

func TestList_FiltersToVisibleSubset(t *testing.T) {
	f := newFixture()
	inv := f.addUser(auth.RoleInvestigator)
	analyst := f.addUser(auth.RoleAnalyst)

	a := f.addCase(inv, StatusOpen, PriorityLow)
	b := f.addCase(inv, StatusOpen, PriorityLow)
	f.addCase(inv, StatusOpen, PriorityLow)
	f.setAssignee(a.ID, analyst)
	f.setCreator(b.ID, analyst)

	all, err := f.svc.List(context.Background(), Filters{}, inv)
	if err != nil {
		t.Fatalf("investigator list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("investigator should see 3 cases, got %d", len(all))
	}

	mine, err := f.svc.List(context.Background(), Filters{}, analyst)
	if err != nil {
		t.Fatalf("analyst list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("analyst should see 2 cases, got %d", len(mine))
	}
	// repository order is preserved
	if mine[0].ID != a.ID || mine[1].ID != b.ID {
		t.Fatalf("expected order [%s %s], got [%s %s]", a.ID, b.ID, mine[0].ID, mine[1].ID)
	}
}

func TestHistory_RoleGate(t *testing.T) {
	f := newFixture()
	inv := f.addUser(auth.RoleInvestigator)
	analyst := f.addUser(auth.RoleAnalyst)
	viewer := f.addUser(auth.RoleViewer)
	c := f.addCase(inv, StatusOpen, PriorityLow)

	for i := 0; i < 3; i++ {
		if _, _, err := f.svc.Escalate(context.Background(), EscalateParams{
			CaseID:      c.ID,
			EscalatorID: inv,
			NewPriority: PriorityHigh,
			Reason:      fmt.Sprintf("round %d", i),
		}); err != nil {
			t.Fatalf("seed escalation %d: %v", i, err)
		}
	}

	if _, err := f.svc.History(context.Background(), c.ID, viewer); !errors.Is(err, ErrPermission) {
		t.Fatalf("viewer history: expected ErrPermission, got %v", err)
	}
	if _, err := f.svc.History(context.Background(), "missing", inv); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing case history: expected ErrNotFound, got %v", err)
	}

	// analysts read history regardless of ownership
	records, err := f.svc.History(context.Background(), c.ID, analyst)
	if err != nil {
		t.Fatalf("analyst history: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.Reason != fmt.Sprintf("round %d", i) {
			t.Fatalf("records out of order: index %d has reason %q", i, rec.Reason)
		}
	}

	empty := f.addCase(inv, StatusOpen, PriorityLow)
	records, err = f.svc.History(context.Background(), empty.ID, inv)
	if err != nil {
		t.Fatalf("empty history: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty history, got %d records", len(records))
	}
}

// TestWorkflow walks a case end to end: create, assign, escalate,
// resolve, close, and the failures along the way.
func TestWorkflow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	investigatorA := f.addUser(auth.RoleInvestigator)
	analystB := f.addUser(auth.RoleAnalyst)

	c, err := f.svc.Create(ctx, CreateParams{TxID: "TX1", Priority: PriorityHigh, CreatorID: investigatorA})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != StatusOpen || c.AssignedTo != nil {
		t.Fatalf("fresh case: status=%s assigned=%v", c.Status, c.AssignedTo)
	}

	c, err = f.svc.Assign(ctx, c.ID, analystB, investigatorA)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if c.Status != StatusInProgress || c.AssignedTo == nil || *c.AssignedTo != analystB {
		t.Fatalf("after assign: status=%s assigned=%v", c.Status, c.AssignedTo)
	}

	c, rec, err := f.svc.Escalate(ctx, EscalateParams{
		CaseID:      c.ID,
		EscalatorID: analystB,
		NewPriority: PriorityCritical,
		Reason:      "needs senior review",
	})
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if c.Status != StatusEscalated || c.Priority != PriorityCritical {
		t.Fatalf("after escalate: status=%s priority=%s", c.Status, c.Priority)
	}
	if rec.PreviousStatus != string(StatusInProgress) || rec.NewStatus != string(StatusEscalated) {
		t.Fatalf("record status pair %q -> %q", rec.PreviousStatus, rec.NewStatus)
	}
	if rec.PreviousPriority != string(PriorityHigh) || rec.NewPriority != string(PriorityCritical) {
		t.Fatalf("record priority pair %q -> %q", rec.PreviousPriority, rec.NewPriority)
	}

	// creator A is not the assignee, so A cannot update
	desc := "creator edit"
	if _, err := f.svc.Update(ctx, c.ID, UpdateParams{Description: &desc}, investigatorA); !errors.Is(err, ErrPermission) {
		t.Fatalf("creator update: expected ErrPermission, got %v", err)
	}

	status := StatusResolved
	if c, err = f.svc.Update(ctx, c.ID, UpdateParams{Status: &status}, analystB); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if c, err = f.svc.Close(ctx, c.ID, analystB); err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.Status != StatusClosed {
		t.Fatalf("after close: status=%s", c.Status)
	}

	if _, err := f.svc.Close(ctx, c.ID, analystB); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second close: expected ErrInvalidState, got %v", err)
	}

	if _, err := f.svc.Create(ctx, CreateParams{TxID: "TX1", Priority: PriorityLow, CreatorID: investigatorA}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate txid: expected ErrConflict, got %v", err)
	}
}

// --- fakes ---

type fixture struct {
	pool   *fakePool
	repo   *fakeRepo
	users  *fakeDirectory
	ledger *fakeLedger
	svc    *Service
}

func newFixture() *fixture {
	f := &fixture{
		pool:   &fakePool{},
		repo:   newFakeRepo(),
		users:  &fakeDirectory{users: make(map[string]auth.User)},
		ledger: &fakeLedger{},
	}
	nextID := 0
	f.svc = NewService(f.pool, f.repo, f.users, f.ledger).
		WithIDGenerator(func() string {
			nextID++
			return fmt.Sprintf("case-%d", nextID)
		}).
		WithClock(func() time.Time { return time.Unix(1700000000, 0).UTC() })
	return f
}

func (f *fixture) addUser(role auth.Role) string {
	id := fmt.Sprintf("user-%d-%s", len(f.users.users)+1, role)
	f.users.users[id] = auth.User{ID: id, Role: role}
	return id
}

func (f *fixture) addCase(createdBy string, status Status, priority Priority) Case {
	c := Case{
		ID:        fmt.Sprintf("seed-%d", len(f.repo.order)+1),
		TxID:      fmt.Sprintf("SEED-TX-%d", len(f.repo.order)+1),
		Status:    status,
		Priority:  priority,
		CreatedBy: createdBy,
	}
	f.repo.put(c)
	return c
}

func (f *fixture) setAssignee(caseID, userID string) {
	c := f.repo.cases[caseID]
	c.AssignedTo = &userID
	f.repo.cases[caseID] = c
}

func (f *fixture) setCreator(caseID, userID string) {
	c := f.repo.cases[caseID]
	c.CreatedBy = userID
	f.repo.cases[caseID] = c
}

type fakeDirectory struct {
	users map[string]auth.User
}

func (f *fakeDirectory) GetUserByID(ctx context.Context, userID string) (auth.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return user, nil
}

type fakeRepo struct {
	cases map[string]Case
	order []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{cases: make(map[string]Case)}
}

func (f *fakeRepo) put(c Case) {
	if _, exists := f.cases[c.ID]; !exists {
		f.order = append(f.order, c.ID)
	}
	f.cases[c.ID] = c
}

func (f *fakeRepo) Insert(ctx context.Context, tx pgx.Tx, c Case) (Case, error) {
	for _, existing := range f.cases {
		if existing.TxID == c.TxID {
			return Case{}, ErrConflict
		}
	}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	f.put(c)
	return c, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return Case{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) GetByTxID(ctx context.Context, txID string) (Case, error) {
	for _, id := range f.order {
		if f.cases[id].TxID == txID {
			return f.cases[id], nil
		}
	}
	return Case{}, ErrNotFound
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Case, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeRepo) Update(ctx context.Context, tx pgx.Tx, id string, params UpdateParams) (Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return Case{}, ErrNotFound
	}
	if params.Description != nil {
		c.Description = *params.Description
	}
	if params.TxID != nil {
		c.TxID = *params.TxID
	}
	if params.Status != nil {
		c.Status = *params.Status
	}
	if params.Priority != nil {
		c.Priority = *params.Priority
	}
	switch {
	case params.AssignedTo != nil:
		c.AssignedTo = params.AssignedTo
	case params.ClearAssignee:
		c.AssignedTo = nil
	}
	c.UpdatedAt = time.Now().UTC()
	f.cases[id] = c
	return c, nil
}

func (f *fakeRepo) List(ctx context.Context, filters Filters) ([]Case, error) {
	out := []Case{}
	for _, id := range f.order {
		c := f.cases[id]
		if filters.Status != "" && c.Status != filters.Status {
			continue
		}
		if filters.Priority != "" && c.Priority != filters.Priority {
			continue
		}
		if filters.AssignedTo != "" && (c.AssignedTo == nil || *c.AssignedTo != filters.AssignedTo) {
			continue
		}
		if filters.CreatedBy != "" && c.CreatedBy != filters.CreatedBy {
			continue
		}
		if filters.TxID != "" && c.TxID != filters.TxID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

type fakeLedger struct {
	records []escalation.Record
}

func (f *fakeLedger) Insert(ctx context.Context, tx pgx.Tx, rec escalation.Record) (escalation.Record, error) {
	rec.ID = fmt.Sprintf("esc-%d", len(f.records)+1)
	rec.CreatedAt = time.Now().UTC()
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeLedger) ListByCase(ctx context.Context, caseID string) ([]escalation.Record, error) {
	out := []escalation.Record{}
	for _, rec := range f.records {
		if rec.CaseID == caseID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakePool struct {
	lastTx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.lastTx = &fakeTx{}
	return f.lastTx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
