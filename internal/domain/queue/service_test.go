package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockRepo is an in-memory ticket store. The test tx runner serializes whole
// units of work, mirroring how the row locks serialize them in Postgres.
type mockRepo struct {
	mu      sync.Mutex
	tickets map[uuid.UUID]*Ticket
	counter map[uuid.UUID]int64
	clock   int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		tickets: make(map[uuid.UUID]*Ticket),
		counter: make(map[uuid.UUID]int64),
	}
}

func (m *mockRepo) AllocateAndCreate(_ context.Context, tenantID, visitID uuid.UUID) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter[tenantID]++
	m.clock++
	t := &Ticket{
		ID:        uuid.New(),
		TenantID:  tenantID,
		VisitID:   visitID,
		Number:    m.counter[tenantID],
		State:     StateWaiting,
		CreatedAt: time.Unix(0, m.clock),
		UpdatedAt: time.Unix(0, m.clock),
	}
	m.tickets[t.ID] = t
	return t, nil
}

func (m *mockRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.TenantID != tenantID {
		return nil, ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockRepo) ListActive(_ context.Context, tenantID uuid.UUID) ([]*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Ticket
	for _, t := range m.tickets {
		if t.TenantID == tenantID && (t.State == StateWaiting || t.State == StateInProgress) {
			cp := *t
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Number < result[j].Number
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *mockRepo) LockNextWaiting(_ context.Context, tenantID uuid.UUID) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next *Ticket
	for _, t := range m.tickets {
		if t.TenantID != tenantID || t.State != StateWaiting {
			continue
		}
		if next == nil || t.CreatedAt.Before(next.CreatedAt) ||
			(t.CreatedAt.Equal(next.CreatedAt) && t.Number < next.Number) {
			next = t
		}
	}
	if next == nil {
		return nil, ErrEmptyQueue
	}
	cp := *next
	return &cp, nil
}

func (m *mockRepo) Transition(_ context.Context, tenantID, id uuid.UUID, state string) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.TenantID != tenantID {
		return nil, ErrTicketNotFound
	}
	if !CanTransition(t.State, state) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, t.State, state)
	}
	t.State = state
	t.UpdatedAt = time.Now()
	cp := *t
	return &cp, nil
}

// serialTxRunner runs each unit of work under one mutex, the way conflicting
// transactions serialize on row locks.
func serialTxRunner() func(ctx context.Context, fn func(ctx context.Context) error) error {
	var mu sync.Mutex
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		mu.Lock()
		defer mu.Unlock()
		return fn(ctx)
	}
}

func newTestService() *Service {
	return NewService(newMockRepo(), serialTxRunner())
}

func TestAdmit_DenseNumbering(t *testing.T) {
	svc := newTestService()
	tenantID := uuid.New()

	for want := int64(1); want <= 5; want++ {
		ticket, err := svc.Admit(context.Background(), tenantID, uuid.New())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ticket.Number != want {
			t.Errorf("expected number %d, got %d", want, ticket.Number)
		}
		if ticket.State != StateWaiting {
			t.Errorf("expected WAITING, got %s", ticket.State)
		}
	}
}

func TestAdmit_TenantsNumberIndependently(t *testing.T) {
	svc := newTestService()
	tenantA := uuid.New()
	tenantB := uuid.New()

	svc.Admit(context.Background(), tenantA, uuid.New())
	svc.Admit(context.Background(), tenantA, uuid.New())
	ticket, err := svc.Admit(context.Background(), tenantB, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket.Number != 1 {
		t.Errorf("expected tenant B to start at 1, got %d", ticket.Number)
	}
}

func TestAdmit_NumberingSurvivesTerminalStates(t *testing.T) {
	svc := newTestService()
	tenantID := uuid.New()

	t1, _ := svc.Admit(context.Background(), tenantID, uuid.New())
	svc.CallNext(context.Background(), tenantID)
	svc.Complete(context.Background(), tenantID, t1.ID)

	t2, err := svc.Admit(context.Background(), tenantID, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if t2.Number != 2 {
		t.Errorf("expected number 2 after first ticket finished, got %d", t2.Number)
	}
}

func TestCallNext_ClaimsInAdmissionOrder(t *testing.T) {
	svc := newTestService()
	tenantID := uuid.New()

	first, _ := svc.Admit(context.Background(), tenantID, uuid.New())
	svc.Admit(context.Background(), tenantID, uuid.New())

	called, err := svc.CallNext(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called.ID != first.ID {
		t.Error("expected earliest waiting ticket to be called first")
	}
	if called.State != StateInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", called.State)
	}
}

func TestCallNext_EmptyQueue(t *testing.T) {
	svc := newTestService()

	_, err := svc.CallNext(context.Background(), uuid.New())
	if !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("expected ErrEmptyQueue, got %v", err)
	}
}

func TestCallNext_ConcurrentCallersClaimDistinctTickets(t *testing.T) {
	svc := newTestService()
	tenantID := uuid.New()

	const n = 8
	for i := 0; i < n; i++ {
		if _, err := svc.Admit(context.Background(), tenantID, uuid.New()); err != nil {
			t.Fatalf("admit: %v", err)
		}
	}

	results := make(chan *Ticket, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := svc.CallNext(context.Background(), tenantID)
			if err != nil {
				t.Errorf("call next: %v", err)
				return
			}
			results <- ticket
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uuid.UUID]bool)
	for ticket := range results {
		if seen[ticket.ID] {
			t.Fatalf("ticket %s claimed twice", ticket.ID)
		}
		seen[ticket.ID] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct claims, got %d", n, len(seen))
	}

	if _, err := svc.CallNext(context.Background(), tenantID); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("expected empty queue after all claims, got %v", err)
	}
}

func TestCallNext_OneOfTwoWins(t *testing.T) {
	svc := newTestService()
	tenantID := uuid.New()
	svc.Admit(context.Background(), tenantID, uuid.New())

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CallNext(context.Background(), tenantID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, empty int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrEmptyQueue):
			empty++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || empty != 1 {
		t.Errorf("expected exactly one winner and one empty-queue error, got %d/%d", won, empty)
	}
}

func TestComplete(t *testing.T) {
	svc := newTestService()
	tenantID := uuid.New()
	ticket, _ := svc.Admit(context.Background(), tenantID, uuid.New())
	svc.CallNext(context.Background(), tenantID)

	done, err := svc.Complete(context.Background(), tenantID, ticket.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.State != StateDone {
		t.Errorf("expected DONE, got %s", done.State)
	}
}

func TestSkip_DirectFromWaiting(t *testing.T) {
	svc := newTestService()
	tenantID := uuid.New()
	ticket, _ := svc.Admit(context.Background(), tenantID, uuid.New())

	skipped, err := svc.Skip(context.Background(), tenantID, ticket.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if skipped.State != StateSkipped {
		t.Errorf("expected SKIPPED, got %s", skipped.State)
	}
}

func TestComplete_DirectFromWaiting(t *testing.T) {
	svc := newTestService()
	tenantID := uuid.New()
	ticket, _ := svc.Admit(context.Background(), tenantID, uuid.New())

	done, err := svc.Complete(context.Background(), tenantID, ticket.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.State != StateDone {
		t.Errorf("expected DONE, got %s", done.State)
	}
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	svc := newTestService()
	tenantID := uuid.New()
	ticket, _ := svc.Admit(context.Background(), tenantID, uuid.New())
	svc.Complete(context.Background(), tenantID, ticket.ID)

	if _, err := svc.Skip(context.Background(), tenantID, ticket.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
	if _, err := svc.Complete(context.Background(), tenantID, ticket.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}

	fetched, _ := svc.Get(context.Background(), tenantID, ticket.ID)
	if fetched.State != StateDone {
		t.Errorf("expected state to stay DONE, got %s", fetched.State)
	}
}

// Terminal writes must stay safe even when units of work are not serialized
// around the read, so this test runs the dispatcher without the serializing
// runner: the conditional store write alone has to arbitrate.
func TestConcurrentTerminalTransitions_OneWins(t *testing.T) {
	passthrough := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	}
	svc := NewService(newMockRepo(), passthrough)
	tenantID := uuid.New()
	ticket, err := svc.Admit(context.Background(), tenantID, uuid.New())
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if _, err := svc.CallNext(context.Background(), tenantID); err != nil {
		t.Fatalf("call next: %v", err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, fn := range []func(context.Context, uuid.UUID, uuid.UUID) (*Ticket, error){svc.Complete, svc.Skip} {
		wg.Add(1)
		go func(fn func(context.Context, uuid.UUID, uuid.UUID) (*Ticket, error)) {
			defer wg.Done()
			_, err := fn(context.Background(), tenantID, ticket.ID)
			errs <- err
		}(fn)
	}
	wg.Wait()
	close(errs)

	var won, rejected int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrInvalidState):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || rejected != 1 {
		t.Fatalf("expected one winner and one ErrInvalidState, got %d/%d", won, rejected)
	}

	final, err := svc.Get(context.Background(), tenantID, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !IsTerminal(final.State) {
		t.Errorf("expected a terminal state, got %s", final.State)
	}
}

func TestTransition_CrossTenantNotFound(t *testing.T) {
	svc := newTestService()
	tenantID := uuid.New()
	ticket, _ := svc.Admit(context.Background(), tenantID, uuid.New())

	_, err := svc.Complete(context.Background(), uuid.New(), ticket.ID)
	if !errors.Is(err, ErrTicketNotFound) {
		t.Errorf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestListActive_ExcludesTerminalKeepsOrder(t *testing.T) {
	svc := newTestService()
	tenantID := uuid.New()

	t1, _ := svc.Admit(context.Background(), tenantID, uuid.New())
	t2, _ := svc.Admit(context.Background(), tenantID, uuid.New())
	t3, _ := svc.Admit(context.Background(), tenantID, uuid.New())

	svc.CallNext(context.Background(), tenantID)          // t1 -> IN_PROGRESS
	svc.Skip(context.Background(), tenantID, t2.ID)       // t2 -> SKIPPED
	_ = t3

	active, err := svc.ListActive(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active tickets, got %d", len(active))
	}
	if active[0].ID != t1.ID || active[1].ID != t3.ID {
		t.Error("expected admission order with terminal tickets excluded")
	}
	if active[0].State != StateInProgress {
		t.Errorf("expected first active ticket IN_PROGRESS, got %s", active[0].State)
	}
}

func TestListActive_ScopedToTenant(t *testing.T) {
	svc := newTestService()
	tenantA := uuid.New()
	tenantB := uuid.New()
	svc.Admit(context.Background(), tenantA, uuid.New())
	svc.Admit(context.Background(), tenantB, uuid.New())

	active, err := svc.ListActive(context.Background(), tenantA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("expected 1 ticket, got %d", len(active))
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StateWaiting, StateInProgress, true},
		{StateWaiting, StateDone, true},
		{StateWaiting, StateSkipped, true},
		{StateInProgress, StateDone, true},
		{StateInProgress, StateSkipped, true},
		{StateInProgress, StateWaiting, false},
		{StateDone, StateSkipped, false},
		{StateDone, StateInProgress, false},
		{StateSkipped, StateDone, false},
		{StateSkipped, StateWaiting, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(StateDone) || !IsTerminal(StateSkipped) {
		t.Error("expected DONE and SKIPPED to be terminal")
	}
	if IsTerminal(StateWaiting) || IsTerminal(StateInProgress) {
		t.Error("expected WAITING and IN_PROGRESS to be non-terminal")
	}
}
