package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"leadflow_backend/internal/dispatch"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/followup/domain"
	"leadflow_backend/internal/followup/repository"
	leaddomain "leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/apperr"
	platformevents "leadflow_backend/platform/events"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type claim struct {
	token uuid.UUID
	until time.Time
}

// memStore mirrors the repository's conditional writes in memory.
type memStore struct {
	mu         sync.Mutex
	sequences  map[uuid.UUID]*domain.Sequence
	executions map[uuid.UUID]*domain.Execution
	leads      map[uuid.UUID]leaddomain.Lead
	claims     map[uuid.UUID]claim
	claimErr   error
	// faults marks rows whose stored JSON cannot be decoded.
	faults map[uuid.UUID]error
	// beforeCheck runs at the start of RenewClaim to simulate a concurrent
	// writer between claim and dispatch.
	beforeCheck func(id uuid.UUID)
	// afterClaim runs once ClaimDue has leased its rows.
	afterClaim func()
}

func newMemStore() *memStore {
	return &memStore{
		sequences:  make(map[uuid.UUID]*domain.Sequence),
		executions: make(map[uuid.UUID]*domain.Execution),
		leads:      make(map[uuid.UUID]leaddomain.Lead),
		claims:     make(map[uuid.UUID]claim),
		faults:     make(map[uuid.UUID]error),
	}
}

func (m *memStore) addSequence(steps ...domain.Step) *domain.Sequence {
	seq := &domain.Sequence{ID: uuid.New(), Nome: "pos-formulario", Steps: steps, StartHour: 9, EndHour: 18, IsActive: true}
	m.sequences[seq.ID] = seq
	return seq
}

func (m *memStore) addExecution(seq *domain.Sequence, step int, due time.Time) *domain.Execution {
	lead := leaddomain.Lead{ID: uuid.New(), NomeCompleto: "Maria Souza", Telefone: "+5511999990000", Email: "maria@example.com"}
	m.leads[lead.ID] = lead
	d := due
	exec := &domain.Execution{
		ID:              uuid.New(),
		LeadID:          lead.ID,
		SequenceID:      seq.ID,
		Status:          domain.StatusActive,
		StepAtual:       step,
		ProximaExecucao: &d,
	}
	m.executions[exec.ID] = exec
	return exec
}

func (m *memStore) get(id uuid.UUID) domain.Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.executions[id]
}

func (m *memStore) holds(id, token uuid.UUID) bool {
	c, ok := m.claims[id]
	return ok && c.token == token
}

func (m *memStore) ClaimDue(ctx context.Context, p repository.ClaimParams) ([]repository.Claimed, error) {
	out, err := m.claimDue(ctx, p)
	if err == nil && m.afterClaim != nil {
		m.afterClaim()
	}
	return out, err
}

func (m *memStore) claimDue(_ context.Context, p repository.ClaimParams) ([]repository.Claimed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return nil, m.claimErr
	}

	due := make([]*domain.Execution, 0)
	for _, e := range m.executions {
		if !e.Status.Open() || e.ProximaExecucao == nil || e.ProximaExecucao.After(p.Now) {
			continue
		}
		if c, ok := m.claims[e.ID]; ok && !c.until.Before(p.Now) {
			continue
		}
		if !m.sequences[e.SequenceID].IsActive {
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ProximaExecucao.Before(*due[j].ProximaExecucao) })
	if len(due) > p.Limit {
		due = due[:p.Limit]
	}

	out := make([]repository.Claimed, 0, len(due))
	for _, e := range due {
		m.claims[e.ID] = claim{token: p.Token, until: p.Now.Add(p.Lease)}
		out = append(out, repository.Claimed{
			Execution: *e,
			Sequence:  *m.sequences[e.SequenceID],
			Lead:      m.leads[e.LeadID],
			Token:     p.Token,
			Fault:     m.faults[e.ID],
		})
	}
	return out, nil
}

func (m *memStore) RenewClaim(_ context.Context, id, token uuid.UUID, now, until time.Time) (domain.Status, bool, error) {
	if m.beforeCheck != nil {
		m.beforeCheck(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return "", false, apperr.NotFound("execution not found")
	}
	c, held := m.claims[id]
	if !held || c.token != token || !c.until.After(now) || !e.Status.Open() {
		return e.Status, false, nil
	}
	m.claims[id] = claim{token: token, until: until}
	return e.Status, true, nil
}

func (m *memStore) Park(_ context.Context, id, token uuid.UUID, message string, until time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.executions[id]
	if !m.holds(id, token) || !e.Status.Open() {
		return false, nil
	}
	e.LastError = &message
	m.claims[id] = claim{token: uuid.Nil, until: until}
	return true, nil
}

func (m *memStore) SaveProgress(_ context.Context, p repository.ProgressParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.executions[p.ExecutionID]
	if !m.holds(e.ID, p.Token) || !e.Status.Open() {
		return false, nil
	}
	e.StepAtual = p.Progress.StepAtual
	e.Status = p.Progress.Status
	e.ProximaExecucao = p.Progress.ProximaExecucao
	e.StepsExecutados = append(e.StepsExecutados, p.Progress.Entry)
	e.TotalTouchpoints = p.Progress.TotalTouchpoints
	e.LastError = nil
	delete(m.claims, e.ID)
	if p.Progress.FirstStep {
		m.sequences[p.SequenceID].LeadsAtingidos++
	}
	return true, nil
}

func (m *memStore) update(id, token uuid.UUID, fn func(e *domain.Execution)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.executions[id]
	if !m.holds(id, token) || !e.Status.Open() {
		return false, nil
	}
	fn(e)
	delete(m.claims, id)
	return true, nil
}

func (m *memStore) Postpone(_ context.Context, id, token uuid.UUID) (bool, error) {
	return m.update(id, token, func(e *domain.Execution) { e.Status = domain.StatusPostponed })
}

func (m *memStore) RecordFailure(_ context.Context, id, token uuid.UUID, message string) (bool, error) {
	return m.update(id, token, func(e *domain.Execution) { e.LastError = &message })
}

func (m *memStore) Complete(_ context.Context, id, token uuid.UUID) (bool, error) {
	return m.update(id, token, func(e *domain.Execution) {
		e.Status = domain.StatusCompleted
		e.ProximaExecucao = nil
	})
}

func (m *memStore) ReleaseClaim(_ context.Context, id, token uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holds(id, token) {
		delete(m.claims, id)
	}
	return nil
}

func (m *memStore) CreateSequence(_ context.Context, seq domain.Sequence) (domain.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq.ID = uuid.New()
	m.sequences[seq.ID] = &seq
	return seq, nil
}

func (m *memStore) GetSequence(_ context.Context, id uuid.UUID) (domain.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.sequences[id]
	if !ok {
		return domain.Sequence{}, apperr.NotFound("sequence not found")
	}
	return *seq, nil
}

func (m *memStore) ListSequences(context.Context, uuid.UUID) ([]domain.Sequence, error) {
	return nil, nil
}

func (m *memStore) Enroll(_ context.Context, p repository.EnrollParams) (domain.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.executions {
		if e.LeadID == p.LeadID && e.SequenceID == p.SequenceID && e.Status.Open() {
			return domain.Execution{}, apperr.Conflict("lead already enrolled in this sequence")
		}
	}
	due := p.FirstDue
	e := &domain.Execution{ID: uuid.New(), LeadID: p.LeadID, SequenceID: p.SequenceID, Status: domain.StatusActive, ProximaExecucao: &due}
	m.executions[e.ID] = e
	return *e, nil
}

func (m *memStore) GetExecution(_ context.Context, id uuid.UUID) (domain.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return domain.Execution{}, apperr.NotFound("execution not found")
	}
	return *e, nil
}

func (m *memStore) ListExecutionsByLead(context.Context, uuid.UUID) ([]domain.Execution, error) {
	return nil, nil
}

func (m *memStore) Cancel(_ context.Context, id uuid.UUID) (domain.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return domain.Execution{}, apperr.NotFound("execution not found")
	}
	if e.Status == domain.StatusCompleted {
		return domain.Execution{}, apperr.Conflict("execution already completed")
	}
	e.Status = domain.StatusCancelled
	e.ProximaExecucao = nil
	delete(m.claims, id)
	return *e, nil
}

func (m *memStore) CancelForLead(_ context.Context, leadID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.executions {
		if e.LeadID == leadID && e.Status.Open() {
			e.Status = domain.StatusCancelled
			e.ProximaExecucao = nil
			delete(m.claims, e.ID)
			n++
		}
	}
	return n, nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []dispatch.Message
	fail string
	// onSend runs before the message is recorded, as if delivery were slow.
	onSend func()
}

func (f *fakeDispatcher) Send(_ context.Context, msg dispatch.Message) dispatch.Result {
	if f.onSend != nil {
		f.onSend()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if f.fail != "" {
		return dispatch.Result{Error: f.fail, Attempts: 1}
	}
	return dispatch.Result{Success: true, Attempts: 1}
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, time.Duration) (func(), bool, error) {
	return nil, false, nil
}

func threeSteps() []domain.Step {
	return []domain.Step{
		{Titulo: "Boas-vindas", TipoAcao: "whatsapp", Conteudo: "Oi {{primeiro_nome}}, conheça {{solucao}}"},
		{Titulo: "Caso", TipoAcao: "email", Conteudo: "Veja {{empresa_similar}}", DelayDays: 2},
		{Titulo: "Ligar", TipoAcao: "tarefa", Conteudo: "Ligar para {{nome}}", DelayHours: 4},
	}
}

func at(hour int) time.Time {
	return time.Date(2025, 3, 10, hour, 0, 0, 0, time.UTC)
}

func newTestService(store *memStore, d *fakeDispatcher, now time.Time, bus events.Bus) *Service {
	return New(store, d, nil, bus, logger.Nop(), Options{
		BatchSize: 10,
		Workers:   4,
		LeaseTTL:  time.Minute,
		Location:  time.UTC,
		Clock:     func() time.Time { return now },
	})
}

func TestFirstStepAdvancesAndCountsReach(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()...)
	exec := store.addExecution(seq, 0, at(9))
	d := &fakeDispatcher{}
	now := at(10)

	report, err := newTestService(store, d, now, nil).ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Stats.Sent)
	require.Len(t, report.Results, 1)
	assert.Equal(t, ResultSent, report.Results[0].Status)
	assert.Equal(t, "1", report.Results[0].NextStep)

	got := store.get(exec.ID)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Equal(t, 1, got.StepAtual)
	require.NotNil(t, got.ProximaExecucao)
	assert.Equal(t, now.Add(48*time.Hour), *got.ProximaExecucao)
	assert.Equal(t, 1, got.TotalTouchpoints)
	require.Len(t, got.StepsExecutados, 1)
	assert.Equal(t, "whatsapp", got.StepsExecutados[0].Type)
	assert.Equal(t, 1, store.sequences[seq.ID].LeadsAtingidos)

	require.Equal(t, 1, d.count())
	assert.Equal(t, dispatch.ChannelWhatsApp, d.sent[0].Channel)
	assert.Equal(t, "Oi Maria, conheça nossa solução", d.sent[0].Body)
	assert.Equal(t, "+5511999990000", d.sent[0].To.Phone)
}

func TestOutsideWindowPostponesWithoutChanges(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()...)
	due := at(9)
	exec := store.addExecution(seq, 0, due)
	d := &fakeDispatcher{}

	report, err := newTestService(store, d, at(20), nil).ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Postponed)
	assert.Equal(t, 0, d.count())

	got := store.get(exec.ID)
	assert.Equal(t, domain.StatusPostponed, got.Status)
	assert.Equal(t, 0, got.StepAtual)
	assert.Equal(t, due, *got.ProximaExecucao)
	assert.Empty(t, got.StepsExecutados)

	// The next in-window cycle picks the same step up again.
	report, err = newTestService(store, d, at(10).Add(24*time.Hour), nil).ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.Sent)
	assert.Equal(t, domain.StatusActive, store.get(exec.ID).Status)
	assert.Equal(t, 1, store.get(exec.ID).StepAtual)
}

func TestFinalStepCompletes(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()...)
	exec := store.addExecution(seq, 2, at(9))
	exec.TotalTouchpoints = 2
	d := &fakeDispatcher{}
	bus := platformevents.NewInMemoryBus(logger.Nop())

	var mu sync.Mutex
	var completed []events.FollowupCompleted
	bus.Subscribe(events.FollowupCompleted{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, e.(events.FollowupCompleted))
		return nil
	}))

	report, err := newTestService(store, d, at(10), bus).ProcessDue(context.Background())
	require.NoError(t, err)
	bus.Wait()

	assert.Equal(t, ResultCompleted, report.Results[0].NextStep)
	got := store.get(exec.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Nil(t, got.ProximaExecucao)
	assert.Equal(t, 3, got.TotalTouchpoints)
	assert.Equal(t, 0, store.sequences[seq.ID].LeadsAtingidos)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, completed, 1)
	assert.Equal(t, exec.ID, completed[0].ExecutionID)
	assert.Equal(t, 3, completed[0].TotalTouchpoints)
}

func TestExhaustedSequenceCompletesWithoutDispatch(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()[:1]...)
	exec := store.addExecution(seq, 1, at(9))
	d := &fakeDispatcher{}

	report, err := newTestService(store, d, at(10), nil).ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Completed)
	assert.Equal(t, 0, d.count())
	assert.Equal(t, domain.StatusCompleted, store.get(exec.ID).Status)
}

func TestDispatchFailureKeepsStateForRetry(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()...)
	due := at(9)
	exec := store.addExecution(seq, 0, due)
	d := &fakeDispatcher{fail: "channel returned 502"}

	report, err := newTestService(store, d, at(10), nil).ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Failed)
	assert.Equal(t, "channel returned 502", report.Results[0].Message)

	got := store.get(exec.ID)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Equal(t, 0, got.StepAtual)
	assert.Equal(t, due, *got.ProximaExecucao)
	assert.Equal(t, 0, got.TotalTouchpoints)
	require.NotNil(t, got.LastError)
	assert.Equal(t, 0, store.sequences[seq.ID].LeadsAtingidos)
	assert.Empty(t, store.claims)
}

func TestCancelBeforeDispatchWins(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()...)
	exec := store.addExecution(seq, 0, at(9))
	d := &fakeDispatcher{}
	store.beforeCheck = func(id uuid.UUID) {
		_, _ = store.Cancel(context.Background(), id)
	}

	report, err := newTestService(store, d, at(10), nil).ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Cancelled)
	assert.Equal(t, 0, d.count())
	got := store.get(exec.ID)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, 0, got.StepAtual)
}

func TestUnknownActionTypeFails(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(domain.Step{Titulo: "Fax", TipoAcao: "fax"})
	store.addExecution(seq, 0, at(9))
	d := &fakeDispatcher{}

	report, err := newTestService(store, d, at(10), nil).ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Failed)
	assert.Equal(t, 0, d.count())
}

func TestNotYetDueIsIgnored(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()...)
	store.addExecution(seq, 0, at(12))
	d := &fakeDispatcher{}

	report, err := newTestService(store, d, at(10), nil).ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.NotNil(t, report.Results)
}

func TestConcurrentBatchesDispatchEachStepOnce(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()...)
	for range 20 {
		store.addExecution(seq, 0, at(9))
	}
	d := &fakeDispatcher{}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := newTestService(store, d, at(10), nil).ProcessDue(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, d.count())
	assert.Equal(t, 20, store.sequences[seq.ID].LeadsAtingidos)
	for id := range store.executions {
		assert.Equal(t, 1, store.get(id).StepAtual)
	}
}

// movingClock is a clock a test can jump forward while a batch runs.
type movingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *movingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *movingClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func TestLateItemRenewsLeaseBeforeSending(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()...)
	exec := store.addExecution(seq, 0, at(9))
	d := &fakeDispatcher{}
	ctx := context.Background()

	clock := &movingClock{now: at(10)}
	first := New(store, d, nil, nil, logger.Nop(), Options{
		BatchSize: 10,
		Workers:   1,
		LeaseTTL:  time.Minute,
		Location:  time.UTC,
		Clock:     clock.Now,
	})

	// The batch reaches this item with one second of its lease left.
	var claimed sync.Once
	store.afterClaim = func() {
		claimed.Do(func() { clock.set(at(10).Add(59 * time.Second)) })
	}

	// While the send is in flight the original lease lapses and another
	// batch runs.
	var overlapping BatchReport
	var sending sync.Once
	d.onSend = func() {
		sending.Do(func() {
			r, err := newTestService(store, d, at(10).Add(61*time.Second), nil).ProcessDue(ctx)
			assert.NoError(t, err)
			overlapping = r
		})
	}

	report, err := first.ProcessDue(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Sent)
	assert.Equal(t, 0, overlapping.Processed)
	assert.Equal(t, 1, d.count())
	assert.Equal(t, 1, store.get(exec.ID).StepAtual)
}

func TestLapsedLeaseSkipsDispatch(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()...)
	exec := store.addExecution(seq, 0, at(9))
	d := &fakeDispatcher{}

	clock := &movingClock{now: at(10)}
	svc := New(store, d, nil, nil, logger.Nop(), Options{
		LeaseTTL: time.Minute,
		Location: time.UTC,
		Clock:    clock.Now,
	})
	store.afterClaim = func() { clock.set(at(10).Add(61 * time.Second)) }

	report, err := svc.ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.Skipped)
	assert.Equal(t, 0, d.count())
	assert.Equal(t, 0, store.get(exec.ID).StepAtual)
}

func TestLeaseCoversSendBudget(t *testing.T) {
	svc := New(newMemStore(), &fakeDispatcher{}, nil, nil, logger.Nop(), Options{
		LeaseTTL:   time.Minute,
		SendBudget: 2 * time.Minute,
	})
	assert.Equal(t, 2*time.Minute+leaseMargin, svc.opts.LeaseTTL)

	svc = New(newMemStore(), &fakeDispatcher{}, nil, nil, logger.Nop(), Options{
		LeaseTTL:   5 * time.Minute,
		SendBudget: time.Minute,
	})
	assert.Equal(t, 5*time.Minute, svc.opts.LeaseTTL)
}

func TestUndecodableRowIsParkedAndBatchContinues(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()...)
	bad := store.addExecution(seq, 0, at(8))
	good := store.addExecution(seq, 0, at(9))
	store.faults[bad.ID] = errors.New("decode sequence steps: json: cannot unmarshal string")
	d := &fakeDispatcher{}

	report, err := newTestService(store, d, at(10), nil).ProcessDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Stats.Sent)
	assert.Equal(t, 1, report.Stats.Errors)
	assert.Equal(t, 1, store.get(good.ID).StepAtual)

	parked := store.get(bad.ID)
	assert.Equal(t, 0, parked.StepAtual)
	require.NotNil(t, parked.LastError)
	assert.Contains(t, *parked.LastError, "decode sequence steps")

	report, err = newTestService(store, d, at(10).Add(30*time.Minute), nil).ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)

	report, err = newTestService(store, d, at(11).Add(time.Minute), nil).ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Stats.Errors)
	assert.Equal(t, 1, d.count())
}

func TestHeldCycleLockSkipsBatch(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()...)
	store.addExecution(seq, 0, at(9))
	d := &fakeDispatcher{}

	svc := New(store, d, heldLocker{}, nil, logger.Nop(), Options{Clock: func() time.Time { return at(10) }})
	report, err := svc.ProcessDue(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.Equal(t, 0, d.count())
}

func TestClaimFailureIsUnavailable(t *testing.T) {
	store := newMemStore()
	store.claimErr = errors.New("connection refused")

	_, err := newTestService(store, &fakeDispatcher{}, at(10), nil).ProcessDue(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
}

func TestEnrollSchedulesFirstStep(t *testing.T) {
	store := newMemStore()
	steps := threeSteps()
	steps[0].DelayHours = 1
	seq := store.addSequence(steps...)
	now := at(10)
	svc := newTestService(store, &fakeDispatcher{}, now, nil)
	leadID := uuid.New()

	exec, err := svc.Enroll(context.Background(), leadID, seq.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, exec.Status)
	assert.Equal(t, now.Add(time.Hour), *exec.ProximaExecucao)

	_, err = svc.Enroll(context.Background(), leadID, seq.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestEnrollRejectsInactiveSequence(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()...)
	seq.IsActive = false

	_, err := newTestService(store, &fakeDispatcher{}, at(10), nil).Enroll(context.Background(), uuid.New(), seq.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestLeadClosureCancelsExecutions(t *testing.T) {
	store := newMemStore()
	seq := store.addSequence(threeSteps()...)
	exec := store.addExecution(seq, 1, at(9))
	bus := platformevents.NewInMemoryBus(logger.Nop())
	svc := newTestService(store, &fakeDispatcher{}, at(10), bus)
	svc.SubscribeLeadClosure(bus)

	require.NoError(t, bus.PublishSync(context.Background(), events.LeadConverted{BaseEvent: events.NewBaseEvent(), LeadID: exec.LeadID}))

	assert.Equal(t, domain.StatusCancelled, store.get(exec.ID).Status)
}

func TestCreateSequenceValidates(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeDispatcher{}, at(10), nil)

	_, err := svc.CreateSequence(context.Background(), domain.Sequence{Nome: "x"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.CreateSequence(context.Background(), domain.Sequence{Nome: "x", Steps: threeSteps(), StartHour: 25})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	created, err := svc.CreateSequence(context.Background(), domain.Sequence{Nome: "x", Steps: threeSteps(), StartHour: 9, EndHour: 18, IsActive: true})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
}
