package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/votepay/backend/internal/errors"
	"github.com/votepay/backend/internal/ledger"
	"github.com/votepay/backend/internal/models"
)

type memEvent struct {
	organizerID  uuid.UUID
	status       models.EventStatus
	currency     string
	votePrice    decimal.Decimal
	totalVotes   int64
	ticketsSold  int64
	totalRevenue decimal.Decimal
}

type memCategory struct {
	eventID    uuid.UUID
	totalVotes int64
}

type memCandidate struct {
	categoryID uuid.UUID
	name       string
	voteCount  int64
}

type memTicketType struct {
	eventID  uuid.UUID
	price    decimal.Decimal
	capacity *int64
	sold     int64
}

type memState struct {
	organizers   map[uuid.UUID]decimal.Decimal
	events       map[uuid.UUID]*memEvent
	categories   map[uuid.UUID]*memCategory
	candidates   map[uuid.UUID]*memCandidate
	ticketTypes  map[uuid.UUID]*memTicketType
	transactions map[uuid.UUID]*models.Transaction
	votes        map[uuid.UUID]models.VoteBatch
	tickets      map[uuid.UUID]models.TicketBatch
}

func (s *memState) clone() *memState {
	c := &memState{
		organizers:   map[uuid.UUID]decimal.Decimal{},
		events:       map[uuid.UUID]*memEvent{},
		categories:   map[uuid.UUID]*memCategory{},
		candidates:   map[uuid.UUID]*memCandidate{},
		ticketTypes:  map[uuid.UUID]*memTicketType{},
		transactions: map[uuid.UUID]*models.Transaction{},
		votes:        map[uuid.UUID]models.VoteBatch{},
		tickets:      map[uuid.UUID]models.TicketBatch{},
	}
	for k, v := range s.organizers {
		c.organizers[k] = v
	}
	for k, v := range s.events {
		e := *v
		c.events[k] = &e
	}
	for k, v := range s.categories {
		cat := *v
		c.categories[k] = &cat
	}
	for k, v := range s.candidates {
		cand := *v
		c.candidates[k] = &cand
	}
	for k, v := range s.ticketTypes {
		tt := *v
		c.ticketTypes[k] = &tt
	}
	for k, v := range s.transactions {
		tx := *v
		c.transactions[k] = &tx
	}
	for k, v := range s.votes {
		c.votes[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	return c
}

// memoryRepo is an in-memory ledger.Repository. Transactions are fully
// serialized and roll back by restoring a snapshot.
type memoryRepo struct {
	txMu sync.Mutex // held for the whole of WithTransaction
	mu   sync.Mutex // guards state
	st   *memState

	inTx bool
	root *memoryRepo

	// failOn makes the named method fail the given number of times
	failOn    map[string]int
	takenRefs map[string]bool
	calls     map[string]int
}

var _ ledger.Repository = (*memoryRepo)(nil)

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		st:        (&memState{}).clone(),
		failOn:    map[string]int{},
		takenRefs: map[string]bool{},
		calls:     map[string]int{},
	}
}

func (m *memoryRepo) base() *memoryRepo {
	if m.root != nil {
		return m.root
	}
	return m
}

func (m *memoryRepo) hook(name string) error {
	b := m.base()
	b.calls[name]++
	if b.failOn[name] > 0 {
		b.failOn[name]--
		return apperrors.NewAppError(apperrors.InternalError, "injected failure in "+name)
	}
	return nil
}

func (m *memoryRepo) lock() func() {
	b := m.base()
	b.mu.Lock()
	return b.mu.Unlock
}

func (m *memoryRepo) state() *memState { return m.base().st }

// seeding helpers

func (m *memoryRepo) addEvent(status models.EventStatus, votePrice string) (organizerID, eventID uuid.UUID) {
	organizerID, eventID = uuid.New(), uuid.New()
	st := m.state()
	st.organizers[organizerID] = decimal.Zero
	st.events[eventID] = &memEvent{
		organizerID:  organizerID,
		status:       status,
		currency:     "GHS",
		votePrice:    decimal.RequireFromString(votePrice),
		totalRevenue: decimal.Zero,
	}
	return organizerID, eventID
}

func (m *memoryRepo) addCandidate(eventID uuid.UUID, name string) (categoryID, candidateID uuid.UUID) {
	categoryID, candidateID = uuid.New(), uuid.New()
	st := m.state()
	st.categories[categoryID] = &memCategory{eventID: eventID}
	st.candidates[candidateID] = &memCandidate{categoryID: categoryID, name: name}
	return categoryID, candidateID
}

func (m *memoryRepo) addTicketType(eventID uuid.UUID, price string, capacity *int64) uuid.UUID {
	id := uuid.New()
	m.state().ticketTypes[id] = &memTicketType{eventID: eventID, price: decimal.RequireFromString(price), capacity: capacity}
	return id
}

func (m *memoryRepo) snapshot() *memState {
	defer m.lock()()
	return m.state().clone()
}

// Repository

func (m *memoryRepo) WithTransaction(ctx context.Context, fn func(repo ledger.Repository) error) error {
	if m.inTx {
		return fn(m)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	unlock := m.lock()
	saved := m.st.clone()
	unlock()

	if err := fn(&memoryRepo{inTx: true, root: m}); err != nil {
		unlock := m.lock()
		m.st = saved
		unlock()
		return err
	}
	unlock = m.lock()
	defer unlock()
	if err := m.hook("Commit"); err != nil {
		m.st = saved
		return apperrors.ErrStoreCommit.Wrap(err)
	}
	return nil
}

func (m *memoryRepo) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	defer m.lock()()
	if err := m.hook("CreateTransaction"); err != nil {
		return err
	}
	if m.base().takenRefs[tx.Reference] {
		return ledger.ErrReferenceTaken
	}
	for _, existing := range m.state().transactions {
		if existing.Reference == tx.Reference {
			return ledger.ErrReferenceTaken
		}
	}
	c := *tx
	m.state().transactions[tx.ID] = &c
	return nil
}

func (m *memoryRepo) GetTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	defer m.lock()()
	tx, ok := m.state().transactions[id]
	if !ok {
		return nil, apperrors.ErrTransactionNotFound
	}
	c := *tx
	return &c, nil
}

func (m *memoryRepo) GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	defer m.lock()()
	for _, tx := range m.state().transactions {
		if tx.Reference == reference {
			c := *tx
			return &c, nil
		}
	}
	return nil, apperrors.ErrTransactionNotFound
}

func (m *memoryRepo) LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return m.GetTransactionByID(ctx, id)
}

func (m *memoryRepo) MarkSucceeded(ctx context.Context, id uuid.UUID, paidAt time.Time, providerTxID string) (bool, error) {
	defer m.lock()()
	if err := m.hook("MarkSucceeded"); err != nil {
		return false, err
	}
	tx, ok := m.state().transactions[id]
	if !ok || tx.Status != models.StatusPending {
		return false, nil
	}
	tx.Status = models.StatusSuccess
	tx.PaidAt = &paidAt
	if providerTxID != "" {
		tx.ProviderTxID = providerTxID
	}
	return true, nil
}

func (m *memoryRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason, providerTxID string) (bool, error) {
	defer m.lock()()
	if err := m.hook("MarkFailed"); err != nil {
		return false, err
	}
	tx, ok := m.state().transactions[id]
	if !ok || tx.Status != models.StatusPending {
		return false, nil
	}
	tx.Status = models.StatusFailed
	tx.FailureReason = reason
	if providerTxID != "" {
		tx.ProviderTxID = providerTxID
	}
	return true, nil
}

func (m *memoryRepo) ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]*models.Transaction, error) {
	defer m.lock()()
	var out []*models.Transaction
	for _, tx := range m.state().transactions {
		if tx.Status == models.StatusPending && tx.ExpiresAt != nil && tx.ExpiresAt.Before(before) {
			c := *tx
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) BatchExists(ctx context.Context, kind models.TransactionKind, transactionID uuid.UUID) (bool, error) {
	defer m.lock()()
	if kind == models.KindVote {
		_, ok := m.state().votes[transactionID]
		return ok, nil
	}
	_, ok := m.state().tickets[transactionID]
	return ok, nil
}

func (m *memoryRepo) InsertVoteBatch(ctx context.Context, batch *models.VoteBatch) error {
	defer m.lock()()
	if err := m.hook("InsertVoteBatch"); err != nil {
		return err
	}
	if _, ok := m.state().votes[batch.TransactionID]; ok {
		return apperrors.ErrAlreadyProcessed
	}
	m.state().votes[batch.TransactionID] = *batch
	return nil
}

func (m *memoryRepo) InsertTicketBatch(ctx context.Context, batch *models.TicketBatch) error {
	defer m.lock()()
	if err := m.hook("InsertTicketBatch"); err != nil {
		return err
	}
	if _, ok := m.state().tickets[batch.TransactionID]; ok {
		return apperrors.ErrAlreadyProcessed
	}
	m.state().tickets[batch.TransactionID] = *batch
	return nil
}

func (m *memoryRepo) GetVoteTarget(ctx context.Context, candidateID uuid.UUID) (*models.VoteTarget, error) {
	defer m.lock()()
	st := m.state()
	cand, ok := st.candidates[candidateID]
	if !ok {
		return nil, apperrors.ErrTargetNotFound
	}
	cat := st.categories[cand.categoryID]
	ev := st.events[cat.eventID]
	return &models.VoteTarget{
		CandidateID: candidateID,
		CategoryID:  cand.categoryID,
		EventID:     cat.eventID,
		OrganizerID: ev.organizerID,
		EventStatus: ev.status,
		UnitPrice:   ev.votePrice,
		Currency:    ev.currency,
	}, nil
}

func (m *memoryRepo) GetTicketTarget(ctx context.Context, ticketTypeID uuid.UUID) (*models.TicketTarget, error) {
	defer m.lock()()
	st := m.state()
	tt, ok := st.ticketTypes[ticketTypeID]
	if !ok {
		return nil, apperrors.ErrTargetNotFound
	}
	ev := st.events[tt.eventID]
	return &models.TicketTarget{
		TicketTypeID: ticketTypeID,
		EventID:      tt.eventID,
		OrganizerID:  ev.organizerID,
		EventStatus:  ev.status,
		UnitPrice:    tt.price,
		Currency:     ev.currency,
		Capacity:     tt.capacity,
		Sold:         tt.sold,
	}, nil
}

func (m *memoryRepo) IncrementCandidateVotes(ctx context.Context, candidateID uuid.UUID, quantity int64) error {
	defer m.lock()()
	if err := m.hook("IncrementCandidateVotes"); err != nil {
		return err
	}
	cand, ok := m.state().candidates[candidateID]
	if !ok {
		return apperrors.ErrTargetNotFound
	}
	cand.voteCount += quantity
	return nil
}

func (m *memoryRepo) IncrementCategoryVotes(ctx context.Context, categoryID uuid.UUID, quantity int64) error {
	defer m.lock()()
	if err := m.hook("IncrementCategoryVotes"); err != nil {
		return err
	}
	cat, ok := m.state().categories[categoryID]
	if !ok {
		return apperrors.ErrTargetNotFound
	}
	cat.totalVotes += quantity
	return nil
}

func (m *memoryRepo) IncrementTicketTypeSold(ctx context.Context, ticketTypeID uuid.UUID, quantity int64) error {
	defer m.lock()()
	if err := m.hook("IncrementTicketTypeSold"); err != nil {
		return err
	}
	tt, ok := m.state().ticketTypes[ticketTypeID]
	if !ok {
		return apperrors.ErrTargetNotFound
	}
	tt.sold += quantity
	return nil
}

func (m *memoryRepo) IncrementEventTotals(ctx context.Context, eventID uuid.UUID, votes, tickets int64, revenue decimal.Decimal) error {
	defer m.lock()()
	if err := m.hook("IncrementEventTotals"); err != nil {
		return err
	}
	ev, ok := m.state().events[eventID]
	if !ok {
		return apperrors.ErrTargetNotFound
	}
	ev.totalVotes += votes
	ev.ticketsSold += tickets
	ev.totalRevenue = ev.totalRevenue.Add(revenue)
	return nil
}

func (m *memoryRepo) IncrementOrganizerRevenue(ctx context.Context, organizerID uuid.UUID, revenue decimal.Decimal) error {
	defer m.lock()()
	if err := m.hook("IncrementOrganizerRevenue"); err != nil {
		return err
	}
	total, ok := m.state().organizers[organizerID]
	if !ok {
		return apperrors.ErrTargetNotFound
	}
	m.state().organizers[organizerID] = total.Add(revenue)
	return nil
}

func (m *memoryRepo) TallyEventVotes(ctx context.Context, eventID uuid.UUID) ([]models.CandidateTally, error) {
	defer m.lock()()
	if err := m.hook("TallyEventVotes"); err != nil {
		return nil, err
	}
	st := m.state()
	sums := map[uuid.UUID]int64{}
	for _, v := range st.votes {
		sums[v.CandidateID] += v.Quantity
	}

	tallies := []models.CandidateTally{}
	for id, cand := range st.candidates {
		if st.categories[cand.categoryID].eventID != eventID {
			continue
		}
		tallies = append(tallies, models.CandidateTally{
			CandidateID: id,
			CategoryID:  cand.categoryID,
			Name:        cand.name,
			Votes:       sums[id],
			Counter:     cand.voteCount,
		})
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].Votes != tallies[j].Votes {
			return tallies[i].Votes > tallies[j].Votes
		}
		return tallies[i].Name < tallies[j].Name
	})
	return tallies, nil
}

// addPending inserts a PENDING vote transaction directly
func (m *memoryRepo) addPending(kind models.TransactionKind, eventID, targetID uuid.UUID, qty int64, amount string, provider string, expiresAt time.Time) *models.Transaction {
	payload, err := models.NewPayload(kind, targetID, qty)
	if err != nil {
		panic(err)
	}
	tx := &models.Transaction{
		ID:              uuid.New(),
		Reference:       fmt.Sprintf("REF-%s", uuid.NewString()[:8]),
		Kind:            kind,
		EventID:         eventID,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "GHS",
		Status:          models.StatusPending,
		PaymentProvider: provider,
		Payload:         payload,
		CreatedAt:       expiresAt.Add(-time.Minute),
		UpdatedAt:       expiresAt.Add(-time.Minute),
		ExpiresAt:       &expiresAt,
	}
	if err := m.CreateTransaction(context.Background(), tx); err != nil {
		panic(err)
	}
	return tx
}
