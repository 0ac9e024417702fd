package application

import (
	"context"
	"sync"
	"time"

	"raffle/domain/testhelpers"
	"raffle/events"

	"github.com/stretchr/testify/mock"
)

// mockUnitOfWork wires testify repository mocks behind a factory that always
// hands out the same unit of work
type mockUnitOfWork struct {
	users     *testhelpers.MockUserRepository
	giveaways *testhelpers.MockGiveawayRepository
	orders    *testhelpers.MockOrderRepository
	tickets   *testhelpers.MockTicketAssignmentRepository
	credits   *testhelpers.MockCreditTransactionRepository
	recorder  *events.Recorder
	uow       *testhelpers.MockUnitOfWork
	factory   *testhelpers.MockUnitOfWorkFactory
}

func newMockUnitOfWork() *mockUnitOfWork {
	m := &mockUnitOfWork{
		users:     new(testhelpers.MockUserRepository),
		giveaways: new(testhelpers.MockGiveawayRepository),
		orders:    new(testhelpers.MockOrderRepository),
		tickets:   new(testhelpers.MockTicketAssignmentRepository),
		credits:   new(testhelpers.MockCreditTransactionRepository),
		recorder:  events.NewRecorder(),
		uow:       new(testhelpers.MockUnitOfWork),
		factory:   new(testhelpers.MockUnitOfWorkFactory),
	}
	m.uow.SetRepositories(m.users, m.giveaways, m.orders, m.tickets, m.credits, m.recorder)
	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Commit").Return(nil).Maybe()
	m.uow.On("Rollback").Return(nil)
	m.factory.On("Create").Return(m.uow)
	return m
}

// fakeDedup is an in-memory DedupCache that ignores ttl
type fakeDedup struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{keys: make(map[string]bool)}
}

func (f *fakeDedup) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeDedup) Release(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}

type fakeGateway struct {
	event *PaymentEvent
	err   error
	calls int
}

func (g *fakeGateway) FetchStatus(ctx context.Context, checkoutID string) (*PaymentEvent, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.event, nil
}
