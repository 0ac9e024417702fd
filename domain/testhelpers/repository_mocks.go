package testhelpers

import (
	"context"
	"time"

	"raffle/domain/entities"
	"raffle/domain/interfaces"
	"raffle/events"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, email string) (*entities.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) UpdateCredit(ctx context.Context, id int64, newCredit decimal.Decimal) error {
	args := m.Called(ctx, id, newCredit)
	return args.Error(0)
}

// MockGiveawayRepository is a mock implementation of GiveawayRepository
type MockGiveawayRepository struct {
	mock.Mock
}

func (m *MockGiveawayRepository) GetByID(ctx context.Context, id int64) (*entities.Giveaway, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Giveaway), args.Error(1)
}

func (m *MockGiveawayRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Giveaway, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Giveaway), args.Error(1)
}

func (m *MockGiveawayRepository) Create(ctx context.Context, giveaway *entities.Giveaway) error {
	args := m.Called(ctx, giveaway)
	return args.Error(0)
}

func (m *MockGiveawayRepository) GetDueForDraw(ctx context.Context, now time.Time) ([]*entities.Giveaway, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Giveaway), args.Error(1)
}

// MockOrderRepository is a mock implementation of OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *entities.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id int64) (*entities.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByCheckoutIDForUpdate(ctx context.Context, checkoutID string) (*entities.Order, error) {
	args := m.Called(ctx, checkoutID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id int64, status entities.OrderStatus, settledAt *time.Time) error {
	args := m.Called(ctx, id, status, settledAt)
	return args.Error(0)
}

func (m *MockOrderRepository) SetCheckoutID(ctx context.Context, id int64, checkoutID string) error {
	args := m.Called(ctx, id, checkoutID)
	return args.Error(0)
}

func (m *MockOrderRepository) GetStale(ctx context.Context, statuses []entities.OrderStatus, before time.Time, limit int) ([]*entities.Order, error) {
	args := m.Called(ctx, statuses, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Order), args.Error(1)
}

// MockTicketAssignmentRepository is a mock implementation of TicketAssignmentRepository
type MockTicketAssignmentRepository struct {
	mock.Mock
}

func (m *MockTicketAssignmentRepository) AssignedNumbers(ctx context.Context, giveawayID int64, scope entities.TicketScope, excludeOrderID *int64) ([]int, error) {
	args := m.Called(ctx, giveawayID, scope, excludeOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockTicketAssignmentRepository) ReservedCount(ctx context.Context, giveawayID int64, scope entities.TicketScope, excludeOrderID *int64) (int, error) {
	args := m.Called(ctx, giveawayID, scope, excludeOrderID)
	return args.Int(0), args.Error(1)
}

func (m *MockTicketAssignmentRepository) CountForUser(ctx context.Context, userID, giveawayID int64, scope entities.TicketScope, excludeOrderID *int64) (int, error) {
	args := m.Called(ctx, userID, giveawayID, scope, excludeOrderID)
	return args.Int(0), args.Error(1)
}

func (m *MockTicketAssignmentRepository) GetByOrder(ctx context.Context, orderID int64) ([]*entities.TicketAssignment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.TicketAssignment), args.Error(1)
}

func (m *MockTicketAssignmentRepository) GetByOrderAndGiveaway(ctx context.Context, orderID, giveawayID int64) (*entities.TicketAssignment, error) {
	args := m.Called(ctx, orderID, giveawayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TicketAssignment), args.Error(1)
}

func (m *MockTicketAssignmentRepository) Upsert(ctx context.Context, assignment *entities.TicketAssignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *MockTicketAssignmentRepository) DeleteByOrder(ctx context.Context, orderID int64) ([]*entities.TicketAssignment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.TicketAssignment), args.Error(1)
}

func (m *MockTicketAssignmentRepository) Delete(ctx context.Context, assignmentID int64) error {
	args := m.Called(ctx, assignmentID)
	return args.Error(0)
}

func (m *MockTicketAssignmentRepository) GetCompletedPool(ctx context.Context, giveawayID int64) ([]entities.TicketPoolEntry, error) {
	args := m.Called(ctx, giveawayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.TicketPoolEntry), args.Error(1)
}

func (m *MockTicketAssignmentRepository) HasWinners(ctx context.Context, giveawayID int64) (bool, error) {
	args := m.Called(ctx, giveawayID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTicketAssignmentRepository) MarkWinner(ctx context.Context, assignmentID int64, winningTicket int) error {
	args := m.Called(ctx, assignmentID, winningTicket)
	return args.Error(0)
}

// MockCreditTransactionRepository is a mock implementation of CreditTransactionRepository
type MockCreditTransactionRepository struct {
	mock.Mock
}

func (m *MockCreditTransactionRepository) Record(ctx context.Context, tx *entities.CreditTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockCreditTransactionRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.CreditTransaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.CreditTransaction), args.Error(1)
}

func (m *MockCreditTransactionRepository) FindByOrderAndKind(ctx context.Context, orderID int64, kind entities.CreditKind) (*entities.CreditTransaction, error) {
	args := m.Called(ctx, orderID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CreditTransaction), args.Error(1)
}

func (m *MockCreditTransactionRepository) SumForUser(ctx context.Context, userID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	userRepo     interfaces.UserRepository
	giveawayRepo interfaces.GiveawayRepository
	orderRepo    interfaces.OrderRepository
	ticketRepo   interfaces.TicketAssignmentRepository
	creditRepo   interfaces.CreditTransactionRepository
	bus          interfaces.EventPublisher
}

// SetRepositories wires the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(
	userRepo interfaces.UserRepository,
	giveawayRepo interfaces.GiveawayRepository,
	orderRepo interfaces.OrderRepository,
	ticketRepo interfaces.TicketAssignmentRepository,
	creditRepo interfaces.CreditTransactionRepository,
	bus interfaces.EventPublisher,
) {
	m.userRepo = userRepo
	m.giveawayRepo = giveawayRepo
	m.orderRepo = orderRepo
	m.ticketRepo = ticketRepo
	m.creditRepo = creditRepo
	m.bus = bus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() interfaces.UserRepository { return m.userRepo }

func (m *MockUnitOfWork) GiveawayRepository() interfaces.GiveawayRepository { return m.giveawayRepo }

func (m *MockUnitOfWork) OrderRepository() interfaces.OrderRepository { return m.orderRepo }

func (m *MockUnitOfWork) TicketAssignmentRepository() interfaces.TicketAssignmentRepository {
	return m.ticketRepo
}

func (m *MockUnitOfWork) CreditTransactionRepository() interfaces.CreditTransactionRepository {
	return m.creditRepo
}

func (m *MockUnitOfWork) EventBus() interfaces.EventPublisher {
	if m.bus == nil {
		m.bus = events.NewRecorder()
	}
	return m.bus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() interfaces.UnitOfWork {
	args := m.Called()
	return args.Get(0).(interfaces.UnitOfWork)
}
