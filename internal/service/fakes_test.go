package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coaching-core-api/internal/events"
	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/internal/payment"
	"github.com/noah-isme/coaching-core-api/internal/repository"
)

// fakeSlotRepo reserves under a mutex, mirroring the conditional UPDATE.
type fakeSlotRepo struct {
	mu       sync.Mutex
	slots    map[string]*models.TimeSlot
	listFrom time.Time
	listTo   time.Time
	listErr  error
}

func newFakeSlotRepo(slots ...models.TimeSlot) *fakeSlotRepo {
	repo := &fakeSlotRepo{slots: make(map[string]*models.TimeSlot)}
	for i := range slots {
		slot := slots[i]
		repo.slots[slot.ID] = &slot
	}
	return repo
}

func (f *fakeSlotRepo) ListAvailable(ctx context.Context, coachID string, from, to time.Time) ([]models.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFrom, f.listTo = from, to
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.TimeSlot
	for _, slot := range f.slots {
		if slot.CoachID != coachID || !slot.HasCapacity() {
			continue
		}
		// Slots without a date stay visible for tests that only check capacity.
		if !slot.SlotDate.IsZero() {
			start, err := slot.StartsAt(time.UTC)
			if err != nil || start.Before(from) || start.After(to) {
				continue
			}
		}
		out = append(out, *slot)
	}
	return out, nil
}

func (f *fakeSlotRepo) add(slot models.TimeSlot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[slot.ID] = &slot
}

func (f *fakeSlotRepo) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *slot
	return &copied, nil
}

func (f *fakeSlotRepo) Reserve(ctx context.Context, exec sqlx.ExtContext, id string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[id]
	if !ok {
		return sql.ErrNoRows
	}
	if !slot.HasCapacity() {
		return repository.ErrNoCapacity
	}
	slot.CurrentBookings++
	return nil
}

func (f *fakeSlotRepo) Release(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[id]
	if !ok || slot.CurrentBookings == 0 {
		return repository.ErrNotReserved
	}
	slot.CurrentBookings--
	return nil
}

func (f *fakeSlotRepo) bookings(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots[id].CurrentBookings
}

type memorySessions struct {
	mu   sync.Mutex
	data map[string]models.WorkflowSession
}

func newMemorySessions() *memorySessions {
	return &memorySessions{data: make(map[string]models.WorkflowSession)}
}

func (m *memorySessions) Get(ctx context.Context, userID string) (*models.WorkflowSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.data[userID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &session, nil
}

func (m *memorySessions) Save(ctx context.Context, session *models.WorkflowSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[session.UserID] = *session
	return nil
}

func (m *memorySessions) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, userID)
	return nil
}

type fakeCourses map[string]models.Course

func (f fakeCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := f[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &course, nil
}

type fakeCoachRepo struct {
	coaches   []models.Coach
	listCalls int
}

func (f *fakeCoachRepo) List(ctx context.Context, filter models.CoachFilter) ([]models.Coach, error) {
	f.listCalls++
	var out []models.Coach
	for _, coach := range f.coaches {
		if filter.ActiveOnly && !coach.Active {
			continue
		}
		if len(filter.Specialties) > 0 && !coach.MatchesAny(filter.Specialties) {
			continue
		}
		out = append(out, coach)
	}
	return out, nil
}

func (f *fakeCoachRepo) FindByID(ctx context.Context, id string) (*models.Coach, error) {
	for _, coach := range f.coaches {
		if coach.ID == id {
			c := coach
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

// fakeEnrollments reserves through the shared slot repo so capacity is
// enforced exactly as in the combined transaction.
type fakeEnrollments struct {
	mu      sync.Mutex
	slots   *fakeSlotRepo
	created []models.Enrollment
	err     error
}

func (f *fakeEnrollments) CreateWithReservation(ctx context.Context, enrollment *models.Enrollment, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if enrollment.PaymentOrderRef != nil {
		for _, existing := range f.created {
			if existing.PaymentOrderRef != nil && *existing.PaymentOrderRef == *enrollment.PaymentOrderRef {
				return fmt.Errorf("create enrollment: %w", repository.ErrDuplicate)
			}
		}
	}
	if err := f.slots.Reserve(ctx, nil, enrollment.SlotID, now); err != nil {
		return err
	}
	enrollment.ID = fmt.Sprintf("enr-%d", len(f.created)+1)
	enrollment.CreatedAt = now
	f.created = append(f.created, *enrollment)
	return nil
}

func (f *fakeEnrollments) FindByPaymentOrderRef(ctx context.Context, orderRef string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.created {
		if existing.PaymentOrderRef != nil && *existing.PaymentOrderRef == orderRef {
			e := existing
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollments) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]*models.PaymentOrder
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[string]*models.PaymentOrder)}
}

func (f *fakeOrders) Create(ctx context.Context, order *models.PaymentOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *order
	f.orders[order.OrderRef] = &copied
	return nil
}

func (f *fakeOrders) AttachGatewayOrder(ctx context.Context, orderRef, gatewayOrderID string, checkoutURL *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderRef]
	if !ok {
		return sql.ErrNoRows
	}
	order.GatewayOrderID = &gatewayOrderID
	order.CheckoutURL = checkoutURL
	return nil
}

func (f *fakeOrders) FindByRef(ctx context.Context, orderRef string) (*models.PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderRef]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrders) Transition(ctx context.Context, orderRef string, from, to models.PaymentOrderStatus, reason *string) (*models.PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderRef]
	if !ok || order.Status != from {
		return nil, repository.ErrStaleStatus
	}
	order.Status = to
	order.FailureReason = reason
	copied := *order
	return &copied, nil
}

func (f *fakeOrders) ExpireStale(ctx context.Context, now time.Time) ([]models.PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []models.PaymentOrder
	for _, order := range f.orders {
		if order.Status == models.PaymentOrderCreated && !now.Before(order.ExpiresAt) {
			order.Status = models.PaymentOrderExpired
			expired = append(expired, *order)
		}
	}
	return expired, nil
}

func (f *fakeOrders) status(orderRef string) models.PaymentOrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[orderRef].Status
}

type fakeGateway struct {
	calls int
	err   error
}

func (f *fakeGateway) CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &payment.Order{
		Reference:      req.Reference,
		GatewayOrderID: "gw-" + req.Reference,
		CheckoutURL:    "https://pay.test/checkout/" + req.Reference,
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
