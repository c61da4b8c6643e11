package dispatch_test

import (
	"context"
	"testing"
	"time"

	"NotifyRelay/internal/dispatch"
	"NotifyRelay/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockRepository мок для NotificationRepository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, n domain.CreateParams) (*domain.Notification, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Notification, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, id uuid.UUID, opts ...domain.UpdateOption) error {
	args := m.Called(ctx, id, opts)
	return args.Error(0)
}

func (m *MockRepository) ClaimForDispatch(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockRepository) IncRetryCount(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ListStuckBefore(ctx context.Context, t time.Time, limit int) ([]domain.Notification, error) {
	args := m.Called(ctx, t, limit)
	return args.Get(0).([]domain.Notification), args.Error(1)
}

// MockAttempts мок для AttemptRepository
type MockAttempts struct {
	mock.Mock
}

func (m *MockAttempts) Append(ctx context.Context, a *domain.DeliveryAttempt) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAttempts) ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]domain.DeliveryAttempt, error) {
	args := m.Called(ctx, notificationID)
	return args.Get(0).([]domain.DeliveryAttempt), args.Error(1)
}

// MockRedis мок для RedisRepository
type MockRedis struct {
	mock.Mock
}

func (m *MockRedis) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockRedis) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockRedis) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// stubAdapter адаптер с фиксированным результатом, пишет вызовы в общий журнал
type stubAdapter struct {
	name   domain.Channel
	result domain.DeliveryResult
	calls  *[]string
}

func (a *stubAdapter) Name() domain.Channel {
	return a.name
}

func (a *stubAdapter) Send(_ context.Context, _ *domain.Notification) domain.DeliveryResult {
	*a.calls = append(*a.calls, a.name.String())
	return a.result
}

func newNotification(channels ...domain.Channel) *domain.Notification {
	return &domain.Notification{
		ID:       uuid.New(),
		OwnerID:  "user-1",
		Subject:  "Test",
		Body:     "hello",
		Channels: channels,
		Status:   domain.StatusPending,
	}
}

// TestDispatch_FirstChannelSucceeds проверяет остановку на первом успешном канале
func TestDispatch_FirstChannelSucceeds(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	attempts := new(MockAttempts)

	calls := []string{}
	email := &stubAdapter{name: domain.ChannelEmail, calls: &calls,
		result: domain.DeliveryResult{Success: true, Details: map[string]interface{}{"provider": "smtp"}}}
	sms := &stubAdapter{name: domain.ChannelSMS, calls: &calls,
		result: domain.DeliveryResult{Success: true}}

	n := newNotification(domain.ChannelEmail, domain.ChannelSMS)

	repo.On("ClaimForDispatch", ctx, n.ID).Return(n, nil)
	attempts.On("Append", ctx, mock.MatchedBy(func(a *domain.DeliveryAttempt) bool {
		return a.Channel == domain.ChannelEmail && a.Outcome == domain.OutcomeSuccess
	})).Return(nil).Once()
	repo.On("Update", ctx, n.ID, mock.Anything).Return(nil).Once()

	d := dispatch.NewDispatcher(repo, attempts, nil, nil, time.Second, email, sms)

	sent, err := d.Dispatch(ctx, n)

	assert.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, []string{"email"}, calls)
	assert.Equal(t, domain.StatusSent, n.Status)

	repo.AssertExpectations(t)
	attempts.AssertExpectations(t)
}

// TestDispatch_FallbackToNextChannel проверяет переход к следующему каналу после неудачи
func TestDispatch_FallbackToNextChannel(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	attempts := new(MockAttempts)

	calls := []string{}
	email := &stubAdapter{name: domain.ChannelEmail, calls: &calls,
		result: domain.FailedResult("smtp: connection refused")}
	sms := &stubAdapter{name: domain.ChannelSMS, calls: &calls,
		result: domain.DeliveryResult{Success: true, Details: map[string]interface{}{"provider": "sms-gateway"}}}

	n := newNotification(domain.ChannelEmail, domain.ChannelSMS)

	repo.On("ClaimForDispatch", ctx, n.ID).Return(n, nil)
	attempts.On("Append", ctx, mock.MatchedBy(func(a *domain.DeliveryAttempt) bool {
		return a.Channel == domain.ChannelEmail && a.Outcome == domain.OutcomeFailed
	})).Return(nil).Once()
	attempts.On("Append", ctx, mock.MatchedBy(func(a *domain.DeliveryAttempt) bool {
		return a.Channel == domain.ChannelSMS && a.Outcome == domain.OutcomeSuccess
	})).Return(nil).Once()
	repo.On("Update", ctx, n.ID, mock.Anything).Return(nil).Once()

	d := dispatch.NewDispatcher(repo, attempts, nil, nil, time.Second, email, sms)

	sent, err := d.Dispatch(ctx, n)

	assert.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, []string{"email", "sms"}, calls)
	assert.Equal(t, domain.StatusSent, n.Status)

	repo.AssertExpectations(t)
	attempts.AssertExpectations(t)
}

// TestDispatch_AllChannelsFail проверяет статус failed после исчерпания всех каналов
func TestDispatch_AllChannelsFail(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	attempts := new(MockAttempts)

	calls := []string{}
	email := &stubAdapter{name: domain.ChannelEmail, calls: &calls,
		result: domain.FailedResult("smtp: timeout")}
	sms := &stubAdapter{name: domain.ChannelSMS, calls: &calls,
		result: domain.FailedResult("provider returned status 500")}
	tg := &stubAdapter{name: domain.ChannelTelegram, calls: &calls,
		result: domain.FailedResult("Telegram token or chat_id missing")}

	n := newNotification(domain.ChannelEmail, domain.ChannelSMS, domain.ChannelTelegram)

	repo.On("ClaimForDispatch", ctx, n.ID).Return(n, nil)
	attempts.On("Append", ctx, mock.MatchedBy(func(a *domain.DeliveryAttempt) bool {
		return a.Outcome == domain.OutcomeFailed
	})).Return(nil).Times(3)
	repo.On("Update", ctx, n.ID, mock.Anything).Return(nil).Once()

	d := dispatch.NewDispatcher(repo, attempts, nil, nil, time.Second, email, sms, tg)

	sent, err := d.Dispatch(ctx, n)

	assert.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, []string{"email", "sms", "telegram"}, calls)
	assert.Equal(t, domain.StatusFailed, n.Status)

	repo.AssertExpectations(t)
	attempts.AssertExpectations(t)
}

// TestDispatch_NoResolvableChannels проверяет, что без каналов уведомление
// переводится в failed без единой попытки доставки
func TestDispatch_NoResolvableChannels(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	attempts := new(MockAttempts)

	n := newNotification()
	repo.On("Update", ctx, n.ID, mock.Anything).Return(nil).Once()

	d := dispatch.NewDispatcher(repo, attempts, nil, nil, time.Second)

	sent, err := d.Dispatch(ctx, n)

	assert.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, domain.StatusFailed, n.Status)

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "ClaimForDispatch", mock.Anything, mock.Anything)
	attempts.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

// TestDispatch_UnregisteredChannelSkipped проверяет отбрасывание каналов без адаптера
func TestDispatch_UnregisteredChannelSkipped(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	attempts := new(MockAttempts)

	calls := []string{}
	sms := &stubAdapter{name: domain.ChannelSMS, calls: &calls,
		result: domain.DeliveryResult{Success: true}}

	n := newNotification(domain.ChannelTelegram, domain.ChannelSMS)

	repo.On("ClaimForDispatch", ctx, n.ID).Return(n, nil)
	attempts.On("Append", ctx, mock.Anything).Return(nil).Once()
	repo.On("Update", ctx, n.ID, mock.Anything).Return(nil).Once()

	d := dispatch.NewDispatcher(repo, attempts, nil, nil, time.Second, sms)

	sent, err := d.Dispatch(ctx, n)

	assert.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, []string{"sms"}, calls)

	repo.AssertExpectations(t)
	attempts.AssertExpectations(t)
}

// TestDispatch_OverridePriority проверяет, что явный порядок каналов
// перекрывает список уведомления
func TestDispatch_OverridePriority(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	attempts := new(MockAttempts)

	calls := []string{}
	email := &stubAdapter{name: domain.ChannelEmail, calls: &calls,
		result: domain.DeliveryResult{Success: true}}
	sms := &stubAdapter{name: domain.ChannelSMS, calls: &calls,
		result: domain.DeliveryResult{Success: true}}

	n := newNotification(domain.ChannelEmail, domain.ChannelSMS)

	repo.On("ClaimForDispatch", ctx, n.ID).Return(n, nil)
	attempts.On("Append", ctx, mock.MatchedBy(func(a *domain.DeliveryAttempt) bool {
		return a.Channel == domain.ChannelSMS
	})).Return(nil).Once()
	repo.On("Update", ctx, n.ID, mock.Anything).Return(nil).Once()

	d := dispatch.NewDispatcher(repo, attempts, nil, nil, time.Second, email, sms)

	sent, err := d.Dispatch(ctx, n, domain.ChannelSMS)

	assert.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, []string{"sms"}, calls)

	repo.AssertExpectations(t)
	attempts.AssertExpectations(t)
}

// TestDispatch_DefaultPriority проверяет порядок по умолчанию при пустом списке каналов
func TestDispatch_DefaultPriority(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	attempts := new(MockAttempts)

	calls := []string{}
	email := &stubAdapter{name: domain.ChannelEmail, calls: &calls,
		result: domain.FailedResult("smtp: timeout")}
	sms := &stubAdapter{name: domain.ChannelSMS, calls: &calls,
		result: domain.DeliveryResult{Success: true}}

	n := newNotification()

	repo.On("ClaimForDispatch", ctx, n.ID).Return(n, nil)
	attempts.On("Append", ctx, mock.Anything).Return(nil).Times(2)
	repo.On("Update", ctx, n.ID, mock.Anything).Return(nil).Once()

	defaultPriority := []domain.Channel{domain.ChannelEmail, domain.ChannelSMS}
	d := dispatch.NewDispatcher(repo, attempts, nil, defaultPriority, time.Second, email, sms)

	sent, err := d.Dispatch(ctx, n)

	assert.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, []string{"email", "sms"}, calls)

	repo.AssertExpectations(t)
	attempts.AssertExpectations(t)
}

// TestDispatch_ConcurrentClaim проверяет защиту от параллельной отправки
func TestDispatch_ConcurrentClaim(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	attempts := new(MockAttempts)

	calls := []string{}
	email := &stubAdapter{name: domain.ChannelEmail, calls: &calls,
		result: domain.DeliveryResult{Success: true}}

	n := newNotification(domain.ChannelEmail)
	repo.On("ClaimForDispatch", ctx, n.ID).Return(nil, domain.ErrDispatchInProgress)

	d := dispatch.NewDispatcher(repo, attempts, nil, nil, time.Second, email)

	sent, err := d.Dispatch(ctx, n)

	assert.ErrorIs(t, err, domain.ErrDispatchInProgress)
	assert.False(t, sent)
	assert.Empty(t, calls)

	repo.AssertExpectations(t)
	attempts.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

// TestDispatch_AlreadySent проверяет отказ от повторной отправки доставленного уведомления
func TestDispatch_AlreadySent(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	attempts := new(MockAttempts)

	calls := []string{}
	email := &stubAdapter{name: domain.ChannelEmail, calls: &calls,
		result: domain.DeliveryResult{Success: true}}

	n := newNotification(domain.ChannelEmail)
	repo.On("ClaimForDispatch", ctx, n.ID).Return(nil, domain.ErrAlreadySent)

	d := dispatch.NewDispatcher(repo, attempts, nil, nil, time.Second, email)

	sent, err := d.Dispatch(ctx, n)

	assert.ErrorIs(t, err, domain.ErrAlreadySent)
	assert.False(t, sent)
	assert.Empty(t, calls)

	repo.AssertExpectations(t)
}

// TestDispatch_AppendError проверяет, что ошибка журнала попыток прерывает отправку
func TestDispatch_AppendError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	attempts := new(MockAttempts)

	calls := []string{}
	email := &stubAdapter{name: domain.ChannelEmail, calls: &calls,
		result: domain.DeliveryResult{Success: true}}

	n := newNotification(domain.ChannelEmail)

	repo.On("ClaimForDispatch", ctx, n.ID).Return(n, nil)
	attempts.On("Append", ctx, mock.Anything).Return(assert.AnError)

	d := dispatch.NewDispatcher(repo, attempts, nil, nil, time.Second, email)

	sent, err := d.Dispatch(ctx, n)

	assert.Error(t, err)
	assert.False(t, sent)

	repo.AssertExpectations(t)
	attempts.AssertExpectations(t)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

// TestDispatch_CacheInvalidated проверяет сброс кеша после захвата и после записи статуса
func TestDispatch_CacheInvalidated(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	attempts := new(MockAttempts)
	cache := new(MockRedis)

	calls := []string{}
	email := &stubAdapter{name: domain.ChannelEmail, calls: &calls,
		result: domain.DeliveryResult{Success: true}}

	n := newNotification(domain.ChannelEmail)

	repo.On("ClaimForDispatch", ctx, n.ID).Return(n, nil)
	attempts.On("Append", ctx, mock.Anything).Return(nil).Once()
	repo.On("Update", ctx, n.ID, mock.Anything).Return(nil).Once()
	cache.On("Delete", ctx, domain.CacheKey(n.ID)).Return(nil).Times(2)

	d := dispatch.NewDispatcher(repo, attempts, cache, nil, time.Second, email)

	sent, err := d.Dispatch(ctx, n)

	assert.NoError(t, err)
	assert.True(t, sent)

	cache.AssertExpectations(t)
}
