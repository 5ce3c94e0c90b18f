package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"stock_watcher/internal/adapter"
	"stock_watcher/internal/config"
	"stock_watcher/internal/domain"
	"stock_watcher/internal/service/mocks"
)

type stubAdapter struct {
	available domain.SkuSet
	err       error
	wanted    domain.SkuSet
}

func (a *stubAdapter) Kind() adapter.Kind { return adapter.KindZara }

func (a *stubAdapter) Fetch(_ context.Context, _ string, wanted domain.SkuSet) (domain.SkuSet, error) {
	a.wanted = wanted
	return a.available, a.err
}

// waitingAdapter holds Fetch open until ctx ends. With respond set it then
// answers as if the payload arrived at the deadline.
type waitingAdapter struct {
	available domain.SkuSet
	respond   bool
}

func (a *waitingAdapter) Kind() adapter.Kind { return adapter.KindZara }

func (a *waitingAdapter) Fetch(ctx context.Context, _ string, _ domain.SkuSet) (domain.SkuSet, error) {
	<-ctx.Done()
	if a.respond {
		return a.available, nil
	}
	return nil, fmt.Errorf("%w: execute request: %w", domain.ErrFetch, ctx.Err())
}

type ScrapeServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	products      *mocks.MockProductStore
	skus          *mocks.MockSkuStore
	tokens        *mocks.MockTokenIssuer
	executions    *mocks.MockExecutionStore
	notifications *mocks.MockNotificationStore
	adapters      *mocks.MockAdapterResolver
	dispatcher    *mocks.MockDispatcher
	publisher     *mocks.MockPublisher
	locker        *mocks.MockLocker
	txManager     *mocks.MockTransactionManager

	service  *ScrapeService
	now      time.Time
	released bool
}

func (s *ScrapeServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.products = mocks.NewMockProductStore(s.ctrl)
	s.skus = mocks.NewMockSkuStore(s.ctrl)
	s.tokens = mocks.NewMockTokenIssuer(s.ctrl)
	s.executions = mocks.NewMockExecutionStore(s.ctrl)
	s.notifications = mocks.NewMockNotificationStore(s.ctrl)
	s.adapters = mocks.NewMockAdapterResolver(s.ctrl)
	s.dispatcher = mocks.NewMockDispatcher(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.locker = mocks.NewMockLocker(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.service = NewScrapeService(
		s.products,
		s.skus,
		s.tokens,
		s.executions,
		s.notifications,
		s.adapters,
		s.dispatcher,
		s.publisher,
		s.locker,
		s.txManager,
		logger,
		config.ScrapeConfig{FetchTimeout: time.Second, RunTimeout: 5 * time.Second},
	)

	s.now = time.Date(2026, 1, 11, 12, 0, 0, 0, time.UTC)
	s.service.now = func() time.Time { return s.now }
	s.released = false
}

func (s *ScrapeServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestScrapeServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ScrapeServiceTestSuite))
}

func (s *ScrapeServiceTestSuite) expectLock(productID int64) {
	s.locker.EXPECT().TryLock(gomock.Any(), productID).Return(func() { s.released = true }, true, nil)
}

func (s *ScrapeServiceTestSuite) expectTransaction() {
	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
}

func (s *ScrapeServiceTestSuite) expectIssue(sku *domain.ProductSku) {
	s.tokens.EXPECT().Issue(gomock.Any(), sku, s.now).Return(&domain.ReactivationToken{
		ID:           sku.ID * 10,
		ProductSkuID: sku.ID,
		Token:        fmt.Sprintf("tok-%d", sku.Sku),
		ReEnableURL:  fmt.Sprintf("https://watch.example.com/productsku/tok-%d/reactivate", sku.Sku),
		ValidTo:      s.now.Add(30 * time.Minute),
	}, nil)
}

func (s *ScrapeServiceTestSuite) captureExecution() *domain.ExecutionRecord {
	rec := &domain.ExecutionRecord{}
	s.executions.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r *domain.ExecutionRecord) (int64, error) {
			*rec = *r
			return 1, nil
		},
	)
	return rec
}

func product(skus ...int64) *domain.Product {
	p := &domain.Product{
		ID:              1,
		Name:            "Linen shirt",
		Adapter:         "zara",
		AvailabilityURL: "https://store.example.com/availability",
		ProductPageURL:  "https://store.example.com/p/1",
		IsEnabled:       true,
	}
	for _, code := range skus {
		p.Skus = append(p.Skus, domain.ProductSku{ID: code - 90, ProductID: 1, Sku: code, Name: fmt.Sprintf("Size %d", code)})
	}
	return p
}

func (s *ScrapeServiceTestSuite) TestRun_SuppressesAndNotifiesFoundSkus() {
	p := product(101, 102, 103)
	stub := &stubAdapter{available: domain.NewSkuSet(101, 103)}

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	s.adapters.EXPECT().Resolve("zara").Return(stub, nil)

	s.expectTransaction()
	s.skus.EXPECT().Suppress(gomock.Any(), int64(11), s.now).Return(nil)
	s.expectIssue(&p.Skus[0])
	s.skus.EXPECT().Suppress(gomock.Any(), int64(13), s.now).Return(nil)
	s.expectIssue(&p.Skus[2])

	s.dispatcher.EXPECT().Notify(gomock.Any(), p, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ *domain.Product, items []domain.NotifyItem) *domain.DispatchResult {
			s.Require().Len(items, 2)
			s.Equal(int64(101), items[0].Sku)
			s.Equal(int64(103), items[1].Sku)
			s.Equal("https://watch.example.com/productsku/tok-101/reactivate", items[0].ReactivationURL)
			return &domain.DispatchResult{EmailBody: "email", ChatBody: "chat", EmailSent: true, ChatSent: true}
		},
	)

	s.notifications.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r *domain.NotificationRecord) (int64, error) {
			s.Equal([]int64{11, 13}, r.ProductSkuIDs)
			s.Equal(p.ProductPageURL, r.ProductPageURL)
			s.True(r.EmailSent)
			s.True(r.ChatSent)
			s.Equal("email", *r.EmailBody)
			s.Equal("chat", *r.ChatBody)
			return 500, nil
		},
	)

	s.publisher.EXPECT().PublishAvailability(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e *domain.AvailabilityEvent) error {
			s.Equal([]int64{101, 103}, e.Skus)
			s.Equal(int64(500), *e.NotificationID)
			return nil
		},
	)

	rec := s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal(domain.ExecutionSucceeded, outcome.Status)
	s.True(outcome.Success)
	s.Equal(2, outcome.Found)
	s.Equal(domain.NewSkuSet(101, 102, 103), stub.wanted)

	s.True(rec.Success)
	s.False(rec.Skipped)
	s.Nil(rec.ErrorMessage)
	s.Equal([]int64{11, 13}, rec.ProductSkuIDs)
	s.Equal(int64(500), *rec.NotificationID)
	s.Equal(s.now, rec.ExecutedAt)
	s.True(s.released)
}

func (s *ScrapeServiceTestSuite) TestRun_SuppressedSkusAreNotRequestedAgain() {
	// Only 102 is left active after a previous run suppressed 101 and 103.
	p := product(102)
	stub := &stubAdapter{available: domain.NewSkuSet()}

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	s.adapters.EXPECT().Resolve("zara").Return(stub, nil)
	rec := s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal(domain.ExecutionSucceeded, outcome.Status)
	s.Equal(0, outcome.Found)
	s.Equal(domain.NewSkuSet(102), stub.wanted)
	s.True(rec.Success)
	s.Empty(rec.ProductSkuIDs)
	s.Nil(rec.NotificationID)
}

func (s *ScrapeServiceTestSuite) TestRun_RefiltersAdapterResult() {
	p := product(101)
	stub := &stubAdapter{available: domain.NewSkuSet(101, 999)}

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	s.adapters.EXPECT().Resolve("zara").Return(stub, nil)
	s.expectTransaction()
	s.skus.EXPECT().Suppress(gomock.Any(), int64(11), s.now).Return(nil)
	s.expectIssue(&p.Skus[0])
	s.dispatcher.EXPECT().Notify(gomock.Any(), p, gomock.Len(1)).
		Return(&domain.DispatchResult{EmailSent: true})
	s.notifications.EXPECT().Create(gomock.Any(), gomock.Any()).Return(int64(7), nil)
	s.publisher.EXPECT().PublishAvailability(gomock.Any(), gomock.Any()).Return(nil)
	s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal(1, outcome.Found)
}

func (s *ScrapeServiceTestSuite) TestRun_NoActiveSkusIsSkipped() {
	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(product(), nil)
	rec := s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal(domain.ExecutionSkipped, outcome.Status)
	s.True(outcome.Success)
	s.Equal("There are no active SKUs to check", outcome.Message)
	s.True(rec.Success)
	s.True(rec.Skipped)
	s.Equal("There are no active SKUs to check", *rec.ErrorMessage)
}

func (s *ScrapeServiceTestSuite) TestRun_DisabledProductIsSkipped() {
	p := product(101)
	p.IsEnabled = false

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	rec := s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal(domain.ExecutionSkipped, outcome.Status)
	s.Equal("Product is disabled", outcome.Message)
	s.True(rec.Skipped)
}

func (s *ScrapeServiceTestSuite) TestRun_ArchivedProductIsSkipped() {
	p := product(101)
	archived := s.now.Add(-time.Hour)
	p.ArchivedAt = &archived

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal("Product is archived", outcome.Message)
}

func (s *ScrapeServiceTestSuite) TestRun_MissingProductWritesNoRecord() {
	s.expectLock(42)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(42)).
		Return(nil, fmt.Errorf("product 42: %w", domain.ErrNotFound))

	outcome, err := s.service.Run(context.Background(), 42)

	s.Require().NoError(err)
	s.Equal(domain.ExecutionFailed, outcome.Status)
	s.False(outcome.Success)
	s.Equal("Product not found", outcome.Message)
	s.True(s.released)
}

func (s *ScrapeServiceTestSuite) TestRun_UnknownAdapterFails() {
	p := product(101)
	p.Adapter = "shein"

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	s.adapters.EXPECT().Resolve("shein").Return(nil, fmt.Errorf("%w: unknown adapter", domain.ErrConfig))
	rec := s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal(domain.ExecutionFailed, outcome.Status)
	s.Equal("Unknown adapter: shein", outcome.Message)
	s.False(rec.Success)
	s.False(rec.Skipped)
}

func (s *ScrapeServiceTestSuite) TestRun_FetchErrorFailsWithoutSuppression() {
	p := product(101)
	stub := &stubAdapter{err: fmt.Errorf("%w: status 503", domain.ErrFetch)}

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	s.adapters.EXPECT().Resolve("zara").Return(stub, nil)
	rec := s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal(domain.ExecutionFailed, outcome.Status)
	s.Contains(outcome.Message, "Fetch failed:")
	s.Contains(*rec.ErrorMessage, "status 503")
}

func (s *ScrapeServiceTestSuite) TestRun_FetchTimeoutFails() {
	s.service.config.FetchTimeout = 50 * time.Millisecond

	p := product(101, 102)

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	s.adapters.EXPECT().Resolve("zara").Return(&waitingAdapter{}, nil)
	s.skus.EXPECT().Suppress(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	rec := s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal(domain.ExecutionFailed, outcome.Status)
	s.Contains(outcome.Message, "Fetch failed:")
	s.Contains(outcome.Message, context.DeadlineExceeded.Error())
	s.False(rec.Success)
	s.Empty(rec.ProductSkuIDs)
	s.True(s.released)
}

func (s *ScrapeServiceTestSuite) TestRun_DeadlineBeforeSuppressionCommit() {
	s.service.config.RunTimeout = 50 * time.Millisecond

	p := product(101)
	stub := &waitingAdapter{available: domain.NewSkuSet(101), respond: true}

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	s.adapters.EXPECT().Resolve("zara").Return(stub, nil)
	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("begin transaction: %w", err)
			}
			return fn(ctx)
		},
	)
	s.skus.EXPECT().Suppress(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	s.tokens.EXPECT().Issue(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	s.dispatcher.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	var recordCtxErr error
	rec := &domain.ExecutionRecord{}
	s.executions.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, r *domain.ExecutionRecord) (int64, error) {
			recordCtxErr = ctx.Err()
			*rec = *r
			return 1, nil
		},
	)

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal(domain.ExecutionFailed, outcome.Status)
	s.Contains(outcome.Message, "Suppression failed")
	s.Contains(outcome.Message, context.DeadlineExceeded.Error())
	s.NoError(recordCtxErr, "the record is written on a live context")
	s.False(rec.Success)
	s.Empty(rec.ProductSkuIDs)
	s.Nil(rec.NotificationID)
}

func (s *ScrapeServiceTestSuite) TestRun_ParseErrorFails() {
	p := product(101)
	stub := &stubAdapter{err: fmt.Errorf("%w: unexpected token", domain.ErrParse)}

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	s.adapters.EXPECT().Resolve("zara").Return(stub, nil)
	s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Contains(outcome.Message, "Parse failed:")
}

func (s *ScrapeServiceTestSuite) TestRun_NotifyFailureKeepsSuppression() {
	p := product(101)
	stub := &stubAdapter{available: domain.NewSkuSet(101)}

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	s.adapters.EXPECT().Resolve("zara").Return(stub, nil)
	s.expectTransaction()
	s.skus.EXPECT().Suppress(gomock.Any(), int64(11), s.now).Return(nil)
	s.expectIssue(&p.Skus[0])
	s.dispatcher.EXPECT().Notify(gomock.Any(), p, gomock.Any()).Return(&domain.DispatchResult{
		EmailBody: "email",
		ChatBody:  "chat",
		EmailErr:  domain.ErrDispatch,
		ChatErr:   domain.ErrDispatch,
	})
	s.publisher.EXPECT().PublishAvailability(gomock.Any(), gomock.Any()).Return(nil)
	rec := s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal(domain.ExecutionSucceeded, outcome.Status)
	s.Equal(1, outcome.Found)
	s.Nil(rec.NotificationID)
	s.Equal([]int64{11}, rec.ProductSkuIDs)
}

func (s *ScrapeServiceTestSuite) TestRun_SuppressionErrorSkipsNotify() {
	p := product(101)
	stub := &stubAdapter{available: domain.NewSkuSet(101)}

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	s.adapters.EXPECT().Resolve("zara").Return(stub, nil)
	s.expectTransaction()
	s.skus.EXPECT().Suppress(gomock.Any(), int64(11), s.now).Return(errors.New("deadlock detected"))
	rec := s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal(domain.ExecutionFailed, outcome.Status)
	s.Contains(outcome.Message, "Suppression failed")
	s.Empty(rec.ProductSkuIDs)
}

func (s *ScrapeServiceTestSuite) TestRun_PublishErrorIsIgnored() {
	p := product(101)
	stub := &stubAdapter{available: domain.NewSkuSet(101)}

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	s.adapters.EXPECT().Resolve("zara").Return(stub, nil)
	s.expectTransaction()
	s.skus.EXPECT().Suppress(gomock.Any(), int64(11), s.now).Return(nil)
	s.expectIssue(&p.Skus[0])
	s.dispatcher.EXPECT().Notify(gomock.Any(), p, gomock.Any()).Return(&domain.DispatchResult{ChatSent: true})
	s.notifications.EXPECT().Create(gomock.Any(), gomock.Any()).Return(int64(3), nil)
	s.publisher.EXPECT().PublishAvailability(gomock.Any(), gomock.Any()).Return(errors.New("channel closed"))
	s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.True(outcome.Success)
}

func (s *ScrapeServiceTestSuite) TestRun_LeaseHeldElsewhereIsSkipped() {
	s.locker.EXPECT().TryLock(gomock.Any(), int64(1)).Return(nil, false, nil)

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal(domain.ExecutionSkipped, outcome.Status)
	s.Equal("already running", outcome.Message)
}

func (s *ScrapeServiceTestSuite) TestRun_LockError() {
	s.locker.EXPECT().TryLock(gomock.Any(), int64(1)).Return(nil, false, errors.New("too many connections"))

	_, err := s.service.Run(context.Background(), 1)

	s.ErrorContains(err, "lock product 1")
}

func (s *ScrapeServiceTestSuite) TestRun_RecordErrorIsReturned() {
	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(product(), nil)
	s.executions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("disk full"))

	outcome, err := s.service.Run(context.Background(), 1)

	s.ErrorContains(err, "record execution")
	s.Equal(domain.ExecutionSkipped, outcome.Status)
}

func (s *ScrapeServiceTestSuite) TestRun_WithoutPublisher() {
	s.service.publisher = nil

	p := product(101)
	stub := &stubAdapter{available: domain.NewSkuSet(101)}

	s.expectLock(1)
	s.products.EXPECT().GetWithActiveSkus(gomock.Any(), int64(1)).Return(p, nil)
	s.adapters.EXPECT().Resolve("zara").Return(stub, nil)
	s.expectTransaction()
	s.skus.EXPECT().Suppress(gomock.Any(), int64(11), s.now).Return(nil)
	s.expectIssue(&p.Skus[0])
	s.dispatcher.EXPECT().Notify(gomock.Any(), p, gomock.Any()).Return(&domain.DispatchResult{EmailSent: true})
	s.notifications.EXPECT().Create(gomock.Any(), gomock.Any()).Return(int64(3), nil)
	s.captureExecution()

	outcome, err := s.service.Run(context.Background(), 1)

	s.Require().NoError(err)
	s.Equal(1, outcome.Found)
}
