package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerStub(t *testing.T, kind types.PaymentKind, bank types.BankType, ch banks.Channel) {
	t.Helper()
	banks.Register(kind, bank, func(cfg *config.PaymentsConfig) (banks.Channel, error) {
		return ch, nil
	})
	require.NoError(t, banks.Init(&config.PaymentsConfig{}))
}

func TestSweepPending(t *testing.T) {
	db := setupDB(t)
	method := models.PaymentMethod{PaymentKind: types.PaymentKindCard, BankType: types.BankUFC, IsActive: true}
	require.NoError(t, db.Create(&method).Error)

	newTrx := func(trx string) *models.Transaction {
		out := &models.Transaction{
			UserID: 1, Trx: trx, Amount: 1000, Status: types.StatusPending,
			Kind: types.KindPay, PaymentMethodID: method.ID,
		}
		require.NoError(t, db.Create(out).Error)
		return out
	}
	recent := newTrx("R-recent")
	stale := newTrx("R-stale")
	noRef := newTrx("")
	require.NoError(t, db.Model(stale).Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	ch := &stubChannel{name: "ufc", uniqueKey: "RESULT",
		payload: banks.Payload{"RESULT": "OK"}, outcome: types.OutcomeSuccess}
	registerStub(t, types.PaymentKindCard, types.BankUFC, ch)

	sweeper := NewSweeper(db)
	require.NoError(t, sweeper.SweepPending(context.Background(), types.BankUFC, types.PaymentKindCard, 24*time.Hour))

	assert.Equal(t, types.StatusSuccess, reload(t, db, recent.ID).Status)
	// 窗口之外和没有银行引用的不碰
	assert.Equal(t, types.StatusPending, reload(t, db, stale.ID).Status)
	assert.Equal(t, types.StatusPending, reload(t, db, noRef.ID).Status)
}

func TestSweepPendingUnknownChannel(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, banks.Init(&config.PaymentsConfig{}))
	sweeper := NewSweeper(db)
	err := sweeper.SweepPending(context.Background(), types.BankCredo, types.PaymentKindApplePay, time.Hour)
	assert.Error(t, err)
}

// stubFeed 带批量状态推送的测试渠道
type stubFeed struct {
	stubChannel
	requestID string
	changes   []banks.StatusChange
	acked     []string
}

func (s *stubFeed) StatusChanges(ctx context.Context) (string, []banks.StatusChange, error) {
	return s.requestID, s.changes, nil
}

func (s *stubFeed) AckStatusChanges(ctx context.Context, requestID string) error {
	s.acked = append(s.acked, requestID)
	return nil
}

func TestSweepStatusChanges(t *testing.T) {
	db := setupDB(t)
	method := models.PaymentMethod{PaymentKind: types.PaymentKindLoan, BankType: types.BankTBC, IsActive: true}
	require.NoError(t, db.Create(&method).Error)

	funded := &models.Transaction{
		UserID: 1, Trx: "S-1", Amount: 10000, Status: types.StatusPending,
		Kind: types.KindPay, PaymentMethodID: method.ID,
	}
	cancelled := &models.Transaction{
		UserID: 2, Trx: "S-2", Amount: 5000, Status: types.StatusPending,
		Kind: types.KindPay, PaymentMethodID: method.ID,
	}
	require.NoError(t, db.Create(funded).Error)
	require.NoError(t, db.Create(cancelled).Error)

	feed := &stubFeed{
		stubChannel: stubChannel{name: "tbc", uniqueKey: "statusId"},
		requestID:   "sync-77",
		changes: []banks.StatusChange{
			// 放款成功，参与金 2000 特特里
			{SessionID: "S-1", StatusID: 8, Amount: 10000, ContributionAmount: 2000,
				Raw: banks.Payload{"statusId": 8, "sessionId": "S-1"}},
			// 银行侧收到撤销申请
			{SessionID: "S-2", StatusID: 5,
				Raw: banks.Payload{"statusId": 5, "sessionId": "S-2"}},
			// 找不到的交易直接跳过
			{SessionID: "S-unknown", StatusID: 8,
				Raw: banks.Payload{"statusId": 8, "sessionId": "S-unknown"}},
		},
	}
	registerStub(t, types.PaymentKindLoan, types.BankTBC, feed)

	sweeper := NewSweeper(db)
	require.NoError(t, sweeper.SweepStatusChanges(context.Background()))

	got := reload(t, db, funded.ID)
	assert.Equal(t, types.StatusSuccess, got.Status)
	assert.Equal(t, int64(8000), got.Amount)
	assert.Equal(t, types.ManualActionLoanContribution, got.ManualAction)

	got = reload(t, db, cancelled.ID)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Equal(t, types.ManualActionCallForLoanCancel, got.ManualAction)

	assert.Equal(t, []string{"sync-77"}, feed.acked)
}
