package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/database"
	"github.com/flaboy/aira-payments/pkg/events"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/flaboy/pin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubChannel 测试用渠道，返回预设的报文和结论
type stubChannel struct {
	name      string
	uniqueKey string
	panKey    string
	window    time.Duration
	payload   banks.Payload
	outcome   types.Outcome
	err       error
	card      *models.Card
	refund    *banks.RefundResult
}

func (s *stubChannel) Name() string        { return s.name }
func (s *stubChannel) UniqueByKey() string { return s.uniqueKey }
func (s *stubChannel) PANKey() string      { return s.panKey }

func (s *stubChannel) TimeoutWindow() time.Duration {
	if s.window == 0 {
		return 15 * time.Minute
	}
	return s.window
}

func (s *stubChannel) StartPayment(ctx context.Context, t *models.Transaction) (*banks.InitiateResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &banks.InitiateResult{Accepted: true, Trx: "R1", PayID: "P1"}, nil
}

func (s *stubChannel) CheckStatus(ctx context.Context, t *models.Transaction) (banks.Payload, types.Outcome, error) {
	if s.err != nil {
		return nil, types.OutcomePending, s.err
	}
	return s.payload, s.outcome, nil
}

func (s *stubChannel) Refund(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.refund, nil
}

func (s *stubChannel) Cancel(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	return s.Refund(ctx, t, amount)
}

func (s *stubChannel) CardFromPayload(p banks.Payload) *models.Card { return s.card }

func (s *stubChannel) HandleRequest(c *pin.Context, path string) error { return nil }

// recordingHandler 记录事件回调，断言事件只发一次
type recordingHandler struct {
	completed []*types.PaymentCompletedEvent
	refunded  []*types.RefundProcessedEvent
	raised    []*types.ManualActionRaisedEvent
}

func (h *recordingHandler) OnPaymentCompleted(e *types.PaymentCompletedEvent) error {
	h.completed = append(h.completed, e)
	return nil
}

func (h *recordingHandler) OnRefundProcessed(e *types.RefundProcessedEvent) error {
	h.refunded = append(h.refunded, e)
	return nil
}

func (h *recordingHandler) OnManualActionRaised(e *types.ManualActionRaisedEvent) error {
	h.raised = append(h.raised, e)
	return nil
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Use(conn))
	return conn
}

func seedTransaction(t *testing.T, db *gorm.DB, kind types.PaymentKind, bank types.BankType, status types.Status) *models.Transaction {
	t.Helper()
	method := models.PaymentMethod{PaymentKind: kind, BankType: bank, IsActive: true}
	require.NoError(t, db.Create(&method).Error)
	trx := &models.Transaction{
		UserID:          7,
		Trx:             "R1",
		Amount:          10000,
		Status:          status,
		Kind:            types.KindPay,
		SaveCard:        true,
		PaymentMethodID: method.ID,
		PaymentMethod:   method,
	}
	require.NoError(t, db.Create(trx).Error)
	return trx
}

func reload(t *testing.T, db *gorm.DB, id uint) *models.Transaction {
	t.Helper()
	var out models.Transaction
	require.NoError(t, db.Preload("PaymentMethod").First(&out, id).Error)
	return &out
}

func TestMergeDataLogDedupByKey(t *testing.T) {
	trx := &models.Transaction{}
	mergeDataLog(trx, "RESULT", banks.Payload{"RESULT": "OK"})
	mergeDataLog(trx, "RESULT", banks.Payload{"RESULT": "OK", "RRN": "123"})
	assert.Len(t, trx.DataLog, 1)

	mergeDataLog(trx, "RESULT", banks.Payload{"RESULT": "FAILED"})
	assert.Len(t, trx.DataLog, 2)
}

func TestMergeDataLogAbsentKeyAlwaysAppends(t *testing.T) {
	trx := &models.Transaction{}
	mergeDataLog(trx, "RESULT", banks.Payload{"RRN": "123"})
	mergeDataLog(trx, "RESULT", banks.Payload{"RRN": "123"})
	assert.Len(t, trx.DataLog, 2)

	// 没有去重键的渠道永远追加
	trx = &models.Transaction{}
	mergeDataLog(trx, "", banks.Payload{"state": "same"})
	mergeDataLog(trx, "", banks.Payload{"state": "same"})
	assert.Len(t, trx.DataLog, 2)
}

func TestReconcileCallbackSuccess(t *testing.T) {
	db := setupDB(t)
	handler := &recordingHandler{}
	events.SetEventHandler(handler)
	defer events.SetEventHandler(nil)

	trx := seedTransaction(t, db, types.PaymentKindCard, types.BankBOG, types.StatusPending)
	ch := &stubChannel{name: "bog", uniqueKey: "status", panKey: "pan"}
	engine := NewEngine(db)

	err := engine.Reconcile(context.Background(), ch, trx.ID, &ExternalStatus{
		Data:    banks.Payload{"status": "success", "order_id": "R1", "pan": "4***1234"},
		Outcome: types.OutcomeSuccess,
	})
	require.NoError(t, err)

	got := reload(t, db, trx.ID)
	assert.Equal(t, types.StatusSuccess, got.Status)
	assert.Equal(t, "4***1234", got.CardHash)
	assert.Len(t, got.DataLog, 1)
	require.Len(t, handler.completed, 1)
	assert.Equal(t, trx.ID, handler.completed[0].TransactionID)
	assert.Equal(t, "100", handler.completed[0].Amount.String())
}

func TestReconcileDuplicateCallbackIsNoOp(t *testing.T) {
	db := setupDB(t)
	handler := &recordingHandler{}
	events.SetEventHandler(handler)
	defer events.SetEventHandler(nil)

	trx := seedTransaction(t, db, types.PaymentKindCard, types.BankBOG, types.StatusPending)
	ch := &stubChannel{name: "bog", uniqueKey: "status"}
	engine := NewEngine(db)

	payload := banks.Payload{"status": "success", "order_id": "R1"}
	for i := 0; i < 2; i++ {
		err := engine.Reconcile(context.Background(), ch, trx.ID, &ExternalStatus{
			Data:    payload,
			Outcome: types.OutcomeSuccess,
		})
		require.NoError(t, err)
	}

	got := reload(t, db, trx.ID)
	assert.Equal(t, types.StatusSuccess, got.Status)
	assert.Len(t, got.DataLog, 1)
	assert.Len(t, handler.completed, 1)
}

func TestReconcilePollAndCallbackConverge(t *testing.T) {
	db := setupDB(t)
	trx := seedTransaction(t, db, types.PaymentKindCard, types.BankUFC, types.StatusPending)
	engine := NewEngine(db)

	// 轮询路径
	poll := &stubChannel{name: "ufc", uniqueKey: "RESULT",
		payload: banks.Payload{"RESULT": "PENDING"}, outcome: types.OutcomePending}
	require.NoError(t, engine.Reconcile(context.Background(), poll, trx.ID, nil))

	// 回调路径，去重键值不同
	require.NoError(t, engine.Reconcile(context.Background(), poll, trx.ID, &ExternalStatus{
		Data:    banks.Payload{"RESULT": "OK"},
		Outcome: types.OutcomeSuccess,
	}))

	got := reload(t, db, trx.ID)
	assert.Equal(t, types.StatusSuccess, got.Status)
	assert.Len(t, got.DataLog, 2)
}

func TestReconcileProviderErrorLeavesStatePending(t *testing.T) {
	db := setupDB(t)
	trx := seedTransaction(t, db, types.PaymentKindCard, types.BankUFC, types.StatusPending)
	ch := &stubChannel{name: "ufc", err: errors.New("connection refused")}
	engine := NewEngine(db)

	err := engine.Reconcile(context.Background(), ch, trx.ID, nil)
	require.Error(t, err)

	got := reload(t, db, trx.ID)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Empty(t, got.DataLog)
}

func TestReconcileTerminalStatusNotDowngraded(t *testing.T) {
	db := setupDB(t)
	trx := seedTransaction(t, db, types.PaymentKindCard, types.BankBOG, types.StatusSuccess)
	ch := &stubChannel{name: "bog", uniqueKey: "status"}
	engine := NewEngine(db)

	// 迟到的失败报文只进日志，不回退状态
	err := engine.Reconcile(context.Background(), ch, trx.ID, &ExternalStatus{
		Data:    banks.Payload{"status": "error"},
		Outcome: types.OutcomeFailed,
	})
	require.NoError(t, err)

	got := reload(t, db, trx.ID)
	assert.Equal(t, types.StatusSuccess, got.Status)
	assert.Len(t, got.DataLog, 1)
}

func TestReconcileSettledAmountRevision(t *testing.T) {
	db := setupDB(t)
	trx := seedTransaction(t, db, types.PaymentKindLoan, types.BankTBC, types.StatusPending)
	ch := &stubChannel{name: "tbc", uniqueKey: "statusId"}
	engine := NewEngine(db)

	// 参与金 2000 特特里，结算金额按银行口径修订
	err := engine.Reconcile(context.Background(), ch, trx.ID, &ExternalStatus{
		Data:            banks.Payload{"statusId": 8, "contributionAmount": 20.0},
		Outcome:         types.OutcomeSuccess,
		SucceededAmount: 8000,
	})
	require.NoError(t, err)

	got := reload(t, db, trx.ID)
	assert.Equal(t, types.StatusSuccess, got.Status)
	assert.Equal(t, int64(8000), got.Amount)
}

func TestReconcileSavesCardOnFirstSuccess(t *testing.T) {
	db := setupDB(t)
	trx := seedTransaction(t, db, types.PaymentKindCard, types.BankUFC, types.StatusPending)
	ch := &stubChannel{
		name: "ufc", uniqueKey: "RESULT", panKey: "CARD_NUMBER",
		card: &models.Card{Number: "4***1234", RecID: "rec-1", BankType: types.BankUFC},
	}
	engine := NewEngine(db)

	err := engine.Reconcile(context.Background(), ch, trx.ID, &ExternalStatus{
		Data:    banks.Payload{"RESULT": "OK", "CARD_NUMBER": "4***1234"},
		Outcome: types.OutcomeSuccess,
	})
	require.NoError(t, err)

	var cards []models.Card
	require.NoError(t, db.Where("user_id = ?", trx.UserID).Find(&cards).Error)
	require.Len(t, cards, 1)
	assert.True(t, cards[0].IsPrimary)
	assert.Equal(t, "rec-1", cards[0].RecID)

	// 同一张卡第二笔成功交易不重复登记
	second := &models.Transaction{
		UserID: trx.UserID, Trx: "R2", Amount: 500, Status: types.StatusPending,
		Kind: types.KindPay, SaveCard: true, PaymentMethodID: trx.PaymentMethodID,
	}
	require.NoError(t, db.Create(second).Error)
	err = engine.Reconcile(context.Background(), ch, second.ID, &ExternalStatus{
		Data:    banks.Payload{"RESULT": "OK", "CARD_NUMBER": "4***1234"},
		Outcome: types.OutcomeSuccess,
	})
	require.NoError(t, err)
	require.NoError(t, db.Where("user_id = ?", trx.UserID).Find(&cards).Error)
	assert.Len(t, cards, 1)
}

func TestSetManualActionIdempotent(t *testing.T) {
	db := setupDB(t)
	handler := &recordingHandler{}
	events.SetEventHandler(handler)
	defer events.SetEventHandler(nil)

	trx := seedTransaction(t, db, types.PaymentKindLoan, types.BankTBC, types.StatusSuccess)

	require.NoError(t, SetManualAction(db, trx, types.ManualActionRefundLoan))
	require.NoError(t, SetManualAction(db, trx, types.ManualActionRefundLoan))

	got := reload(t, db, trx.ID)
	assert.Equal(t, types.ManualActionRefundLoan, got.ManualAction)
	assert.Equal(t, types.StatusSuccess, got.Status)
	assert.Len(t, handler.raised, 1)
}

func TestFindByTrx(t *testing.T) {
	db := setupDB(t)
	trx := seedTransaction(t, db, types.PaymentKindCard, types.BankBOG, types.StatusPending)

	found := FindByTrx(db, "R1")
	require.NotNil(t, found)
	assert.Equal(t, trx.ID, found.ID)

	assert.Nil(t, FindByTrx(db, "missing"))
	assert.Nil(t, FindByTrx(db, ""))
}
