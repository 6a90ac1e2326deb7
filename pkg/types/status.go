package types

// Status 交易的规范状态。终态为 SUCCESS / FAILED / TIMEOUT，
// ERROR 表示发起阶段失败，PENDING 是唯一的中间态。
type Status int

const (
	StatusError   Status = -3
	StatusTimeout Status = -2
	StatusFailed  Status = -1
	StatusPending Status = 0
	StatusSuccess Status = 1
)

// IsTerminal 终态之后不再有自动迁移
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusTimeout
}

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusTimeout:
		return "timeout"
	case StatusFailed:
		return "failed"
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	}
	return "unknown"
}

// Outcome 银行状态归一化之后的四值结果，数值与银行SDK约定保持一致
type Outcome int

const (
	OutcomeTimeout Outcome = -2
	OutcomeFailed  Outcome = -1
	OutcomePending Outcome = 0
	OutcomeSuccess Outcome = 1
)

// ToStatus PENDING 结果不改变状态，由调用方保持原值
func (o Outcome) ToStatus(prev Status) Status {
	switch o {
	case OutcomeSuccess:
		return StatusSuccess
	case OutcomeFailed:
		return StatusFailed
	case OutcomeTimeout:
		return StatusTimeout
	}
	return prev
}

// TransactionKind 交易类型
type TransactionKind int

const (
	KindRefund       TransactionKind = -2
	KindCashback     TransactionKind = -1
	KindPay          TransactionKind = 1
	KindContribution TransactionKind = 2
)

// PaymentKind 支付方式类型
type PaymentKind int

const (
	PaymentKindNone      PaymentKind = 0
	PaymentKindCard      PaymentKind = 1
	PaymentKindLoan      PaymentKind = 2
	PaymentKindApplePay  PaymentKind = 3
	PaymentKindGooglePay PaymentKind = 4
)

func (k PaymentKind) String() string {
	switch k {
	case PaymentKindCard:
		return "card"
	case PaymentKindLoan:
		return "loan"
	case PaymentKindApplePay:
		return "apple_pay"
	case PaymentKindGooglePay:
		return "google_pay"
	}
	return "none"
}

// BankType 接入的银行/支付机构
type BankType int

const (
	BankUFC   BankType = 1
	BankBOG   BankType = 2
	BankTBC   BankType = 3
	BankCredo BankType = 4
	BankSpace BankType = 5
	BankGC    BankType = 6
)

func (b BankType) String() string {
	switch b {
	case BankUFC:
		return "ufc"
	case BankBOG:
		return "bog"
	case BankTBC:
		return "tbc"
	case BankCredo:
		return "credo"
	case BankSpace:
		return "space"
	case BankGC:
		return "gc"
	}
	return "unknown"
}

// ManualAction 人工处理标记。只有当自动流程无法完成时才会设置，
// 由运营人员在后台消费，系统不会自动清除。
type ManualAction int

const (
	ManualActionNone              ManualAction = 0
	ManualActionCheckTBCLoan      ManualAction = 1
	ManualActionRefundLoan        ManualAction = 2
	ManualActionCallForLoanCancel ManualAction = 3
	ManualActionLoanContribution  ManualAction = 4
)

func (a ManualAction) String() string {
	switch a {
	case ManualActionCheckTBCLoan:
		return "check_tbc_loan"
	case ManualActionRefundLoan:
		return "refund_loan"
	case ManualActionCallForLoanCancel:
		return "call_for_loan_cancel"
	case ManualActionLoanContribution:
		return "loan_contribution"
	}
	return "none"
}

// CardType 卡组织
type CardType int

const (
	CardTypeVisa            CardType = 1
	CardTypeMastercard      CardType = 2
	CardTypeAmericanExpress CardType = 3
	CardTypeUnknown         CardType = 4
)

// CardTypeFromPAN 根据卡号前缀判断卡组织
func CardTypeFromPAN(pan string) CardType {
	if pan == "" {
		return CardTypeUnknown
	}
	switch pan[0] {
	case '4':
		return CardTypeVisa
	case '5':
		return CardTypeMastercard
	}
	if len(pan) >= 2 && (pan[:2] == "34" || pan[:2] == "37") {
		return CardTypeAmericanExpress
	}
	return CardTypeUnknown
}
