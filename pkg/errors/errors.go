package errors

import "github.com/flaboy/pin/usererrors"

// 支付相关错误
var (
	ErrPaymentMethodNotFound    = usererrors.New("payment.method_not_found", "Payment method not found")
	ErrChannelNotFound          = usererrors.New("payment.channel_not_found", "Payment channel not found")
	ErrTransactionNotFound      = usererrors.New("payment.transaction_not_found", "Transaction not found")
	ErrProviderUnavailable      = usererrors.New("payment.provider_unavailable", "Payment provider is not available")
	ErrCallbackValidation       = usererrors.New("payment.callback_validation_failed", "Callback validation failed")
	ErrTransactionNotRefundable = usererrors.New("payment.not_refundable", "Transaction can not be refunded")
	ErrAmountOutOfRange         = usererrors.New("payment.amount_out_of_range", "Amount is out of allowed range")
)
