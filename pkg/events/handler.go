package events

import "github.com/flaboy/aira-payments/pkg/types"

type EventHandler interface {
	OnPaymentCompleted(event *types.PaymentCompletedEvent) error
	OnRefundProcessed(event *types.RefundProcessedEvent) error
	OnManualActionRaised(event *types.ManualActionRaisedEvent) error
}

var handler EventHandler

func SetEventHandler(h EventHandler) {
	handler = h
}

func EmitPaymentCompleted(event *types.PaymentCompletedEvent) error {
	if handler != nil {
		return handler.OnPaymentCompleted(event)
	}
	return nil
}

func EmitRefundProcessed(event *types.RefundProcessedEvent) error {
	if handler != nil {
		return handler.OnRefundProcessed(event)
	}
	return nil
}

func EmitManualActionRaised(event *types.ManualActionRaisedEvent) error {
	if handler != nil {
		return handler.OnManualActionRaised(event)
	}
	return nil
}
