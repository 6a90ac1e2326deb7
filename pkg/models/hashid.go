package models

import "github.com/flaboy/aira-payments/pkg/hashid"

var HashIDTypeTransaction = hashid.NewType("pm-", "payment-transaction", 6)

// HashID 对外暴露的交易ID，跳转和回调URL里用它而不是自增ID
func (t *Transaction) HashID() string {
	return hashid.Encode(HashIDTypeTransaction, t.ID)
}

// DecodeTransactionHashID 解码公开交易ID
func DecodeTransactionHashID(hashID string) (uint, error) {
	return hashid.Decode(HashIDTypeTransaction, hashID)
}
