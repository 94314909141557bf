package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// Movement kinds used as cache key prefixes.
const (
	KindTransaction = "transaction"
	KindTransfer    = "transfer"
	KindTopup       = "topup"
	KindWithdraw    = "withdraw"
	KindSaldo       = "saldo"
)

// Key builders. Every mutation path invalidates exactly the keys the query
// paths populate, so the formats live in one place.

func FindByIDKey(kind string, id uuid.UUID) string {
	return fmt.Sprintf("%s:find_by_id:id:%s", kind, id)
}

func FindByCardKey(kind, cardNumber string) string {
	return fmt.Sprintf("%s:find_by_card:%s", kind, cardNumber)
}

func FindAllKey(kind string, page, pageSize int, search string) string {
	return fmt.Sprintf("%s:find_all:page:%d:size:%d:search:%s", kind, page, pageSize, search)
}

func FindActiveKey(kind string, page, pageSize int, search string) string {
	return fmt.Sprintf("%s:find_active:page:%d:size:%d:search:%s", kind, page, pageSize, search)
}

func FindTrashedKey(kind string, page, pageSize int, search string) string {
	return fmt.Sprintf("%s:find_trashed:page:%d:size:%d:search:%s", kind, page, pageSize, search)
}

// Wildcard invalidation patterns for list queries.

func FindAllPattern(kind string) string     { return kind + ":find_all:*" }
func FindActivePattern(kind string) string  { return kind + ":find_active:*" }
func FindTrashedPattern(kind string) string { return kind + ":find_trashed:*" }
