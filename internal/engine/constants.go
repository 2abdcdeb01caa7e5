package engine

import "time"

// Retry and lock tuning. The attempt cap and backoff curve are deliberate
// configuration-visible constants; the retry loop is a bounded loop, never
// an unbounded wait.
const (
	DefaultLockTimeout   = 3 * time.Second
	DefaultRetryAttempts = 5
	DefaultRetryBackoff  = 25 * time.Millisecond
	MaxRetryBackoff      = 400 * time.Millisecond
)

// Operation names for logs and metrics.
const (
	OpTransfer      = "transfer"
	OpPay           = "pay"
	OpExchange      = "exchange"
	OpPurchase      = "purchase"
	OpOpenTable     = "open_table"
	OpUseItem       = "use_item"
	OpSell          = "sell"
	OpDeposit       = "deposit"
	OpWithdraw      = "withdraw"
	OpGiveItem      = "give_item"
	OpCascadeDelete = "cascade_delete"
	OpAdminMutation = "admin_mutation"
)

// Log message constants
const (
	LogMsgTransferCalled  = "Transfer called"
	LogMsgExchangeCalled  = "Exchange called"
	LogMsgPurchaseCalled  = "Purchase called"
	LogMsgOpenCalled      = "OpenTable called"
	LogMsgUseItemCalled   = "UseItem called"
	LogMsgSellCalled      = "Sell called"
	LogMsgCascadeCalled   = "CascadeDelete called"
	LogMsgCommitConflict  = "Commit conflict, retrying"
	LogMsgRetriesExhausted = "Retries exhausted"
)
