package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeDeposit    = "deposit"    // 存款：只有入账方
	TransactionTypeWithdrawal = "withdrawal" // 取款：只有出账方
	TransactionTypeTransfer   = "transfer"   // 转账：出账方 + 入账方，且两者不同
)

const (
	TransactionStatusCompleted = "completed"
	TransactionStatusPending   = "pending"
	TransactionStatusFailed    = "failed"
)

// ============================================================================
// 交易流水实体
// ============================================================================

// Transaction 交易流水表
// 记录每一笔资金变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 流水是历史事实，保证审计可追溯
// 2. 流水只能作为账本操作成功提交的副作用产生，不能单独创建
// 3. 流水和余额变动在同一个事务里提交 —— 不存在"有流水没扣款"，也不存在"扣了款没流水"
type Transaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"amount"` // 恒为正数，资金方向由 from/to 表达
	Description   string          `gorm:"type:varchar(200)" json:"description"`
	Status        string          `gorm:"type:varchar(20);not null;default:completed" json:"status"`
	FromAccountID *int64          `gorm:"index" json:"from_account_id"` // 出账账户，存款时为空
	ToAccountID   *int64          `gorm:"index" json:"to_account_id"`   // 入账账户，取款时为空
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}
