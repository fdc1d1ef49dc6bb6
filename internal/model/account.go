package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType 账户类型
type AccountType string

const (
	AccountTypeChecking AccountType = "checking" // 支票账户
	AccountTypeSavings  AccountType = "savings"  // 储蓄账户
)

// Valid 判断账户类型取值是否合法
func (t AccountType) Valid() bool {
	return t == AccountTypeChecking || t == AccountTypeSavings
}

// Account 银行账户表
// 余额是整个系统的共享可变资源，任何已提交操作之后必须满足 balance >= 0
//
// 【重要】金额一律使用定点小数（decimal(19,2)），不用浮点数
// 浮点数在大量存取款累积后会产生舍入漂移，对账永远对不平
type Account struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountNumber string          `gorm:"type:char(10);uniqueIndex;not null" json:"account_number"` // 对外可见的 10 位账号，全局唯一
	Type          AccountType     `gorm:"type:varchar(20);not null" json:"type"`
	Balance       decimal.Decimal `gorm:"type:decimal(19,2);not null;default:0" json:"balance"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"` // 账户只停用，不物理删除
	UserID        int64           `gorm:"index;not null" json:"user_id"`
	Version       int             `gorm:"not null;default:0" json:"-"` // 乐观锁版本号
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
