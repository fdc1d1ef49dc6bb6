package model

import (
	"time"
)

// Role 用户角色，封闭枚举
// 不用字符串比较判断权限，只允许下面两个取值
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Valid 判断角色取值是否合法
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

// User 用户表
// 一个用户拥有 0 个或多个账户；账户归属唯一用户
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"type:varchar(80);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(200);not null" json:"-"`
	FirstName    string    `gorm:"type:varchar(50);not null" json:"first_name"`
	LastName     string    `gorm:"type:varchar(50);not null" json:"last_name"`
	Phone        string    `gorm:"type:varchar(20)" json:"phone"`
	Role         Role      `gorm:"type:varchar(20);not null;default:customer" json:"role"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "user"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
