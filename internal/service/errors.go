// 本文件集中定义账本核心的领域错误。
// 这些错误全部属于可恢复的业务错误（不会破坏账本状态），
// 由上层 HTTP handler 翻译成对应的业务错误码；
// 其中只有 ErrConcurrencyConflict 会在服务内部自动有限次重试。
package service

import "errors"

var (
	// ErrInvalidAmount 金额非法（<= 0，或初始存款为负）
	ErrInvalidAmount = errors.New("金额必须大于0")

	// ErrAccountNotFound 账户不存在
	ErrAccountNotFound = errors.New("账户不存在")

	// ErrAccountInactive 账户已停用，禁止任何资金操作
	ErrAccountInactive = errors.New("账户已停用")

	// ErrInsufficientFunds 余额不足，余额绝不允许变成负数
	ErrInsufficientFunds = errors.New("余额不足")

	// ErrDestinationNotFound 转账目标账号不存在或已停用
	ErrDestinationNotFound = errors.New("目标账户不存在")

	// ErrSelfTransfer 禁止转账给自己同一个账户
	ErrSelfTransfer = errors.New("不能向同一账户转账")

	// ErrNoCheckingAccount 用户没有可用的支票账户，无法使用默认账户
	ErrNoCheckingAccount = errors.New("没有可用的支票账户")

	// ErrAccountNumberExhausted 账号生成重试次数用尽（病态的连续撞号）
	ErrAccountNumberExhausted = errors.New("账号生成重试次数已用尽")

	// ErrConcurrencyConflict 并发冲突，整个操作可以从头重试
	ErrConcurrencyConflict = errors.New("系统繁忙，请重试")

	// ErrInvalidAccountType 账户类型非法
	ErrInvalidAccountType = errors.New("账户类型不合法")
)

// 存储层契约错误，由 Store 实现返回
var (
	// ErrVersionConflict 乐观锁版本冲突，账本服务捕获后自动重试整个操作
	ErrVersionConflict = errors.New("乐观锁冲突")

	// ErrDuplicateAccountNumber 账号唯一索引冲突（生成撞号时触发）
	ErrDuplicateAccountNumber = errors.New("账号已存在")

	// ErrDuplicateUser 用户名或邮箱已被占用
	ErrDuplicateUser = errors.New("用户名或邮箱已存在")

	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("用户不存在")

	// ErrSessionNotFound 会话不存在或已过期
	ErrSessionNotFound = errors.New("会话不存在或已过期")

	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("用户名或密码错误")
)
