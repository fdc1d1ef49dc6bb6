package service

import (
	"context"

	"bankledger/internal/model"
)

// HistoryService 流水读侧。
// 把账户的转出/转入流水合并成单一时间序视图，再按用户聚合所有启用账户。
//
// 排序契约：created_at 降序（最新在前），同一时间戳按插入顺序（ID 升序）稳定排序。
// 返回的是调用时刻的物化快照，不是活动视图；两次调用之间没有写入则结果完全一致。
// 分页只是对这个确定全序的纯切片，核心不关心页码。
type HistoryService struct {
	store Store
}

func NewHistoryService(store Store) *HistoryService {
	return &HistoryService{store: store}
}

// ForAccount 账户维度：该账户作为出账方或入账方的全部流水
func (s *HistoryService) ForAccount(ctx context.Context, accountID int64) ([]*model.Transaction, error) {
	return s.store.TransactionsByAccount(ctx, accountID)
}

// ForUser 用户维度：所有启用账户流水的并集，同一排序契约
func (s *HistoryService) ForUser(ctx context.Context, userID int64) ([]*model.Transaction, error) {
	return s.store.TransactionsByUser(ctx, userID)
}

// ForUserPage 对 ForUser 的确定全序做纯切片分页
func (s *HistoryService) ForUserPage(ctx context.Context, userID int64, page, pageSize int) ([]*model.Transaction, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	all, err := s.ForUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	total := len(all)
	start := (page - 1) * pageSize
	if start >= total {
		return []*model.Transaction{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
