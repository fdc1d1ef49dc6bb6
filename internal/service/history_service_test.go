package service_test

import (
	"context"
	"testing"
	"time"

	"bankledger/internal/model"
	"bankledger/internal/repository/memory"
	"bankledger/internal/service"
)

func newHistory(t *testing.T) (*service.HistoryService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return service.NewHistoryService(store), store
}

func ref(id int64) *int64 {
	return &id
}

func insertAt(store *memory.Store, at time.Time, no string, from, to *int64) {
	store.InsertTransaction(&model.Transaction{
		TransactionNo: no,
		Type:          model.TransactionTypeTransfer,
		Amount:        dec("1.00"),
		Status:        model.TransactionStatusCompleted,
		FromAccountID: from,
		ToAccountID:   to,
		CreatedAt:     at,
	})
}

// 账户视图合并出账和入账，最新在前
func TestForAccountOrdering(t *testing.T) {
	history, store := newHistory(t)
	acct := newAccount(t, store, 1, "0.00", true)
	other := newAccount(t, store, 2, "0.00", true)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insertAt(store, base, "T1", ref(acct.ID), ref(other.ID))                   // 出账，最早
	insertAt(store, base.Add(time.Minute), "T2", ref(other.ID), ref(acct.ID)) // 入账
	insertAt(store, base.Add(2*time.Minute), "T3", ref(acct.ID), ref(other.ID))
	insertAt(store, base.Add(3*time.Minute), "X", ref(other.ID), nil) // 与该账户无关

	txns, err := history.ForAccount(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("流水 %d 条, 期望 3 条", len(txns))
	}
	for i, want := range []string{"T3", "T2", "T1"} {
		if txns[i].TransactionNo != want {
			t.Errorf("第 %d 条 = %s, 期望 %s", i, txns[i].TransactionNo, want)
		}
	}
}

// 同一时间戳按插入顺序排，整个序是确定的
func TestForAccountTieBreak(t *testing.T) {
	history, store := newHistory(t)
	acct := newAccount(t, store, 1, "0.00", true)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insertAt(store, at, "A", nil, ref(acct.ID))
	insertAt(store, at, "B", nil, ref(acct.ID))
	insertAt(store, at, "C", nil, ref(acct.ID))

	txns, err := history.ForAccount(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	for i, want := range []string{"A", "B", "C"} {
		if txns[i].TransactionNo != want {
			t.Errorf("第 %d 条 = %s, 期望插入顺序 %s", i, txns[i].TransactionNo, want)
		}
	}
}

// 查询返回调用时刻的快照，重复查询结果一致
func TestForAccountSnapshot(t *testing.T) {
	history, store := newHistory(t)
	acct := newAccount(t, store, 1, "0.00", true)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insertAt(store, at, "A", nil, ref(acct.ID))
	insertAt(store, at.Add(time.Second), "B", nil, ref(acct.ID))

	first, _ := history.ForAccount(context.Background(), acct.ID)
	second, _ := history.ForAccount(context.Background(), acct.ID)
	if len(first) != len(second) {
		t.Fatalf("两次查询条数不一致: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].TransactionNo != second[i].TransactionNo {
			t.Errorf("第 %d 条顺序不稳定", i)
		}
	}
}

// 用户视图是其启用账户流水的并集，停用账户的流水不出现
func TestForUserUnionExcludesInactive(t *testing.T) {
	history, store := newHistory(t)
	checking := newAccount(t, store, 1, "0.00", true)
	savings := newAccount(t, store, 1, "0.00", true)
	closed := newAccount(t, store, 1, "0.00", true)
	stranger := newAccount(t, store, 2, "0.00", true)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insertAt(store, base, "C1", nil, ref(checking.ID))
	insertAt(store, base.Add(time.Minute), "S1", nil, ref(savings.ID))
	insertAt(store, base.Add(2*time.Minute), "D1", nil, ref(closed.ID))
	insertAt(store, base.Add(3*time.Minute), "O1", nil, ref(stranger.ID))

	if err := store.DeactivateAccount(context.Background(), closed.ID); err != nil {
		t.Fatalf("停用失败: %v", err)
	}

	txns, err := history.ForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("流水 %d 条, 期望 2 条（不含停用账户和别人的账户）", len(txns))
	}
	if txns[0].TransactionNo != "S1" || txns[1].TransactionNo != "C1" {
		t.Errorf("顺序 = [%s, %s], 期望 [S1, C1]", txns[0].TransactionNo, txns[1].TransactionNo)
	}
}

func TestForUserPage(t *testing.T) {
	history, store := newHistory(t)
	acct := newAccount(t, store, 1, "0.00", true)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		insertAt(store, base.Add(time.Duration(i)*time.Minute), string(rune('A'+i)), nil, ref(acct.ID))
	}

	ctx := context.Background()

	pageOne, total, err := history.ForUserPage(ctx, 1, 1, 2)
	if err != nil {
		t.Fatalf("分页查询失败: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, 期望 5", total)
	}
	if len(pageOne) != 2 || pageOne[0].TransactionNo != "E" || pageOne[1].TransactionNo != "D" {
		t.Errorf("第一页不正确: %+v", nos(pageOne))
	}

	lastPage, _, _ := history.ForUserPage(ctx, 1, 3, 2)
	if len(lastPage) != 1 || lastPage[0].TransactionNo != "A" {
		t.Errorf("末页不正确: %+v", nos(lastPage))
	}

	empty, _, _ := history.ForUserPage(ctx, 1, 4, 2)
	if len(empty) != 0 {
		t.Errorf("越界页应当为空, 得到 %d 条", len(empty))
	}
}

func nos(txns []*model.Transaction) []string {
	out := make([]string, len(txns))
	for i, txn := range txns {
		out[i] = txn.TransactionNo
	}
	return out
}
