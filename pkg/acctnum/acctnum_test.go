package acctnum_test

import (
	"testing"

	"bankledger/pkg/acctnum"
)

func TestGenerateFormat(t *testing.T) {
	for i := 0; i < 1000; i++ {
		number := acctnum.Generate()
		if len(number) != acctnum.Length {
			t.Fatalf("账号长度 = %d, 期望 %d", len(number), acctnum.Length)
		}
		if !acctnum.Valid(number) {
			t.Fatalf("生成了非法账号: %q", number)
		}
	}
}

// 每一位都应当近似均匀，特别是拒绝采样前会被偏置的高位数字
func TestGenerateDigitDistribution(t *testing.T) {
	if testing.Short() {
		t.Skip("分布检验跳过")
	}

	const samples = 20000
	counts := make(map[byte]int)
	for i := 0; i < samples; i++ {
		for _, ch := range []byte(acctnum.Generate()) {
			counts[ch]++
		}
	}

	total := samples * acctnum.Length
	expected := total / 10
	for digit := byte('0'); digit <= '9'; digit++ {
		got := counts[digit]
		// 放宽到 ±10%，只挡系统性偏置，不挡随机波动
		if got < expected*9/10 || got > expected*11/10 {
			t.Errorf("数字 %c 出现 %d 次, 期望约 %d 次", digit, got, expected)
		}
	}
}

// 碰撞概率约 N²/2 × 10⁻¹⁰，10 万个样本撞上的概率约 0.05%，
// 偶发失败重跑即可；真正的唯一性兜底在开户流程的撞号重试里
func TestGenerateUniquenessStress(t *testing.T) {
	if testing.Short() {
		t.Skip("唯一性压测跳过")
	}

	const n = 100000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		number := acctnum.Generate()
		if _, dup := seen[number]; dup {
			t.Fatalf("第 %d 个样本出现重复账号: %s", i, number)
		}
		seen[number] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		number string
		want   bool
	}{
		{"0123456789", true},
		{"9999999999", true},
		{"123456789", false},   // 9 位
		{"12345678901", false}, // 11 位
		{"12345abc90", false},  // 非数字
		{"", false},
	}
	for _, tc := range cases {
		if got := acctnum.Valid(tc.number); got != tc.want {
			t.Errorf("Valid(%q) = %v, 期望 %v", tc.number, got, tc.want)
		}
	}
}
