// Package acctnum 生成对外可见的 10 位数字账号。
//
// 每一位在 0-9 之间独立均匀随机，构造上不保证无碰撞：
// 全局唯一性由调用方（开户流程）检查，碰撞时重新生成。
// 生成 N 个账号发生碰撞的概率约为 N²/2 × 10⁻¹⁰，极低但非零，
// 所以开户侧必须带上限重试，而不能默认不会撞号。
package acctnum

import (
	"crypto/rand"
	"fmt"
)

// Length 账号固定长度
const Length = 10

// Generate 生成一个 10 位数字账号
func Generate() string {
	out := make([]byte, Length)
	buf := make([]byte, 1)
	for i := 0; i < Length; {
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand 在正常系统上不会失败，失败说明运行环境已不可用
			panic(fmt.Sprintf("acctnum: read random source: %v", err))
		}
		// 拒绝采样：丢弃 >= 250 的字节，保证每一位严格均匀
		if buf[0] >= 250 {
			continue
		}
		out[i] = '0' + buf[0]%10
		i++
	}
	return string(out)
}

// Source 把 Generate 包装成可注入的生成器，方便测试替换成固定序列
type Source struct{}

func (Source) Generate() string {
	return Generate()
}

// Valid 校验账号格式：恰好 10 位，且全部是数字
func Valid(number string) bool {
	if len(number) != Length {
		return false
	}
	for _, ch := range number {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
