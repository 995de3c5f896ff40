package xkmutex

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sony/sonyflake/v2"
)

// tokenFlake 进程级 Token ID 生成器，首次使用时初始化。
//
// 设计决策: Sonyflake 的序列号位宽是 8 位，每 10ms 最多 256 个 ID，
// 远低于进程内锁的获取速率。因此 ID 不在 Acquire 热路径上生成，
// 而是延迟到 Token.ID() 首次被调用（通常是日志/排障路径）。
var tokenFlake = sync.OnceValues(func() (*sonyflake.Sonyflake, error) {
	return sonyflake.New(sonyflake.Settings{
		// 进程内锁无跨机唯一性要求，机器位取 PID 低 16 位即可。
		MachineID: func() (int, error) { return os.Getpid() & 0xffff, nil },
	})
})

// fallbackSeq 在 Sonyflake 不可用（时间分量溢出等）时兜底，保证 ID() 总能返回。
var fallbackSeq atomic.Int64

// nextTokenID 返回下一个 Token ID（base36 短字符串）。
func nextTokenID() string {
	if sf, err := tokenFlake(); err == nil {
		if id, err := sf.NextID(); err == nil {
			return strconv.FormatInt(id, 36)
		}
	}
	return "seq-" + strconv.FormatInt(fallbackSeq.Add(1), 10)
}
