package xkmconf

import (
	"fmt"
	"time"

	"github.com/omeyang/xkmutex/pkg/xkmutex"
)

// 可序列化的超时策略名。
//
// 设计决策: 只收录无函数参数的策略。MessagePolicy 与 CallbackPolicy
// 携带回调函数，无法在配置文件中表达，需在代码中显式构造。
const (
	// PolicyFail 超时返回包装 ErrLockTimeout 的错误（默认）。
	PolicyFail = "fail"
	// PolicySilent 超时静默返回空 Token，由调用方检查 TimedOut。
	PolicySilent = "silent"
)

// Settings 锁管理器的文件配置。
//
// 字段缺省时保持 DefaultSettings 的取值，因此配置文件只需写出
// 想要覆盖的字段。
type Settings struct {
	// WaitTimeoutMS 等待预算（毫秒）。
	// -1 表示无限等待，0 表示不等待，正值为预算上限；
	// 小于 -1 的取值按无限等待处理。
	WaitTimeoutMS int64 `koanf:"wait_timeout_ms"`

	// Policy 超时策略名，见 PolicyFail / PolicySilent。
	// 空串等同 PolicyFail。
	Policy string `koanf:"policy"`

	// MaxKeys 锁表可容纳的最大 key 数量，<= 0 表示不限制。
	MaxKeys int `koanf:"max_keys"`
}

// DefaultSettings 返回默认配置：无限等待、fail 策略、不限 key 数。
func DefaultSettings() Settings {
	return Settings{
		WaitTimeoutMS: -1,
		Policy:        PolicyFail,
	}
}

// Validate 校验字段取值。
func (s Settings) Validate() error {
	switch s.Policy {
	case "", PolicyFail, PolicySilent:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, s.Policy)
	}
}

// ToOptions 把 Settings 转换为 xkmutex 构造选项。
//
// 策略名不合法时返回 ErrUnknownPolicy，保证配置错误在构造期暴露
// 而不是运行期静默退化。
func ToOptions[K comparable](s Settings) ([]xkmutex.Option[K], error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	// 负值毫秒数转换后仍为负 Duration，WithWaitTimeout 会归一化为无限等待。
	opts := []xkmutex.Option[K]{
		xkmutex.WithWaitTimeout[K](time.Duration(s.WaitTimeoutMS) * time.Millisecond),
	}
	if s.Policy == PolicySilent {
		opts = append(opts, xkmutex.WithTimeoutPolicy[K](xkmutex.SilentPolicy[K]()))
	}
	if s.MaxKeys > 0 {
		opts = append(opts, xkmutex.WithMaxKeys[K](s.MaxKeys))
	}
	return opts, nil
}
