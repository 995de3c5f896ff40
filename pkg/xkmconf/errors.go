package xkmconf

import "errors"

// 配置加载和解析相关错误。
var (
	// ErrEmptyPath 表示配置文件路径为空。
	ErrEmptyPath = errors.New("xkmconf: empty config path")

	// ErrUnsupportedFormat 表示不支持的配置格式。
	ErrUnsupportedFormat = errors.New("xkmconf: unsupported config format")

	// ErrLoadFailed 表示配置加载失败。
	ErrLoadFailed = errors.New("xkmconf: failed to load config")

	// ErrParseFailed 表示配置解析失败。
	ErrParseFailed = errors.New("xkmconf: failed to parse config")

	// ErrUnmarshalFailed 表示配置反序列化失败。
	ErrUnmarshalFailed = errors.New("xkmconf: failed to unmarshal config")

	// ErrUnknownPolicy 表示策略名不在可序列化集合内。
	// 配置文件只能表达无函数参数的策略（fail/silent），
	// message/callback 策略携带函数，需在代码中构造。
	ErrUnknownPolicy = errors.New("xkmconf: unknown timeout policy")
)
