package xkmconf

// Options 加载选项。
type Options struct {
	// Path 配置在文件中的子树路径（以 . 分隔），空串表示整个文件。
	// 锁配置嵌在更大的应用配置里时使用，如 "locking.orders"。
	Path string
}

// Option 修改加载选项的函数。
type Option func(*Options)

// WithConfigPath 指定 Settings 所在的子树路径。
func WithConfigPath(path string) Option {
	return func(o *Options) {
		o.Path = path
	}
}

// applyOptions 应用选项并返回最终配置。
func applyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
