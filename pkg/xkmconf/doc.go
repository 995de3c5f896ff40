// Package xkmconf 提供 xkmutex 锁管理器的文件配置能力。
//
// 支持 YAML 与 JSON 两种格式，字段缺省时采用 DefaultSettings 的默认值，
// 加载结果可直接转换为 xkmutex 构造选项：
//
//	settings, err := xkmconf.Load("locking.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	opts, err := xkmconf.ToOptions[string](settings)
//	if err != nil {
//		log.Fatal(err)
//	}
//	locker, err := xkmutex.New(opts...)
//
// 配置文件示例（locking.yaml）：
//
//	wait_timeout_ms: 250
//	policy: fail
//	max_keys: 10000
//
// 需要热更新时使用 Open 获得 Loader，再通过 Watch 监听文件变更：
//
//	loader, err := xkmconf.Open("locking.yaml")
//	watcher, err := loader.Watch(func(s xkmconf.Settings, err error) {
//		if err != nil {
//			log.Printf("reload failed: %v", err)
//			return
//		}
//		log.Printf("settings updated: %+v", s)
//	})
//	_ = watcher.StartAsync()
//	defer watcher.Stop()
//
// 注意：配置文件只能表达无函数参数的策略（fail/silent）。
// 需要 MessagePolicy 或 CallbackPolicy 时在代码中构造并追加到选项列表。
package xkmconf
