package xkmconf_test

import (
	"context"
	"fmt"

	"github.com/omeyang/xkmutex/pkg/xkmconf"
	"github.com/omeyang/xkmutex/pkg/xkmutex"
)

func ExampleLoadBytes() {
	data := []byte(`
wait_timeout_ms: 250
policy: silent
max_keys: 1000
`)

	s, err := xkmconf.LoadBytes(data, xkmconf.FormatYAML)
	if err != nil {
		panic(err)
	}

	fmt.Println(s.WaitTimeoutMS, s.Policy, s.MaxKeys)
	// Output: 250 silent 1000
}

func ExampleToOptions() {
	s, err := xkmconf.LoadBytes([]byte(`{"wait_timeout_ms": 0, "policy": "silent"}`), xkmconf.FormatJSON)
	if err != nil {
		panic(err)
	}

	opts, err := xkmconf.ToOptions[string](s)
	if err != nil {
		panic(err)
	}

	locker, err := xkmutex.New(opts...)
	if err != nil {
		panic(err)
	}
	defer locker.Close()

	tok, err := locker.Acquire(context.Background(), "order-1001")
	if err != nil {
		panic(err)
	}
	defer tok.Release()

	// silent 策略：锁被占用时返回空 Token 而不是错误。
	empty, err := locker.Acquire(context.Background(), "order-1001")
	if err != nil {
		panic(err)
	}
	fmt.Println(empty.TimedOut())
	// Output: true
}

func ExampleSettings_Validate() {
	err := xkmconf.Settings{Policy: "retry"}.Validate()
	fmt.Println(err)
	// Output: xkmconf: unknown timeout policy: "retry"
}
