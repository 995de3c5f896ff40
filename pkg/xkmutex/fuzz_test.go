package xkmutex

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func FuzzAcquireRelease(f *testing.F) {
	f.Add("key1")
	f.Add("")
	f.Add("very-long-key-name-that-might-cause-issues-with-hashing")
	f.Add("key/with/slashes")
	f.Add("key with spaces")
	f.Add("中文key")

	f.Fuzz(func(t *testing.T, key string) {
		lk, err := New[string]()
		if err != nil {
			t.Fatal(err)
		}
		defer lk.Close()

		tok, err := lk.Acquire(context.Background(), key)
		if key == "" {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("Acquire with zero key: want ErrInvalidKey, got %v", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("Acquire failed for key %q: %v", key, err)
		}
		if tok.TimedOut() {
			t.Fatalf("uncontended Acquire for key %q returned empty token", key)
		}
		if tok.Key() != key {
			t.Fatalf("Key mismatch: got %q, want %q", tok.Key(), key)
		}
		if err := tok.Release(); err != nil {
			t.Fatalf("Release failed for key %q: %v", key, err)
		}
		if err := tok.Release(); !errors.Is(err, ErrAlreadyReleased) {
			t.Fatalf("second Release for key %q: want ErrAlreadyReleased, got %v", key, err)
		}
	})
}

func FuzzTryAcquireRelease(f *testing.F) {
	f.Add("key1")
	f.Add("")
	f.Add("a/b/c")
	f.Add("中文key")

	f.Fuzz(func(t *testing.T, key string) {
		lk, err := New[string]()
		if err != nil {
			t.Fatal(err)
		}
		defer lk.Close()

		tok, err := lk.TryAcquire(key)
		if key == "" {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("TryAcquire with zero key: want ErrInvalidKey, got %v", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("TryAcquire failed for key %q: %v", key, err)
		}

		// 再次 TryAcquire 同一 key 应返回 ErrLockHeld（锁被占用）
		if _, err := lk.TryAcquire(key); !errors.Is(err, ErrLockHeld) {
			t.Fatalf("second TryAcquire for held key %q: want ErrLockHeld, got %v", key, err)
		}

		if err := tok.Release(); err != nil {
			t.Fatalf("Release failed for key %q: %v", key, err)
		}

		// 释放后可重新获取
		t2, err := lk.TryAcquire(key)
		if err != nil {
			t.Fatalf("reacquire after release failed for key %q: %v", key, err)
		}
		if err := t2.Release(); err != nil {
			t.Fatalf("Release after reacquire failed for key %q: %v", key, err)
		}
	})
}

func FuzzKeyNormalizerEquivalence(f *testing.F) {
	f.Add("ORDER-1", "order-1")
	f.Add("abc", "xyz")
	f.Add("Same", "sAME")
	f.Add("中文KEY", "中文key")
	f.Add("a", "")

	f.Fuzz(func(t *testing.T, a, b string) {
		if a == "" || b == "" {
			t.Skip("zero keys rejected before normalization")
		}

		lk, err := New[string](WithKeyNormalizer[string](strings.ToLower))
		if err != nil {
			t.Fatal(err)
		}
		defer lk.Close()

		ta, err := lk.TryAcquire(a)
		if err != nil {
			t.Fatalf("TryAcquire(%q) failed: %v", a, err)
		}

		// 归一化相同 ⇔ 同一把锁
		tb, err := lk.TryAcquire(b)
		if strings.ToLower(a) == strings.ToLower(b) {
			if !errors.Is(err, ErrLockHeld) {
				t.Fatalf("keys %q and %q normalize equal but locks differ: %v", a, b, err)
			}
		} else {
			if err != nil {
				t.Fatalf("keys %q and %q normalize differently but share a lock: %v", a, b, err)
			}
			if err := tb.Release(); err != nil {
				t.Fatalf("Release(%q) failed: %v", b, err)
			}
		}

		if err := ta.Release(); err != nil {
			t.Fatalf("Release(%q) failed: %v", a, err)
		}
	})
}
