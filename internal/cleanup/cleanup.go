package cleanup

import (
	"fmt"
	"sync"
)

var (
	mu    sync.Mutex
	hooks []func() error
	keys  = map[string]bool{}
)

// Register adds a cleanup hook executed in LIFO order at process exit.
func Register(hook func() error) {
	if hook == nil {
		return
	}
	mu.Lock()
	hooks = append(hooks, hook)
	mu.Unlock()
}

// RegisterOnce adds a hook only if no hook was registered under key before.
// Scratch teardown uses the owning context's identity as the key so a
// context torn down twice runs its hook once.
func RegisterOnce(key string, hook func() error) bool {
	if hook == nil || key == "" {
		return false
	}
	mu.Lock()
	defer mu.Unlock()
	if keys[key] {
		return false
	}
	keys[key] = true
	hooks = append(hooks, hook)
	return true
}

// RunAll executes all registered hooks and returns a combined error if any
// fail. Hooks run at most once.
func RunAll() error {
	mu.Lock()
	local := hooks
	hooks = nil
	keys = map[string]bool{}
	mu.Unlock()

	var errs []error
	for i := len(local) - 1; i >= 0; i-- {
		if err := local[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("cleanup failed: %v", errs)
}
