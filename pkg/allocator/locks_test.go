package allocator

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestOwnerLocks_TryLock(t *testing.T) {
	locks := NewOwnerLocks()
	ownerID := uuid.New()

	unlock, ok := locks.TryLock(ownerID)
	if !ok {
		t.Fatal("首次 TryLock 应成功")
	}

	if _, ok := locks.TryLock(ownerID); ok {
		t.Error("持锁期间 TryLock 应失败")
	}

	// 不同资源方互不影响
	otherUnlock, ok := locks.TryLock(uuid.New())
	if !ok {
		t.Error("其他资源方的 TryLock 不应受影响")
	}
	otherUnlock()

	unlock()
	unlock2, ok := locks.TryLock(ownerID)
	if !ok {
		t.Error("释放后 TryLock 应再次成功")
	}
	unlock2()
}

func TestOwnerLocks_LockSerializes(t *testing.T) {
	locks := NewOwnerLocks()
	ownerID := uuid.New()

	const workers = 8
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(ownerID)
			defer unlock()
			// 临界区内无并发，普通自增是安全的
			counter++
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("counter = %d, expected %d", counter, workers)
	}
}
