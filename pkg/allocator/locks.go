package allocator

import (
	"sync"

	"github.com/google/uuid"
)

// OwnerLocks 资源方级别的互斥锁集合
// 同一资源方的落库分配与紧急分配串行化，不同资源方互不阻塞
type OwnerLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewOwnerLocks 创建锁集合
func NewOwnerLocks() *OwnerLocks {
	return &OwnerLocks{
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// get 取出（必要时创建）资源方的锁
func (ol *OwnerLocks) get(ownerID uuid.UUID) *sync.Mutex {
	ol.mu.Lock()
	defer ol.mu.Unlock()
	lock, ok := ol.locks[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		ol.locks[ownerID] = lock
	}
	return lock
}

// Lock 阻塞获取资源方锁，返回解锁函数
func (ol *OwnerLocks) Lock(ownerID uuid.UUID) func() {
	lock := ol.get(ownerID)
	lock.Lock()
	return lock.Unlock
}

// TryLock 非阻塞尝试获取资源方锁
// 成功返回解锁函数和 true；已被占用返回 nil 和 false
func (ol *OwnerLocks) TryLock(ownerID uuid.UUID) (func(), bool) {
	lock := ol.get(ownerID)
	if !lock.TryLock() {
		return nil, false
	}
	return lock.Unlock, true
}
