package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"stock-signal-sentry/pkg/types"
)

// StateManager 信号记忆管理器：内存为主，Redis可选异步备份。
// 记忆的权威来源是数据库 signal_memory 表，这里只是运行期缓存
type StateManager struct {
	memories    map[string]map[string]*types.SignalMemory // market -> name -> 记忆
	mutex       sync.RWMutex
	redisClient *redis.Client
	useRedis    bool
}

// NewStateManager 创建状态管理器，Redis连不上就退回纯内存模式
func NewStateManager(redisConfig types.RedisConfig) *StateManager {
	sm := &StateManager{
		memories: make(map[string]map[string]*types.SignalMemory),
	}

	if redisConfig.URL != "" {
		sm.redisClient = redis.NewClient(&redis.Options{
			Addr:     redisConfig.URL,
			Password: redisConfig.Password,
			DB:       redisConfig.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := sm.redisClient.Ping(ctx).Result(); err != nil {
			zap.L().Warn("⚠️ Redis连接失败，使用纯内存模式", zap.Error(err))
			sm.useRedis = false
		} else {
			zap.L().Info("✅ Redis连接成功")
			sm.useRedis = true
		}
	} else {
		zap.L().Info("🔧 未配置Redis，使用纯内存模式")
	}

	return sm
}

// Hydrate 用数据库里的记忆整体填充某市场的缓存
func (sm *StateManager) Hydrate(market string, memories map[string]*types.SignalMemory) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	bucket := make(map[string]*types.SignalMemory, len(memories))
	for name, mem := range memories {
		bucket[name] = mem
	}
	sm.memories[market] = bucket
}

// Get 取单只股票的最近信号记忆，没有返回nil
func (sm *StateManager) Get(market, name string) *types.SignalMemory {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	bucket := sm.memories[market]
	if bucket == nil {
		return nil
	}
	return bucket[name]
}

// Put 写入记忆并异步备份到Redis
func (sm *StateManager) Put(mem *types.SignalMemory) {
	sm.mutex.Lock()
	if sm.memories[mem.Market] == nil {
		sm.memories[mem.Market] = make(map[string]*types.SignalMemory)
	}
	sm.memories[mem.Market][mem.Name] = mem
	sm.mutex.Unlock()

	if sm.useRedis {
		go sm.backupToRedis(mem)
	}
}

// Reset 清空某市场的记忆缓存，全量回补前使用
func (sm *StateManager) Reset(market string) {
	sm.mutex.Lock()
	delete(sm.memories, market)
	sm.mutex.Unlock()

	if sm.useRedis {
		go sm.clearRedis(market)
	}
}

// Count 某市场缓存中的记忆条数
func (sm *StateManager) Count(market string) int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return len(sm.memories[market])
}

func (sm *StateManager) backupToRedis(mem *types.SignalMemory) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf("sentry:memory:%s:%s", mem.Market, mem.Name)
	value, err := json.Marshal(mem)
	if err != nil {
		zap.L().Warn("序列化信号记忆失败", zap.Error(err))
		return
	}

	if err := sm.redisClient.Set(ctx, key, value, 7*24*time.Hour).Err(); err != nil {
		zap.L().Warn("Redis备份失败", zap.String("key", key), zap.Error(err))
	}
}

func (sm *StateManager) clearRedis(market string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pattern := fmt.Sprintf("sentry:memory:%s:*", market)
	keys, err := sm.redisClient.Keys(ctx, pattern).Result()
	if err != nil || len(keys) == 0 {
		return
	}
	sm.redisClient.Del(ctx, keys...)
}
