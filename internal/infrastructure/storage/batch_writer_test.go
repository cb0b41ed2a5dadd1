package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nacker/vue3-desktop-shell/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingSaver 总是写入失败
type failingSaver struct {
	mu    sync.Mutex
	calls int
}

func (s *failingSaver) SaveBatch(eventList []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return errors.New("disk full")
}

func newTestEvent(i int) events.Event {
	return *events.NewEvent(events.EventTypeActivate, map[string]interface{}{
		"index": float64(i),
	})
}

func countEvents(t *testing.T, repo *SQLiteLifecycleRepository) int {
	t.Helper()
	stats, err := repo.GetStats()
	require.NoError(t, err)
	return int(stats.TotalCount)
}

// TestBatchWriter_StartStop 测试启动和停止
func TestBatchWriter_StartStop(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	config := DefaultBatchWriterConfig()
	config.BatchSize = 10
	config.FlushInterval = 100 * time.Millisecond

	bw := NewBatchWriter(NewSQLiteLifecycleRepository(db), config)
	assert.False(t, bw.IsStarted())

	bw.Start()
	assert.True(t, bw.IsStarted())

	// 重复启动应该安全
	bw.Start()
	assert.True(t, bw.IsStarted())

	bw.Stop()
	assert.False(t, bw.IsStarted())

	// 重复停止应该安全
	bw.Stop()

	// 停止后不能再写入，也不能重新启动
	assert.False(t, bw.Write(newTestEvent(0)))
	bw.Start()
	assert.False(t, bw.IsStarted())
}

// TestBatchWriter_InvalidConfig 测试非法配置回退到默认值
func TestBatchWriter_InvalidConfig(t *testing.T) {
	bw := NewBatchWriter(&failingSaver{}, BatchWriterConfig{})

	assert.Equal(t, DefaultBatchWriterConfig(), bw.config)
}

// TestBatchWriter_AutoFlush 测试达到批量大小自动刷新
func TestBatchWriter_AutoFlush(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSQLiteLifecycleRepository(db)
	config := DefaultBatchWriterConfig()
	config.BatchSize = 5
	config.FlushInterval = time.Hour

	bw := NewBatchWriter(repo, config)
	bw.Start()
	defer bw.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, bw.Write(newTestEvent(i)))
	}

	assert.Eventually(t, func() bool {
		return countEvents(t, repo) == 5
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, bw.GetBufferSize())
}

// TestBatchWriter_TimedFlush 测试定时刷新
func TestBatchWriter_TimedFlush(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSQLiteLifecycleRepository(db)
	config := DefaultBatchWriterConfig()
	config.BatchSize = 100
	config.FlushInterval = 50 * time.Millisecond

	bw := NewBatchWriter(repo, config)
	bw.Start()
	defer bw.Stop()

	bw.Write(newTestEvent(0))
	bw.Write(newTestEvent(1))

	assert.Eventually(t, func() bool {
		return countEvents(t, repo) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

// TestBatchWriter_ForceFlush 测试强制刷新
func TestBatchWriter_ForceFlush(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSQLiteLifecycleRepository(db)
	config := DefaultBatchWriterConfig()
	config.BatchSize = 100
	config.FlushInterval = time.Hour

	bw := NewBatchWriter(repo, config)
	bw.Start()
	defer bw.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, bw.Write(newTestEvent(i)))
	}

	bw.ForceFlush()

	assert.Equal(t, 3, countEvents(t, repo))
	assert.Equal(t, int64(3), bw.GetStats().PersistedEvents)
}

// TestBatchWriter_StopWithBuffer 测试停止时写完剩余事件
func TestBatchWriter_StopWithBuffer(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSQLiteLifecycleRepository(db)
	config := DefaultBatchWriterConfig()
	config.BatchSize = 100
	config.FlushInterval = time.Hour

	bw := NewBatchWriter(repo, config)
	bw.Start()

	for i := 0; i < 5; i++ {
		bw.Write(newTestEvent(i))
	}

	bw.Stop()

	assert.Equal(t, 5, countEvents(t, repo))
}

// TestBatchWriter_ConcurrentWrite 测试并发写入
func TestBatchWriter_ConcurrentWrite(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSQLiteLifecycleRepository(db)
	config := DefaultBatchWriterConfig()
	config.BatchSize = 50
	config.FlushInterval = 20 * time.Millisecond
	config.EventBuffer = 1000

	bw := NewBatchWriter(repo, config)
	bw.Start()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(startIdx int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				bw.Write(newTestEvent(startIdx*10 + j))
			}
		}(i)
	}
	wg.Wait()

	bw.Stop()

	assert.Equal(t, 100, countEvents(t, repo))
	stats := bw.GetStats()
	assert.Equal(t, int64(100), stats.TotalEvents)
	assert.Equal(t, int64(100), stats.PersistedEvents)
}

// TestBatchWriter_ChannelFull 测试通道满时的行为
func TestBatchWriter_ChannelFull(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSQLiteLifecycleRepository(db)
	config := DefaultBatchWriterConfig()
	config.EventBuffer = 5

	// 未启动时没有消费者，通道填满后开始丢弃
	bw := NewBatchWriter(repo, config)

	successCount := 0
	for i := 0; i < 10; i++ {
		if bw.Write(newTestEvent(i)) {
			successCount++
		}
	}
	assert.Equal(t, 5, successCount)
	assert.Equal(t, int64(5), bw.GetStats().DroppedEvents)

	bw.ForceFlush()
	assert.Equal(t, 5, countEvents(t, repo))
}

// TestBatchWriter_SaveError 测试写入失败的统计
func TestBatchWriter_SaveError(t *testing.T) {
	saver := &failingSaver{}
	bw := NewBatchWriter(saver, DefaultBatchWriterConfig())

	bw.Write(newTestEvent(0))
	bw.Write(newTestEvent(1))
	bw.ForceFlush()

	stats := bw.GetStats()
	assert.Equal(t, int64(2), stats.FailedEvents)
	assert.Equal(t, int64(0), stats.PersistedEvents)

	// 失败的批次不会重试
	assert.Equal(t, 0, bw.GetBufferSize())
	bw.ForceFlush()
	assert.Equal(t, 1, saver.calls)
}

// TestBatchWriter_Handler 测试订阅事件总线
func TestBatchWriter_Handler(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSQLiteLifecycleRepository(db)
	bw := NewBatchWriter(repo, DefaultBatchWriterConfig())
	bw.Start()

	bus := events.NewEventBus(events.WithAsyncDisabled())
	bus.Subscribe("*", bw.Handler())

	require.NoError(t, bus.Publish(string(events.EventTypeReady), *events.NewEvent(events.EventTypeReady, nil)))
	require.NoError(t, bus.Publish(string(events.EventTypeActivate), *events.NewEvent(events.EventTypeActivate, nil)))

	bw.Stop()

	found, err := repo.FindRecent(10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, events.EventTypeReady, found[0].Type)
	assert.Equal(t, events.EventTypeActivate, found[1].Type)
}
