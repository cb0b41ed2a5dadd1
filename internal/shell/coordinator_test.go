package shell

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nacker/vue3-desktop-shell/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 7, 9, 5, 3, 0, time.Local)

// harness 组装协调器与假实现
type harness struct {
	ws       *fakeWindowSystem
	messages *fakeMessages
	opener   *fakeOpener
	process  *fakeProcess
	lock     *fakeLock
	coord    *Coordinator
}

func newHarness(t *testing.T, content ContentSource, keepAlive bool) *harness {
	t.Helper()

	h := &harness{
		ws:       newFakeWindowSystem(),
		messages: &fakeMessages{},
		opener:   &fakeOpener{},
		process:  &fakeProcess{},
		lock:     &fakeLock{acquired: true},
	}
	h.ws.autoFinishLoad = true

	h.coord = NewCoordinator(Deps{
		Windows:  h.ws,
		Messages: h.messages,
		External: h.opener,
		Process:  h.process,
		Lock:     h.lock,
	}, Options{
		Content:                 content,
		Primary:                 WindowOptions{Title: "Main window", Width: 800, Height: 600, WebPreferences: WebPreferences{Preload: "/app/preload/index.mjs", ContextIsolation: true}},
		Auxiliary:               WindowOptions{Width: 800, Height: 600, WebPreferences: WebPreferences{Preload: "/app/preload/index.mjs", NodeIntegration: true}},
		KeepAliveWithoutWindows: keepAlive,
		Now:                     func() time.Time { return fixedNow },
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.coord.Start(context.Background()))
	t.Cleanup(h.coord.Stop)
}

// state 读取快照，同时等待之前投递的触发器处理完毕
//
// 处理过程中派生的触发器（如 did-finish-load）排在第一次快照之后，
// 所以读两次。
func (h *harness) state(t *testing.T) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := h.coord.Snapshot(ctx)
	require.NoError(t, err)
	state, err := h.coord.Snapshot(ctx)
	require.NoError(t, err)
	return state
}

var fileContent = ContentSource{IndexHTML: "/app/dist/index.html"}
var devContent = ContentSource{DevServerURL: "http://localhost:5173/", IndexHTML: "/app/dist/index.html"}

/**
 * TestStart_LockHeld 测试单实例锁被占用
 *
 * 不创建任何窗口，以退出码 0 结束
 */
func TestStart_LockHeld(t *testing.T) {
	t.Run("锁被其他实例持有", func(t *testing.T) {
		h := newHarness(t, fileContent, false)
		h.lock.acquired = false

		err := h.coord.Start(context.Background())
		assert.ErrorIs(t, err, ErrNotPrimaryInstance)
		assert.Equal(t, []int{0}, h.process.exits())
		assert.Equal(t, 0, h.ws.registrations, "不应注册平台回调")
		assert.Equal(t, 0, h.ws.createdCount())

		h.coord.Ready()
		h.coord.Stop()
		assert.Equal(t, 0, h.ws.createdCount(), "停止后也不应创建窗口")
	})

	t.Run("获取锁出错", func(t *testing.T) {
		h := newHarness(t, fileContent, false)
		h.lock.err = assert.AnError

		err := h.coord.Start(context.Background())
		assert.ErrorIs(t, err, ErrNotPrimaryInstance)
		assert.Equal(t, []int{0}, h.process.exits())
		assert.Equal(t, 0, h.ws.createdCount())
		h.coord.Stop()
	})
}

/**
 * TestStart_NoWindowSystem 测试缺少窗口系统
 */
func TestStart_NoWindowSystem(t *testing.T) {
	coord := NewCoordinator(Deps{}, Options{})
	assert.ErrorIs(t, coord.Start(context.Background()), ErrNoWindowSystem)
}

/**
 * TestStart_ContextCancel 测试 ctx 取消后协调器停止
 */
func TestStart_ContextCancel(t *testing.T) {
	h := newHarness(t, fileContent, false)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.coord.Start(ctx))

	cancel()
	assert.Eventually(t, func() bool {
		_, err := h.coord.OpenWin(context.Background(), "foo")
		return err == ErrStopped
	}, time.Second, 10*time.Millisecond)
}

/**
 * TestReady_CreatesPrimary 测试就绪信号创建主窗口
 */
func TestReady_CreatesPrimary(t *testing.T) {
	t.Run("本地入口文件", func(t *testing.T) {
		h := newHarness(t, fileContent, false)
		h.start(t)

		h.ws.ready()
		state := h.state(t)

		primaries := h.ws.createdByRole(RolePrimary)
		require.Len(t, primaries, 1)
		w := primaries[0]

		require.NotNil(t, state.Primary)
		assert.Equal(t, w.ID(), state.Primary.ID)
		assert.Equal(t, "Main window", w.opts.Title)
		assert.Equal(t, "/app/preload/index.mjs", w.opts.WebPreferences.Preload)
		assert.True(t, w.opts.WebPreferences.ContextIsolation)
		assert.False(t, w.opts.WebPreferences.NodeIntegration)
		assert.Equal(t, "/app/dist/index.html", w.loadedFile)
		assert.Empty(t, w.loadedHash)
		assert.False(t, w.devTools, "生产模式不打开开发者工具")
		assert.NotNil(t, w.openHandler, "应安装打开新窗口策略")
	})

	t.Run("开发服务器", func(t *testing.T) {
		h := newHarness(t, devContent, false)
		h.start(t)

		h.ws.ready()
		h.state(t)

		primaries := h.ws.createdByRole(RolePrimary)
		require.Len(t, primaries, 1)
		assert.Equal(t, "http://localhost:5173/", primaries[0].URL())
		assert.True(t, primaries[0].devTools)
	})

	t.Run("创建失败", func(t *testing.T) {
		h := newHarness(t, fileContent, false)
		h.ws.createErr = errFakeCreate
		h.start(t)

		h.ws.ready()
		state := h.state(t)
		assert.Nil(t, state.Primary)
	})
}

/**
 * TestDidFinishLoad_MainProcessMessage 测试首次加载完成后推送时间戳
 */
func TestDidFinishLoad_MainProcessMessage(t *testing.T) {
	h := newHarness(t, fileContent, false)
	h.start(t)

	h.ws.ready()
	state := h.state(t)
	require.NotNil(t, state.Primary)

	sent := h.messages.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, state.Primary.ID, sent[0].windowID)
	assert.Equal(t, MainProcessMessageChannel, sent[0].channel)
	assert.Equal(t, []interface{}{"2026/3/7 09:05:03"}, sent[0].payload)
	assert.Equal(t, state.Primary.ID, state.Notified)

	// 再次加载完成不重复推送
	h.coord.DidFinishLoad(state.Primary.ID)
	h.coord.DidFinishLoad("unknown")
	h.state(t)
	assert.Len(t, h.messages.messages(), 1)
}

/**
 * TestDidFinishLoad_SendError 测试推送失败只记录日志
 */
func TestDidFinishLoad_SendError(t *testing.T) {
	h := newHarness(t, fileContent, false)
	h.messages.err = assert.AnError
	h.start(t)

	h.ws.ready()
	state := h.state(t)
	require.NotNil(t, state.Primary, "推送失败不影响主窗口")
}

/**
 * TestSecondInstance 测试第二个实例启动
 */
func TestSecondInstance(t *testing.T) {
	t.Run("恢复并聚焦主窗口", func(t *testing.T) {
		h := newHarness(t, fileContent, false)
		h.start(t)

		h.ws.ready()
		h.state(t)
		w := h.ws.createdByRole(RolePrimary)[0]

		w.minimize()
		for i := 0; i < 3; i++ {
			h.lock.launch("--from-second", "instance")
			if i == 1 {
				w.minimize()
			}
		}
		h.state(t)

		assert.False(t, w.IsMinimized(), "序列结束时主窗口不应最小化")
		assert.Equal(t, 3, w.focused())
		assert.GreaterOrEqual(t, w.restoreCnt, 1)
		assert.Equal(t, 1, h.ws.createdCount(), "不应创建新窗口")
	})

	t.Run("没有主窗口时不做任何事", func(t *testing.T) {
		h := newHarness(t, fileContent, false)
		h.start(t)

		h.coord.SecondInstance([]string{"app"})
		state := h.state(t)

		assert.Nil(t, state.Primary)
		assert.Equal(t, 0, h.ws.createdCount())
	})
}

/**
 * TestSecondInstance_PrimaryClosedWithAuxiliaryOpen 测试主窗口关闭而辅助窗口仍在
 */
func TestSecondInstance_PrimaryClosedWithAuxiliaryOpen(t *testing.T) {
	h := newHarness(t, fileContent, false)
	h.start(t)

	h.ws.ready()
	h.state(t)
	primary := h.ws.createdByRole(RolePrimary)[0]

	_, err := h.coord.OpenWin(context.Background(), "foo")
	require.NoError(t, err)

	h.ws.closeWindow(primary)
	primary.minimize()
	h.lock.launch("app")
	state := h.state(t)

	assert.Nil(t, state.Primary, "已关闭的主窗口不再被跟踪")
	assert.Equal(t, 0, primary.focused(), "不应聚焦已关闭的主窗口")
	assert.True(t, primary.IsMinimized(), "不应恢复已关闭的主窗口")
	assert.Equal(t, 0, h.process.quitCount())

	// 辅助窗口仍在，激活不创建新的主窗口
	h.ws.activate()
	h.state(t)
	assert.Len(t, h.ws.createdByRole(RolePrimary), 1)
}

/**
 * TestPrimary_AtMostOne 测试最多跟踪一个主窗口
 */
func TestPrimary_AtMostOne(t *testing.T) {
	h := newHarness(t, fileContent, true)
	h.start(t)

	h.ws.ready()
	h.ws.ready()
	h.ws.activate()
	h.lock.launch()
	state := h.state(t)

	require.NotNil(t, state.Primary)
	assert.Len(t, h.ws.createdByRole(RolePrimary), 1)

	// 关闭后激活，旧句柄被替换
	h.ws.closeAll()
	h.ws.activate()
	h.ws.activate()
	next := h.state(t)

	require.NotNil(t, next.Primary)
	assert.NotEqual(t, state.Primary.ID, next.Primary.ID)
	assert.Len(t, h.ws.createdByRole(RolePrimary), 2)
}

/**
 * TestAllWindowsClosed 测试所有窗口关闭
 */
func TestAllWindowsClosed(t *testing.T) {
	t.Run("保持运行的平台", func(t *testing.T) {
		h := newHarness(t, fileContent, true)
		h.start(t)

		h.ws.ready()
		h.state(t)
		h.ws.closeAll()
		state := h.state(t)

		assert.Nil(t, state.Primary, "主窗口句柄应被清除")
		assert.Empty(t, state.Notified)
		assert.Equal(t, 0, h.process.quitCount())
	})

	t.Run("其他平台退出", func(t *testing.T) {
		h := newHarness(t, fileContent, false)
		h.start(t)

		h.ws.ready()
		h.state(t)
		h.ws.closeAll()
		state := h.state(t)

		assert.Nil(t, state.Primary)
		assert.Equal(t, 1, h.process.quitCount())
	})
}

/**
 * TestActivate 测试激活信号
 */
func TestActivate(t *testing.T) {
	t.Run("没有窗口时创建一个主窗口", func(t *testing.T) {
		h := newHarness(t, fileContent, true)
		h.start(t)

		h.ws.activate()
		state := h.state(t)

		require.NotNil(t, state.Primary)
		assert.Equal(t, 1, h.ws.createdCount())
	})

	t.Run("已有窗口时聚焦第一个", func(t *testing.T) {
		h := newHarness(t, fileContent, true)
		h.start(t)

		h.ws.ready()
		h.state(t)
		_, err := h.coord.OpenWin(context.Background(), "panel")
		require.NoError(t, err)

		h.ws.activate()
		h.state(t)

		assert.Equal(t, 2, h.ws.createdCount(), "激活不应创建窗口")
		assert.Equal(t, 1, h.ws.createdByRole(RolePrimary)[0].focused())
		assert.Equal(t, 0, h.ws.createdByRole(RoleAuxiliary)[0].focused())
	})

	t.Run("只剩辅助窗口时聚焦辅助窗口", func(t *testing.T) {
		h := newHarness(t, fileContent, true)
		h.start(t)

		_, err := h.coord.OpenWin(context.Background(), "panel")
		require.NoError(t, err)
		h.ws.activate()
		state := h.state(t)

		assert.Nil(t, state.Primary)
		assert.Equal(t, 1, h.ws.createdCount())
		assert.Equal(t, 1, h.ws.createdByRole(RoleAuxiliary)[0].focused())
	})
}

/**
 * TestOpenWin 测试辅助窗口请求
 */
func TestOpenWin(t *testing.T) {
	t.Run("开发服务器地址附加片段", func(t *testing.T) {
		h := newHarness(t, devContent, false)
		h.start(t)

		handle, err := h.coord.OpenWin(context.Background(), "foo")
		require.NoError(t, err)

		aux := h.ws.createdByRole(RoleAuxiliary)
		require.Len(t, aux, 1)
		assert.Equal(t, aux[0].ID(), handle.ID)
		assert.Equal(t, RoleAuxiliary, handle.Role)
		assert.Equal(t, "http://localhost:5173/#foo", handle.URL)
		assert.True(t, strings.HasSuffix(handle.URL, "#foo"))
		assert.True(t, aux[0].opts.WebPreferences.NodeIntegration)
		assert.False(t, aux[0].opts.WebPreferences.ContextIsolation)
		assert.False(t, aux[0].devTools)
	})

	t.Run("本地入口文件使用 hash 参数", func(t *testing.T) {
		h := newHarness(t, fileContent, false)
		h.start(t)

		handle, err := h.coord.OpenWin(context.Background(), "foo")
		require.NoError(t, err)

		aux := h.ws.createdByRole(RoleAuxiliary)[0]
		assert.Equal(t, "/app/dist/index.html", aux.loadedFile)
		assert.Equal(t, "foo", aux.loadedHash)
		assert.Equal(t, "file:///app/dist/index.html#foo", handle.URL)
	})

	t.Run("辅助窗口不被跟踪", func(t *testing.T) {
		h := newHarness(t, fileContent, false)
		h.start(t)

		_, err := h.coord.OpenWin(context.Background(), "foo")
		require.NoError(t, err)
		state := h.state(t)

		assert.Nil(t, state.Primary)
		assert.Empty(t, h.messages.messages(), "辅助窗口不推送 main-process-message")
	})

	t.Run("创建失败返回错误", func(t *testing.T) {
		h := newHarness(t, fileContent, false)
		h.ws.createErr = errFakeCreate
		h.start(t)

		_, err := h.coord.OpenWin(context.Background(), "foo")
		assert.ErrorIs(t, err, errFakeCreate)
	})

	t.Run("加载失败返回错误", func(t *testing.T) {
		h := newHarness(t, fileContent, false)
		h.ws.loadErr = assert.AnError
		h.start(t)

		_, err := h.coord.OpenWin(context.Background(), "foo")
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("停止后返回 ErrStopped", func(t *testing.T) {
		h := newHarness(t, fileContent, false)
		h.start(t)
		h.coord.Stop()

		_, err := h.coord.OpenWin(context.Background(), "foo")
		assert.ErrorIs(t, err, ErrStopped)
	})
}

/**
 * TestWindowOpenPolicy 测试主窗口安装的打开新窗口策略
 */
func TestWindowOpenPolicy(t *testing.T) {
	h := newHarness(t, fileContent, false)
	h.start(t)

	h.ws.ready()
	h.state(t)
	w := h.ws.createdByRole(RolePrimary)[0]
	require.NotNil(t, w.openHandler)

	assert.Equal(t, DecisionDeny, w.openHandler("https://example.com/docs"))
	assert.Equal(t, DecisionDeny, w.openHandler("http://example.com"))
	assert.Equal(t, DecisionDeny, w.openHandler("file:///etc/hosts"))

	assert.Equal(t, []string{"https://example.com/docs"}, h.opener.urls())
	assert.Equal(t, 1, h.ws.createdCount(), "策略不应创建应用内窗口")
}

/**
 * TestCoordinator_PublishesLifecycleEvents 测试生命周期事件发布
 */
func TestCoordinator_PublishesLifecycleEvents(t *testing.T) {
	bus := events.NewEventBus(events.WithAsyncDisabled())
	defer bus.Stop(time.Second)

	var mu sync.Mutex
	var received []events.EventType
	bus.Subscribe("*", func(event events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event.Type)
		return nil
	})

	h := newHarness(t, fileContent, true)
	h.coord.deps.Bus = bus
	h.start(t)

	h.ws.ready()
	h.state(t)
	_, err := h.coord.OpenWin(context.Background(), "foo")
	require.NoError(t, err)
	h.ws.closeAll()
	h.state(t)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, received, events.EventTypeReady)
	assert.Contains(t, received, events.EventTypeWindowCreated)
	assert.Contains(t, received, events.EventTypeDidFinishLoad)
	assert.Contains(t, received, events.EventTypeMainProcessMessage)
	assert.Contains(t, received, events.EventTypeOpenWin)
	assert.Contains(t, received, events.EventTypeWindowAllClosed)
	assert.NotContains(t, received, eventSnapshot)
}

/**
 * TestCoordinator_PublishesErrors 测试触发器失败时发布 error 事件
 */
func TestCoordinator_PublishesErrors(t *testing.T) {
	bus := events.NewEventBus(events.WithAsyncDisabled())
	defer bus.Stop(time.Second)

	var mu sync.Mutex
	var failures []events.Event
	bus.Subscribe(string(events.EventTypeError), func(event events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, event)
		return nil
	})

	h := newHarness(t, fileContent, true)
	h.coord.deps.Bus = bus
	h.ws.createErr = errFakeCreate
	h.start(t)

	_, err := h.coord.OpenWin(context.Background(), "foo")
	require.ErrorIs(t, err, errFakeCreate)
	h.state(t)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 1)
	assert.Equal(t, string(events.EventTypeOpenWin), failures[0].Data["trigger"])
	assert.Contains(t, failures[0].Data["error"], errFakeCreate.Error())
}
