package configcenter

import (
	"time"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/nacos"
	"github.com/ceyewan/beacon/xerrors"
)

// wake 唤醒监听协程重建监听列表，协程尚未挂起时不阻塞
func (c *nacosConfigCenter) wake() {
	select {
	case c.watchWake <- struct{}{}:
	default:
	}
}

// watchLoop 长轮询监听协程
//
// 所有监听键复用同一个长轮询请求。每轮按当前缓存内容计算指纹，
// 服务端在任一键变更时立即返回变更列表，否则挂起到超时。
// 同一配置键上的事件由单协程顺序投递，天然保证有序。
func (c *nacosConfigCenter) watchLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.watchCtx.Done():
			return
		default:
		}

		entries := c.listenEntries()
		if len(entries) == 0 {
			// 没有监听键时挂起，等新监听器唤醒
			select {
			case <-c.watchCtx.Done():
				return
			case <-c.watchWake:
			}
			continue
		}

		changed, err := c.client.ListenConfig(c.watchCtx, entries)
		if err != nil {
			if c.watchCtx.Err() != nil {
				return
			}
			c.logger.Warn("config listen failed, retrying",
				clog.Int("keys", len(entries)),
				clog.Error(err))
			select {
			case <-c.watchCtx.Done():
				return
			case <-time.After(c.cfg.RetryInterval):
			}
			continue
		}

		for _, key := range changed {
			// 服务端会回显租户，本地缓存键不带租户（由连接命名空间决定）
			key.Tenant = ""
			c.handleChange(key)
		}
	}
}

// listenEntries 按当前缓存内容构造监听列表
//
// 尚未缓存的键指纹为空串，若服务端已有该配置会立即判定为变更，
// 首轮即可把内容同步进缓存。
func (c *nacosConfigCenter) listenEntries() []nacos.ListenEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]nacos.ListenEntry, 0, len(c.order))
	for key := range c.order {
		fingerprint := ""
		if content, ok := c.cache[key]; ok {
			fingerprint = nacos.Fingerprint(content)
		}
		entries = append(entries, nacos.ListenEntry{
			Key:         key,
			Fingerprint: fingerprint,
		})
	}
	return entries
}

// handleChange 拉取变更后的内容，更新缓存并派发事件
//
// 本地写入会先行更新缓存并派发（见 notifyLocal），此处与缓存比对
// 去重，避免同一次变更被通知两遍。
func (c *nacosConfigCenter) handleChange(key nacos.ConfigKey) {
	content, err := c.client.GetConfig(c.watchCtx, key)
	switch {
	case err == nil:
	case xerrors.Is(err, nacos.ErrConfigNotFound):
		// 配置被删除：以空内容通知监听器
		content = ""
	default:
		c.logger.Warn("failed to fetch changed config",
			clog.String("data_id", key.DataID),
			clog.String("group", key.Group),
			clog.Error(err))
		return
	}

	c.mu.Lock()
	prev, had := c.cache[key]
	if (content == "" && !had) || (had && prev == content) {
		c.mu.Unlock()
		return
	}
	if content == "" {
		delete(c.cache, key)
	} else {
		c.cache[key] = content
	}
	entries := c.listenersFor(key)
	c.mu.Unlock()

	c.dispatchAll(key, content, entries)
}

// notifyLocal 本进程的写操作直接派发变更事件，不等待长轮询
func (c *nacosConfigCenter) notifyLocal(key nacos.ConfigKey, content string) {
	c.mu.RLock()
	entries := c.listenersFor(key)
	c.mu.RUnlock()
	if len(entries) == 0 {
		return
	}
	c.dispatchAll(key, content, entries)
}

// listenersFor 返回某配置键按注册顺序排列的监听器快照，需持有 mu
func (c *nacosConfigCenter) listenersFor(key nacos.ConfigKey) []*listenerEntry {
	ids := c.order[key]
	entries := make([]*listenerEntry, 0, len(ids))
	for _, id := range ids {
		if entry, ok := c.listeners[id]; ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// dispatchAll 依次调用监听器，单个 panic 被隔离
func (c *nacosConfigCenter) dispatchAll(key nacos.ConfigKey, content string, entries []*listenerEntry) {
	if c.changeEvents != nil {
		c.changeEvents.Inc(c.watchCtx, metrics.L("data_id", key.DataID))
	}
	c.logger.Info("config changed",
		clog.String("data_id", key.DataID),
		clog.String("group", key.Group),
		clog.Int("listeners", len(entries)))

	event := ChangeEvent{
		DataID:  key.DataID,
		Group:   key.Group,
		Content: content,
	}
	for _, entry := range entries {
		c.dispatch(entry, event)
	}
}

// dispatch 调用单个监听器，panic 被隔离，不影响其他监听器和轮询协程
func (c *nacosConfigCenter) dispatch(entry *listenerEntry, event ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("config listener panicked",
				clog.String("listener_id", entry.id),
				clog.String("data_id", event.DataID),
				clog.Any("panic", r))
		}
	}()
	entry.fn(event)
}
