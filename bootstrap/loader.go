package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ceyewan/beacon/client"
	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/xerrors"
)

// loader 实现 Loader 接口
type loader struct {
	v      *viper.Viper
	cfg    *Config
	logger clog.Logger

	mu        sync.RWMutex
	loaded    bool
	watches   map[string][]chan Event
	oldValues map[string]any
}

func newLoader(cfg *Config, opts ...Option) *loader {
	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	logger := opt.logger
	if logger == nil {
		logger = clog.Discard()
	}

	return &loader{
		v:         viper.New(),
		cfg:       cfg,
		logger:    logger,
		watches:   make(map[string][]chan Event),
		oldValues: make(map[string]any),
	}
}

// Load 从所有来源加载配置并启动文件监听
func (l *loader) Load(ctx context.Context) error {
	l.v.SetConfigName(l.cfg.Name)
	l.v.SetConfigType(l.cfg.FileType)
	for _, path := range l.cfg.Paths {
		l.v.AddConfigPath(path)
	}

	// 环境变量优先级最高，先注册保证后续读取都能被覆盖
	l.v.SetEnvPrefix(l.cfg.EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// .env 在配置文件之前注入，让它也能覆盖文件内容
	if err := l.loadDotEnv(); err != nil {
		l.logger.Debug("no .env file loaded", clog.Error(err))
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return xerrors.Wrapf(err, "read config file %s", l.cfg.Name)
		}
		l.logger.Warn("no configuration file found",
			clog.String("name", l.cfg.Name))
	}

	if err := l.mergeEnvironmentConfig(); err != nil {
		return err
	}

	if len(l.v.AllSettings()) == 0 {
		return ErrEmptyConfig
	}

	l.mu.Lock()
	l.loaded = true
	for key := range l.watches {
		l.oldValues[key] = l.v.Get(key)
	}
	l.mu.Unlock()

	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.logger.Info("configuration file changed",
			clog.String("file", e.Name))
		if err := l.mergeEnvironmentConfig(); err != nil {
			l.logger.Error("failed to reload environment config", clog.Error(err))
		}
		l.notifyWatches()
	})
	l.v.WatchConfig()

	return nil
}

// loadDotEnv 从工作目录和搜索路径加载 .env 文件
func (l *loader) loadDotEnv() error {
	var loaded bool
	var lastErr error

	if err := godotenv.Load(); err == nil {
		loaded = true
	} else {
		lastErr = err
	}
	for _, path := range l.cfg.Paths {
		if err := godotenv.Load(filepath.Join(path, ".env")); err == nil {
			loaded = true
		} else {
			lastErr = err
		}
	}

	if !loaded {
		return lastErr
	}
	return nil
}

// mergeEnvironmentConfig 合并环境特定配置文件（如 beacon.dev.yaml）
func (l *loader) mergeEnvironmentConfig() error {
	env := os.Getenv(l.cfg.EnvPrefix + "_ENV")
	if env == "" {
		return nil
	}

	envName := fmt.Sprintf("%s.%s", l.cfg.Name, env)
	l.v.SetConfigName(envName)
	defer l.v.SetConfigName(l.cfg.Name)

	if err := l.v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return xerrors.Wrapf(err, "merge environment config %s", envName)
		}
		l.logger.Debug("no environment configuration file",
			clog.String("env", env))
		return nil
	}

	l.logger.Info("merged environment configuration",
		clog.String("env", env))
	return nil
}

// Get 获取原始配置值
func (l *loader) Get(key string) any {
	return l.v.Get(key)
}

// Unmarshal 将整个配置反序列化到结构体
func (l *loader) Unmarshal(v any) error {
	if !l.isLoaded() {
		return ErrNotLoaded
	}
	return l.v.Unmarshal(v)
}

// UnmarshalKey 将指定 key 反序列化到结构体
func (l *loader) UnmarshalKey(key string, v any) error {
	if !l.isLoaded() {
		return ErrNotLoaded
	}
	return l.v.UnmarshalKey(key, v)
}

// ClientConfig 将配置解析为 Beacon 客户端配置
func (l *loader) ClientConfig() (*client.Config, error) {
	cfg := &client.Config{}
	if err := l.Unmarshal(cfg); err != nil {
		return nil, xerrors.Wrap(err, "unmarshal client config")
	}
	return cfg, nil
}

// Watch 监听指定 key 的变化
func (l *loader) Watch(ctx context.Context, key string) (<-chan Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan Event, 10)
	l.watches[key] = append(l.watches[key], ch)
	l.oldValues[key] = l.v.Get(key)

	go func() {
		<-ctx.Done()
		l.removeWatch(key, ch)
	}()

	return ch, nil
}

func (l *loader) removeWatch(key string, ch chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	chans, ok := l.watches[key]
	if !ok {
		return
	}
	for i, c := range chans {
		if c == ch {
			l.watches[key] = append(chans[:i], chans[i+1:]...)
			close(ch)
			break
		}
	}
	if len(l.watches[key]) == 0 {
		delete(l.watches, key)
		delete(l.oldValues, key)
	}
}

func (l *loader) isLoaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// notifyWatches 对比新旧值，向变化的 key 的监听者推送事件
func (l *loader) notifyWatches() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, channels := range l.watches {
		newValue := l.v.Get(key)
		oldValue := l.oldValues[key]
		if reflect.DeepEqual(oldValue, newValue) {
			continue
		}

		event := Event{
			Key:       key,
			Value:     newValue,
			OldValue:  oldValue,
			Timestamp: time.Now(),
		}
		l.oldValues[key] = newValue

		for _, ch := range channels {
			select {
			case ch <- event:
			default:
				l.logger.Warn("watch channel full, event dropped",
					clog.String("key", key))
			}
		}
	}
}
