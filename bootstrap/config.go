package bootstrap

import "strings"

// Config 加载器配置
type Config struct {
	// Name 配置文件名称（不含扩展名），默认 "beacon"
	Name string
	// Paths 配置文件搜索路径，默认 [".", "./config"]
	Paths []string
	// FileType 配置文件类型（yaml、json 等），默认 "yaml"
	FileType string
	// EnvPrefix 环境变量前缀，默认 "BEACON"
	EnvPrefix string
}

// setDefaults 补齐默认值
func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "beacon"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "BEACON"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
}

// New 创建本地配置加载器，cfg 为 nil 时使用默认配置
func New(cfg *Config, opts ...Option) (Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	return newLoader(cfg, opts...), nil
}
