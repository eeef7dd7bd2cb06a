package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是服务的全量配置（YAML）。
// 缺省值见 Default；Load 在解析后补齐缺省并校验。
type Config struct {
	Server struct {
		Addr string `yaml:"addr"` // HTTP 监听地址
	} `yaml:"server"`

	Redis struct {
		Addr          string `yaml:"addr"`
		CacheDB       int    `yaml:"cache_db"`       // 推荐结果缓存库
		RatingsDB     int    `yaml:"ratings_db"`     // 评分数据库
		RatingsPrefix string `yaml:"ratings_prefix"` // 评分 Hash key 前缀
	} `yaml:"redis"`

	Cache struct {
		TTLSeconds int    `yaml:"ttl_seconds"`
		KeyPrefix  string `yaml:"key_prefix"`
	} `yaml:"cache"`

	Recommend struct {
		TopK    int      `yaml:"top_k"`   // 落缓存的完整列表长度
		Workers int      `yaml:"workers"` // 计算/刷新并发上限
		Rules   []string `yaml:"rules"`   // CEL 排除规则
	} `yaml:"recommend"`

	Log struct {
		Level string `yaml:"level"` // debug / info / warn / error
	} `yaml:"log"`
}

// Default 返回内置缺省配置。
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8000"
	cfg.Redis.Addr = "127.0.0.1:6379"
	cfg.Redis.CacheDB = 0
	cfg.Redis.RatingsDB = 1
	cfg.Redis.RatingsPrefix = "rating:"
	cfg.Cache.TTLSeconds = 600
	cfg.Cache.KeyPrefix = "reco:"
	cfg.Recommend.TopK = 10
	cfg.Recommend.Workers = 4
	cfg.Log.Level = "info"
	return cfg
}

// Load 从 YAML 文件加载配置；path 为空时直接返回缺省配置。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cfg.fillDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = d.Redis.Addr
	}
	if c.Redis.RatingsPrefix == "" {
		c.Redis.RatingsPrefix = d.Redis.RatingsPrefix
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = d.Cache.TTLSeconds
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = d.Cache.KeyPrefix
	}
	if c.Recommend.TopK <= 0 {
		c.Recommend.TopK = d.Recommend.TopK
	}
	if c.Recommend.Workers <= 0 {
		c.Recommend.Workers = d.Recommend.Workers
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

func (c *Config) validate() error {
	if c.Redis.CacheDB == c.Redis.RatingsDB {
		return fmt.Errorf("redis: cache_db and ratings_db must differ (both %d)", c.Redis.CacheDB)
	}
	return nil
}

// CacheTTL 返回缓存 TTL。
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
