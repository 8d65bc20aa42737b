// 文件: pkg/config/config.go
// 配置加载：YAML 文件 → .env → 环境变量，后者覆盖前者

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"max.com/optpricer/pkg/lattice"
	"max.com/optpricer/pkg/quote"
)

// 环境变量
const (
	EnvDepth        = "PRICER_DEPTH"
	EnvTree         = "PRICER_TREE"
	EnvSink         = "PRICER_SINK"
	EnvLogLevel     = "LOG_LEVEL"
	EnvNATSURL      = "NATS_URL"
	EnvKafkaBrokers = "KAFKA_BROKERS"
)

// 发布目的地
const (
	SinkNone  = "none"
	SinkNATS  = "nats"
	SinkKafka = "kafka"
)

// Config 全部配置
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Pricer   PricerConfig   `yaml:"pricer"`
	Calendar CalendarConfig `yaml:"calendar"`
	Sink     SinkConfig     `yaml:"sink"`
}

// PricerConfig 格点定价参数
type PricerConfig struct {
	Tree        string  `yaml:"tree"`
	Depth       int     `yaml:"depth"`
	Tolerance   float64 `yaml:"tolerance"`
	VolBump     float64 `yaml:"vol_bump"`
	RateBump    float64 `yaml:"rate_bump"`
	Forward     float64 `yaml:"forward"`
	Smoothing   bool    `yaml:"smoothing"`
	ThetaPerDay bool    `yaml:"theta_per_day"`
}

// CalendarConfig 交易日历
type CalendarConfig struct {
	Enabled  bool   `yaml:"enabled"`
	FromYear int    `yaml:"from_year"`
	ToYear   int    `yaml:"to_year"`
	Closures string `yaml:"closures"` // 额外休市 CSV 路径，可空
}

// SinkConfig 报价发布
type SinkConfig struct {
	Kind         string   `yaml:"kind"` // none / nats / kafka，多个用逗号分隔
	NATSURL      string   `yaml:"nats_url"`
	Subject      string   `yaml:"subject"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	Topic        string   `yaml:"topic"`
	NodeID       int64    `yaml:"node_id"`
}

// Default 默认配置
func Default() Config {
	return Config{
		LogLevel: "info",
		Pricer: PricerConfig{
			Tree:        lattice.Binomial.Name(),
			Depth:       lattice.DefaultDepth,
			Tolerance:   lattice.DefaultTolerance,
			VolBump:     lattice.DefaultVolBump,
			RateBump:    lattice.DefaultRateBump,
			Forward:     lattice.DefaultForward,
			ThetaPerDay: true,
		},
		Calendar: CalendarConfig{
			FromYear: 2000,
			ToYear:   2050,
		},
		Sink: SinkConfig{
			Kind:    SinkNone,
			NATSURL: "nats://127.0.0.1:4222",
			Subject: quote.DefaultSubject,
			Topic:   quote.DefaultTopic,
		},
	}
}

// Load 依次叠加：默认值、YAML 文件 (path 为空则跳过)、envFiles 中存在的 .env 文件、进程环境变量
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := cfg.decode(f); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	for _, ef := range envFiles {
		if _, err := os.Stat(ef); errors.Is(err, os.ErrNotExist) {
			continue
		}
		// 不覆盖已存在的环境变量
		if err := godotenv.Load(ef); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", ef, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv 环境变量覆盖
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDepth); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDepth, err)
		}
		c.Pricer.Depth = n
	}
	if v, ok := lookup(EnvTree); ok && v != "" {
		c.Pricer.Tree = v
	}
	if v, ok := lookup(EnvSink); ok && v != "" {
		c.Sink.Kind = strings.ToLower(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvNATSURL); ok && v != "" {
		c.Sink.NATSURL = v
	}
	if v, ok := lookup(EnvKafkaBrokers); ok && v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		c.Sink.KafkaBrokers = brokers
	}
	return nil
}

// Validate 检查配置取值
func (c Config) Validate() error {
	if _, err := lattice.ParseTree(c.Pricer.Tree); err != nil {
		return err
	}
	if c.Pricer.Depth <= 0 {
		return fmt.Errorf("pricer.depth must be positive, got %d", c.Pricer.Depth)
	}
	if !(c.Pricer.Tolerance > 0) {
		return fmt.Errorf("pricer.tolerance must be positive, got %v", c.Pricer.Tolerance)
	}
	if c.Pricer.VolBump == 0 || c.Pricer.RateBump == 0 {
		return errors.New("pricer bump sizes must be non-zero")
	}
	if c.Pricer.Forward < 0 {
		return fmt.Errorf("pricer.forward must be non-negative, got %v", c.Pricer.Forward)
	}
	if c.Calendar.ToYear < c.Calendar.FromYear {
		return fmt.Errorf("calendar years %d..%d", c.Calendar.FromYear, c.Calendar.ToYear)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	for _, kind := range c.Sink.Kinds() {
		switch kind {
		case SinkNATS:
			if c.Sink.NATSURL == "" {
				return errors.New("sink.nats_url is required for nats sink")
			}
		case SinkKafka:
			if len(c.Sink.KafkaBrokers) == 0 {
				return errors.New("sink.kafka_brokers is required for kafka sink")
			}
		default:
			return fmt.Errorf("unknown sink %q", kind)
		}
	}
	return nil
}

// Kinds 启用的发布目的地，去掉 none 和空项
func (c SinkConfig) Kinds() []string {
	var out []string
	for _, k := range strings.Split(c.Kind, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || k == SinkNone {
			continue
		}
		out = append(out, k)
	}
	return out
}

// Level logrus 日志级别
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// TreeKind 配置的树形
func (c PricerConfig) TreeKind() (lattice.Tree, error) {
	return lattice.ParseTree(c.Tree)
}

// Options 转成 lattice.Pricer 的构造选项，不含日历和日志
func (c PricerConfig) Options() []lattice.Option {
	return []lattice.Option{
		lattice.WithBumps(c.VolBump, c.RateBump),
		lattice.WithForward(c.Forward),
		lattice.WithSmoothing(c.Smoothing),
		lattice.WithThetaPerDay(c.ThetaPerDay),
	}
}
