package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖的前缀，段与字段之间以双下划线分隔，
// 例如 TRENDPILOT_TRADE__TEST_MODE=false 覆盖 trade.test_mode。
const EnvPrefix = "TRENDPILOT_"

// Load 读取主配置及其 include 文件，叠加环境变量覆盖后填充默认值并校验。
func Load(path string) (*Config, error) {
	return newLoader(os.Environ()).load(path)
}

type loader struct {
	environ []string
}

func newLoader(environ []string) *loader {
	return &loader{environ: environ}
}

func (l *loader) load(path string) (*Config, error) {
	files, err := includeOrder(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeFile(v, file); err != nil {
			return nil, fmt.Errorf("读取配置文件失败 (%s): %w", file, err)
		}
	}
	l.applyEnvOverrides(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, decoderOptions); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	setKeys := make(keySet)
	for _, key := range v.AllKeys() {
		setKeys.mark(key)
	}
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides 把 TRENDPILOT_ 前缀的环境变量写入 viper，优先级高于文件。
func (l *loader) applyEnvOverrides(v *viper.Viper) {
	for _, kv := range l.environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		key := envKey(strings.TrimPrefix(name, EnvPrefix))
		if key == "" {
			continue
		}
		v.Set(key, value)
	}
}

func envKey(name string) string {
	parts := strings.Split(strings.ToLower(name), "__")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		parts[i] = p
	}
	return strings.Join(parts, ".")
}

func decoderOptions(dc *mapstructure.DecoderConfig) {
	dc.TagName = "toml"
	dc.WeaklyTypedInput = true
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		expandEnvHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// expandEnvHook 展开字符串中的 ${VAR}，密钥通常放在 .env 中。
func expandEnvHook() mapstructure.DecodeHookFuncKind {
	return func(from, _ reflect.Kind, data any) (any, error) {
		if from != reflect.String {
			return data, nil
		}
		str, _ := data.(string)
		if !strings.Contains(str, "$") {
			return data, nil
		}
		return os.ExpandEnv(str), nil
	}
}

func readFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v, nil
}

func mergeFile(dst *viper.Viper, path string) error {
	src, err := readFile(path)
	if err != nil {
		return err
	}
	return dst.MergeConfigMap(src.AllSettings())
}

// includeOrder 深度优先展开 include，被包含的文件排在包含者之前，
// 因此后合并的主配置可以覆盖公共片段。
func includeOrder(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("配置路径不能为空")
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	var (
		order    []string
		done     = map[string]bool{}
		visiting = map[string]bool{}
	)
	var walk func(string) error
	walk = func(file string) error {
		file = filepath.Clean(file)
		switch {
		case visiting[file]:
			return fmt.Errorf("include 存在循环引用: %s", file)
		case done[file]:
			return nil
		}
		visiting[file] = true
		includes, err := includesOf(file)
		if err != nil {
			return fmt.Errorf("解析 include 失败 (%s): %w", file, err)
		}
		for _, inc := range includes {
			if !filepath.IsAbs(inc) {
				inc = filepath.Join(filepath.Dir(file), inc)
			}
			if err := walk(inc); err != nil {
				return err
			}
		}
		visiting[file] = false
		done[file] = true
		order = append(order, file)
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return order, nil
}

// includesOf 返回文件中 include 字段列出的路径，支持单个字符串或字符串数组。
func includesOf(path string) ([]string, error) {
	v, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var items []any
	switch raw := v.Get("include").(type) {
	case nil:
		return nil, nil
	case string:
		items = []any{raw}
	case []any:
		items = raw
	case []string:
		for _, s := range raw {
			items = append(items, s)
		}
	default:
		return nil, fmt.Errorf("include 必须是字符串或字符串数组")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include 只支持字符串")
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
