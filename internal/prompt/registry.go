// Package prompt 管理提示词模板与信号 JSON schema，支持配置文件热更新。
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"trendpilot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileConfig 映射 prompts.yaml。
type FileConfig struct {
	System       string         `yaml:"system"`
	User         string         `yaml:"user"`
	SignalSchema map[string]any `yaml:"signal_schema"`
}

// Snapshot 是某一版本的模板集。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time

	system *template.Template
	user   *template.Template
	schema *jsonschema.Schema
}

// Registry 持有当前模板，可并发读取。
type Registry struct {
	path string

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewDefault 返回使用内置模板的 registry。
func NewDefault() *Registry {
	r := &Registry{}
	snap, err := buildSnapshot(FileConfig{}, 1)
	if err != nil {
		panic(fmt.Sprintf("prompt: builtin templates invalid: %v", err))
	}
	r.snapshot = snap
	return r
}

// NewRegistry 读取模板文件并监听更新；path 为空时使用内置模板。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return NewDefault(), nil
	}
	r, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := r.watch(); err != nil {
		return nil, err
	}
	return r, nil
}

func load(path string) (*Registry, error) {
	r := &Registry{path: path}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) watch() error {
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read prompt config failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("prompt 模板重载失败，保留旧版本: %v", err)
		}
	})
	v.WatchConfig()
	return nil
}

// Render 用 data 渲染系统与用户提示词。
func (r *Registry) Render(data any) (system, user string, err error) {
	snap := r.current()
	system, err = execute(snap.system, data)
	if err != nil {
		return "", "", fmt.Errorf("render system prompt: %w", err)
	}
	user, err = execute(snap.user, data)
	if err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return system, user, nil
}

// ValidateSignal 用当前 schema 校验已解码的 JSON 值。
func (r *Registry) ValidateSignal(v any) error {
	snap := r.current()
	if snap.schema == nil {
		return nil
	}
	return snap.schema.Validate(v)
}

// Version 返回当前模板版本号，每次重载递增。
func (r *Registry) Version() int64 {
	return r.current().Version
}

func (r *Registry) current() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

func (r *Registry) reload() error {
	cfg, err := readPromptFile(r.path)
	if err != nil {
		return err
	}
	r.mu.RLock()
	next := r.snapshot.Version + 1
	r.mu.RUnlock()
	snap, err := buildSnapshot(cfg, next)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = snap
	r.mu.Unlock()
	logger.Infof("prompt 模板已加载 v%d: %s", snap.Version, filepath.Base(r.path))
	return nil
}

func buildSnapshot(cfg FileConfig, version int64) (Snapshot, error) {
	systemText := strings.TrimSpace(cfg.System)
	if systemText == "" {
		systemText = DefaultSystem
	}
	userText := strings.TrimSpace(cfg.User)
	if userText == "" {
		userText = DefaultUser
	}
	system, err := template.New("system").Parse(systemText)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse system template: %w", err)
	}
	user, err := template.New("user").Parse(userText)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse user template: %w", err)
	}
	schemaDoc := cfg.SignalSchema
	if len(schemaDoc) == 0 {
		schemaDoc = DefaultSignalSchema
	}
	schema, err := compileSchema(schemaDoc)
	if err != nil {
		return Snapshot{}, fmt.Errorf("compile signal schema: %w", err)
	}
	return Snapshot{
		Version:  version,
		LoadedAt: time.Now(),
		system:   system,
		user:     user,
		schema:   schema,
	}, nil
}

func execute(tmpl *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func compileSchema(data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("signal.json", bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile("signal.json")
}

func readPromptFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read prompt config failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse prompt config failed: %w", err)
	}
	return cfg, nil
}
