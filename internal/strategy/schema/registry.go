package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"strato/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Template 描述单个积木子类型：所属积木类型、说明和 settings 的 JSON schema。
type Template struct {
	Subtype     string                 `mapstructure:"subtype" yaml:"subtype"`
	Kind        string                 `mapstructure:"kind" yaml:"kind"`
	Description string                 `mapstructure:"description" yaml:"description"`
	Version     int                    `mapstructure:"version" yaml:"version"`
	Schema      map[string]interface{} `mapstructure:"schema" yaml:"schema"`

	schemaCompiled *jsonschema.Schema
}

// FileConfig 映射 blocks.yaml。
type FileConfig struct {
	Blocks map[string]Template `mapstructure:"blocks" yaml:"blocks"`
}

// Snapshot 公开的模板快照。
type Snapshot struct {
	Version   int64
	LoadedAt  time.Time
	Templates map[string]Template
}

// Registry 管理积木子类型模板，配置文件改动时热重载。
type Registry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewRegistry 读取配置文件并监听更新。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("block schema registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read block schema config failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("block schema reload failed: %v", err)
		}
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot 返回当前模板集。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Template 返回指定 kind/subtype 的模板。
func (r *Registry) Template(kind, subtype string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.snapshot.Templates[templateKey(kind, subtype)]
	return tpl, ok
}

// KnownSubtype reports whether the kind/subtype pair is registered.
func (r *Registry) KnownSubtype(kind, subtype string) bool {
	_, ok := r.Template(kind, subtype)
	return ok
}

// Subtypes lists registered subtypes for a kind, sorted.
func (r *Registry) Subtypes(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prefix := strings.ToLower(strings.TrimSpace(kind)) + "/"
	out := make([]string, 0, len(r.snapshot.Templates))
	for key := range r.snapshot.Templates {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out
}

// ValidateSettings 用模板的 JSON schema 校验积木 settings。
func (r *Registry) ValidateSettings(kind, subtype string, settings map[string]any) error {
	tpl, ok := r.Template(kind, subtype)
	if !ok {
		return fmt.Errorf("unknown block: %s/%s", kind, subtype)
	}
	return tpl.Validate(settings)
}

func (r *Registry) reload() error {
	cfg, err := readBlockFile(r.path)
	if err != nil {
		return err
	}
	templates := make(map[string]Template)
	for name, tpl := range cfg.Blocks {
		norm := normalizeTemplate(name, tpl)
		templates[templateKey(norm.Kind, norm.Subtype)] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:   r.snapshot.Version + 1,
		LoadedAt:  time.Now(),
		Templates: templates,
	}
	r.mu.Unlock()
	logger.Infof("Block schema registry loaded %d templates from %s", len(templates), filepath.Base(r.path))
	return nil
}

func templateKey(kind, subtype string) string {
	return strings.ToLower(strings.TrimSpace(kind)) + "/" + strings.ToLower(strings.TrimSpace(subtype))
}

func normalizeTemplate(name string, tpl Template) Template {
	tpl.Subtype = strings.ToLower(strings.TrimSpace(tpl.Subtype))
	if tpl.Subtype == "" {
		tpl.Subtype = strings.ToLower(strings.TrimSpace(name))
	}
	tpl.Kind = strings.ToLower(strings.TrimSpace(tpl.Kind))
	if tpl.Version <= 0 {
		tpl.Version = 1
	}
	tpl.Description = strings.TrimSpace(tpl.Description)
	if len(tpl.Schema) > 0 {
		if compiled, err := compileSchema(tpl.Schema); err != nil {
			logger.Errorf("block schema compile failed %s/%s: %v", tpl.Kind, tpl.Subtype, err)
		} else {
			tpl.schemaCompiled = compiled
		}
	}
	return tpl
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:   src.Version,
		LoadedAt:  src.LoadedAt,
		Templates: make(map[string]Template, len(src.Templates)),
	}
	for id, tpl := range src.Templates {
		dst.Templates[id] = tpl
	}
	return dst
}

func compileSchema(data map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func readBlockFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read block schema config failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse block schema config failed: %w", err)
	}
	return cfg, nil
}

// Validate 用编译好的 schema 校验 settings。没有 schema 则放行。
func (t Template) Validate(settings map[string]any) error {
	if t.schemaCompiled == nil {
		return nil
	}
	sanitized := sanitizeSettings(settings)
	return t.schemaCompiled.Validate(sanitized)
}

// sanitizeSettings 递归遍历 settings，把字符串形式的数字转成 float64，
// 兼容前端把 "14" 当 14 发过来的情况。
func sanitizeSettings(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = sanitizeSettings(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = sanitizeSettings(child)
		}
		return out
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return val
		}
		if num, err := strconv.ParseFloat(s, 64); err == nil {
			return num
		}
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}
