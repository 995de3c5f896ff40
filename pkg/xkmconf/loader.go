package xkmconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置文件格式。
type Format string

// 支持的配置格式。
const (
	// FormatYAML YAML 格式。
	FormatYAML Format = "yaml"
	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// Loader 从文件加载 Settings 并缓存，支持 Reload 与 Watch。
//
// 并发安全：Settings 与 Reload 可在不同 goroutine 中调用。
type Loader struct {
	path   string
	format Format
	opts   *Options

	mu  sync.RWMutex
	cur Settings
}

// Open 读取并解析配置文件，返回可重载的 Loader。
// 根据扩展名自动识别格式（.yaml/.yml/.json）。
func Open(path string, opts ...Option) (*Loader, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	format := detectFormat(path)
	if !isValidFormat(format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	l := &Loader{
		path:   path,
		format: format,
		opts:   applyOptions(opts...),
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Load 一次性读取配置文件，不需要重载能力时使用。
func Load(path string, opts ...Option) (Settings, error) {
	l, err := Open(path, opts...)
	if err != nil {
		return Settings{}, err
	}
	return l.Settings(), nil
}

// LoadBytes 从内存数据解析配置，format 需显式指定。
func LoadBytes(data []byte, format Format, opts ...Option) (Settings, error) {
	if !isValidFormat(format) {
		return Settings{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return parseSettings(data, format, applyOptions(opts...))
}

// Settings 返回当前配置的快照。
func (l *Loader) Settings() Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

// Reload 重新读取配置文件并原子替换缓存。
// 失败时保留旧配置不变。
func (l *Loader) Reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	s, err := parseSettings(data, l.format, l.opts)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.cur = s
	l.mu.Unlock()
	return nil
}

// Path 返回配置文件路径。
func (l *Loader) Path() string {
	return l.path
}

// Format 返回配置文件格式。
func (l *Loader) Format() Format {
	return l.format
}

// parseSettings 解析原始数据并反序列化为 Settings。
// 缺省字段保持 DefaultSettings 的取值。
func parseSettings(data []byte, format Format, opts *Options) (Settings, error) {
	k := koanf.New(".")

	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return Settings{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	s := DefaultSettings()
	if err := k.Unmarshal(opts.Path, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// detectFormat 根据文件扩展名识别格式。
func detectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return ""
	}
}

// isValidFormat 检查格式是否受支持。
func isValidFormat(f Format) bool {
	return f == FormatYAML || f == FormatJSON
}
