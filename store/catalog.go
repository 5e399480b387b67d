package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogItem 商店里的一种家具；原样发送给客户端，服务端从不修改
type CatalogItem struct {
	Name     string `json:"name" yaml:"name"`
	Size     [2]int `json:"size" yaml:"size"`
	Rotation int    `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	Wall     bool   `json:"wall,omitempty" yaml:"wall,omitempty"`
	Walkable bool   `json:"walkable,omitempty" yaml:"walkable,omitempty"`
}

// Catalog 家具名 → 定义
type Catalog map[string]CatalogItem

// Names 排序后的家具名
func (c Catalog) Names() []string {
	out := make([]string, 0, len(c))
	for name := range c {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoadCatalog 按扩展名读取 YAML 或 JSON 目录文件
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return ParseCatalog(data, filepath.Ext(path))
}

// ParseCatalog ext 为 ".json" 时按 JSON 解析，否则按 YAML
func ParseCatalog(data []byte, ext string) (Catalog, error) {
	var raw map[string]CatalogItem
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding catalog json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding catalog yaml: %w", err)
		}
	}

	cat := make(Catalog, len(raw))
	for key, it := range raw {
		if it.Name == "" {
			it.Name = key
		}
		if it.Name != key {
			return nil, fmt.Errorf("catalog entry %q: name %q does not match key", key, it.Name)
		}
		if it.Size[0] <= 0 || it.Size[1] <= 0 {
			return nil, fmt.Errorf("catalog entry %q: size %v must be positive", key, it.Size)
		}
		if it.Rotation < 0 || it.Rotation > 3 {
			return nil, fmt.Errorf("catalog entry %q: rotation %d out of range", key, it.Rotation)
		}
		cat[key] = it
	}
	return cat, nil
}
