package room

import "fmt"

// Summary 大厅列表中的一行
type Summary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	NbCharacters int    `json:"nbCharacters"`
}

// Registry 启动时加载的固定房间集合；加载后集合本身只读，无需加锁
type Registry struct {
	rooms []*Room
	byID  map[string]*Room
}

// NewRegistry 为每个定义构造一个房间（各自拥有独立网格）
func NewRegistry(defs []Definition, opts Options) (*Registry, error) {
	g := &Registry{byID: make(map[string]*Room, len(defs))}
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("room %q: empty id", def.Name)
		}
		if _, dup := g.byID[def.ID]; dup {
			return nil, fmt.Errorf("room %q: duplicate id", def.ID)
		}
		r := New(def, opts)
		g.rooms = append(g.rooms, r)
		g.byID[def.ID] = r
	}
	return g, nil
}

// Find 按 id 查找房间
func (g *Registry) Find(id string) (*Room, bool) {
	r, ok := g.byID[id]
	return r, ok
}

// Rooms 按加载顺序返回所有房间
func (g *Registry) Rooms() []*Room {
	out := make([]*Room, len(g.rooms))
	copy(out, g.rooms)
	return out
}

// Summarize 按需计算大厅汇总（不缓存；只读原子计数，不取房间锁）
func (g *Registry) Summarize() []Summary {
	out := make([]Summary, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, Summary{ID: r.ID, Name: r.Name, NbCharacters: r.CharacterCount()})
	}
	return out
}

// Definitions 所有房间的持久化定义，保持加载顺序
func (g *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r.Definition())
	}
	return out
}
