// Package grid 房间的可行走网格与寻路（纯内存，无 I/O）
package grid

// Cell 网格坐标 [x, y]，JSON 序列化为数组，与客户端格式一致
type Cell [2]int

// X 横坐标
func (c Cell) X() int { return c[0] }

// Y 纵坐标
func (c Cell) Y() int { return c[1] }

// Grid 固定尺寸 W×H 的布尔可行走网格
type Grid struct {
	width   int
	height  int
	blocked []bool // 行优先：index = y*width + x
}

// New 创建全部可行走的网格
func New(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Grid{
		width:   width,
		height:  height,
		blocked: make([]bool, width*height),
	}
}

// Width 网格宽度（格子数）
func (g *Grid) Width() int { return g.width }

// Height 网格高度（格子数）
func (g *Grid) Height() int { return g.height }

// InBounds 坐标是否落在 [0,W)×[0,H) 内
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

// Reset 将所有格子标记为可行走；每次全量重建前必须调用
func (g *Grid) Reset() {
	for i := range g.blocked {
		g.blocked[i] = false
	}
}

// Block 标记单个格子不可行走；越界时静默忽略
func (g *Grid) Block(x, y int) {
	if !g.InBounds(x, y) {
		return
	}
	g.blocked[y*g.width+x] = true
}

// IsWalkable 越界视为不可行走
func (g *Grid) IsWalkable(x, y int) bool {
	if !g.InBounds(x, y) {
		return false
	}
	return !g.blocked[y*g.width+x]
}

// WalkableCount 当前可行走格子数
func (g *Grid) WalkableCount() int {
	n := 0
	for _, b := range g.blocked {
		if !b {
			n++
		}
	}
	return n
}

// Clone 深拷贝
func (g *Grid) Clone() *Grid {
	c := &Grid{width: g.width, height: g.height, blocked: make([]bool, len(g.blocked))}
	copy(c.blocked, g.blocked)
	return c
}
