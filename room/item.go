package room

import (
	"fmt"

	"hangout/grid"
)

// Item 房间内的一件家具
type Item struct {
	Name         string    `json:"name"`
	Size         [2]int    `json:"size"`         // 旋转前的 [w, h]，单位为格子
	GridPosition grid.Cell `json:"gridPosition"` // 左上角格子
	Rotation     int       `json:"rotation"`     // 0..3，四分之一圈
	Walkable     bool      `json:"walkable,omitempty"`
	Wall         bool      `json:"wall,omitempty"`
}

// Plain 既不可行走也不挂墙的普通家具：占据地面并阻挡寻路
func (it Item) Plain() bool { return !it.Walkable && !it.Wall }

// Rect 轴对齐矩形，单位为格子
type Rect struct {
	X, Y, W, H int
}

// Overlaps 标准区间重叠判断；边缘相接不算重叠
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && r.X+r.W > o.X &&
		r.Y < o.Y+o.H && r.Y+r.H > o.Y
}

// Within 矩形是否完全落在 [0,w)×[0,h) 内。只做减法比较，超大坐标或尺寸不会溢出。
func (r Rect) Within(w, h int) bool {
	return r.X >= 0 && r.Y >= 0 && r.W >= 0 && r.H >= 0 &&
		r.X <= w && r.Y <= h && r.W <= w-r.X && r.H <= h-r.Y
}

// Clip 与 [0,w)×[0,h) 求交；无交集时返回零值矩形
func (r Rect) Clip(w, h int) Rect {
	x, cw := clipSpan(r.X, r.W, w)
	y, ch := clipSpan(r.Y, r.H, h)
	if cw == 0 || ch == 0 {
		return Rect{}
	}
	return Rect{X: x, Y: y, W: cw, H: ch}
}

// clipSpan 区间 [pos, pos+length) 与 [0, limit) 的交集
func clipSpan(pos, length, limit int) (int, int) {
	if length <= 0 || pos >= limit {
		return 0, 0
	}
	start := max(pos, 0)
	var end int
	if pos >= 0 {
		end = pos + min(length, limit-pos)
	} else {
		end = min(pos+length, limit)
	}
	if end <= start {
		return 0, 0
	}
	return start, end - start
}

// EffectiveSize 旋转后的宽高：旋转 1、3 时交换
func EffectiveSize(size [2]int, rotation int) (int, int) {
	if rotation == 1 || rotation == 3 {
		return size[1], size[0]
	}
	return size[0], size[1]
}

// FootprintAt 物品放在 pos、旋转 rotation 时占据的矩形
func (it Item) FootprintAt(pos grid.Cell, rotation int) Rect {
	w, h := EffectiveSize(it.Size, rotation)
	return Rect{X: pos.X(), Y: pos.Y(), W: w, H: h}
}

// Footprint 物品当前位置与旋转下的占地矩形
func (it Item) Footprint() Rect {
	return it.FootprintAt(it.GridPosition, it.Rotation)
}

// validate 检查单个物品自身的字段，以及旋转后的占地是否在网格内
func (it Item) validate(gridW, gridH int) error {
	if it.Rotation < 0 || it.Rotation > 3 {
		return fmt.Errorf("item %q: rotation %d out of range", it.Name, it.Rotation)
	}
	if it.Size[0] <= 0 || it.Size[1] <= 0 {
		return fmt.Errorf("item %q: size %v must be positive", it.Name, it.Size)
	}
	if it.Size[0] > max(gridW, gridH) || it.Size[1] > max(gridW, gridH) {
		return fmt.Errorf("item %q: size %v larger than the %dx%d grid", it.Name, it.Size, gridW, gridH)
	}
	if !it.Footprint().Within(gridW, gridH) {
		return fmt.Errorf("item %q: footprint at %v out of bounds", it.Name, it.GridPosition)
	}
	return nil
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
