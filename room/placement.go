package room

import (
	"fmt"

	"hangout/grid"
)

// CanPlace 判断 item 以 rotation 放到 pos 是否合法（纯函数，无副作用）。
// excluding 为 items 中正在被拖动的物品下标，不参与碰撞；传 -1 表示不排除。
//
// 规则：占地必须完全在 [0,gridW)×[0,gridH) 内；可行走或挂墙物品不参与碰撞；
// 普通物品不能与其他普通物品的占地矩形重叠（边缘相接不算）。
func CanPlace(gridW, gridH int, items []Item, item Item, pos grid.Cell, rotation, excluding int) bool {
	fp := item.FootprintAt(pos, rotation)
	if fp.W <= 0 || fp.H <= 0 || !fp.Within(gridW, gridH) {
		return false
	}
	if !item.Plain() {
		return true
	}
	for i, other := range items {
		if i == excluding || !other.Plain() {
			continue
		}
		// fp 已在网格内，只需比较对方落在网格内的部分
		if fp.Overlaps(other.Footprint().Clip(gridW, gridH)) {
			return false
		}
	}
	return true
}

// ValidateLayout 服务端权威校验整份布局：先逐个检查字段与边界，
// 全部落在网格内后再做两两碰撞，每个物品都必须能放在自身位置上。
func ValidateLayout(gridW, gridH int, items []Item) error {
	for _, it := range items {
		if err := it.validate(gridW, gridH); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPlacement, err)
		}
	}
	for i, it := range items {
		if !CanPlace(gridW, gridH, items, it, it.GridPosition, it.Rotation, i) {
			return fmt.Errorf("%w: item %d (%s) at %v", ErrInvalidPlacement, i, it.Name, it.GridPosition)
		}
	}
	return nil
}
