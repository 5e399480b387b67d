package grid

import (
	"container/heap"
	"math"
)

const (
	costStraight = 1.0
	costDiagonal = math.Sqrt2
)

// 固定的邻居方向顺序：先四个正交方向，再四个对角方向。
// 同代价节点的展开顺序由此决定，保证相同输入得到相同路径。
var directions = [8][2]int{
	{0, -1}, {1, 0}, {0, 1}, {-1, 0},
	{1, -1}, {1, 1}, {-1, 1}, {-1, -1},
}

// FindPath 8 方向 A* 最短路径（正交代价 1，对角代价 √2）。
// 对角移动要求两个相邻正交格都可行走（禁止切角）。
// 返回从 start 到 end（含两端）的格子序列；起点或终点不可行走、或不可达时返回 false。
func (g *Grid) FindPath(start, end Cell) ([]Cell, bool) {
	if !g.IsWalkable(start.X(), start.Y()) || !g.IsWalkable(end.X(), end.Y()) {
		return nil, false
	}
	if start == end {
		return []Cell{start}, true
	}

	n := g.width * g.height
	gScore := make([]float64, n)
	for i := range gScore {
		gScore[i] = math.Inf(1)
	}
	parent := make([]int, n)
	for i := range parent {
		parent[i] = -1
	}
	closed := make([]bool, n)

	startIdx := g.index(start.X(), start.Y())
	endIdx := g.index(end.X(), end.Y())
	gScore[startIdx] = 0

	open := &frontier{}
	var seq uint64
	heap.Push(open, &node{idx: startIdx, f: octile(start, end), h: octile(start, end), seq: seq})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if closed[cur.idx] {
			continue // 惰性删除：同一格子可能多次入堆
		}
		if cur.idx == endIdx {
			return g.reconstruct(parent, endIdx), true
		}
		closed[cur.idx] = true

		cx, cy := cur.idx%g.width, cur.idx/g.width
		for _, d := range directions {
			nx, ny := cx+d[0], cy+d[1]
			if !g.IsWalkable(nx, ny) {
				continue
			}
			step := costStraight
			if d[0] != 0 && d[1] != 0 {
				if !g.IsWalkable(cx+d[0], cy) || !g.IsWalkable(cx, cy+d[1]) {
					continue
				}
				step = costDiagonal
			}
			ni := g.index(nx, ny)
			if closed[ni] {
				continue
			}
			tentative := gScore[cur.idx] + step
			if tentative >= gScore[ni]-1e-9 {
				continue
			}
			gScore[ni] = tentative
			parent[ni] = cur.idx
			h := octile(Cell{nx, ny}, end)
			seq++
			heap.Push(open, &node{idx: ni, f: tentative + h, h: h, seq: seq})
		}
	}
	return nil, false
}

func (g *Grid) index(x, y int) int { return y*g.width + x }

func (g *Grid) reconstruct(parent []int, endIdx int) []Cell {
	var rev []Cell
	for i := endIdx; i != -1; i = parent[i] {
		rev = append(rev, Cell{i % g.width, i / g.width})
	}
	path := make([]Cell, len(rev))
	for i := range rev {
		path[i] = rev[len(rev)-1-i]
	}
	return path
}

// octile 8 方向网格上的可采纳启发函数
func octile(a, b Cell) float64 {
	dx := math.Abs(float64(a.X() - b.X()))
	dy := math.Abs(float64(a.Y() - b.Y()))
	return costStraight*(dx+dy) + (costDiagonal-2*costStraight)*math.Min(dx, dy)
}

// PathLength 路径的加权长度（正交 1，对角 √2）
func PathLength(path []Cell) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		dx := path[i].X() - path[i-1].X()
		dy := path[i].Y() - path[i-1].Y()
		if dx != 0 && dy != 0 {
			total += costDiagonal
		} else {
			total += costStraight
		}
	}
	return total
}

type node struct {
	idx int
	f   float64
	h   float64
	seq uint64
}

// frontier 最小堆：f 小者优先，f 相同时 h 小者优先，再按入堆顺序
type frontier []*node

func (q frontier) Len() int { return len(q) }

func (q frontier) Less(i, j int) bool {
	if math.Abs(q[i].f-q[j].f) > 1e-9 {
		return q[i].f < q[j].f
	}
	if math.Abs(q[i].h-q[j].h) > 1e-9 {
		return q[i].h < q[j].h
	}
	return q[i].seq < q[j].seq
}

func (q frontier) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *frontier) Push(x any) { *q = append(*q, x.(*node)) }

func (q *frontier) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}
