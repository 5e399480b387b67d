// Package room 房间状态引擎：家具布局、角色名单与由布局推导出的可行走网格。
// 所有变更都经由 Room 的方法完成，并在房间锁内串行执行；不同房间互不阻塞。
package room

import (
	"crypto/subtle"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"hangout/grid"
)

// Definition 持久化的房间定义；尺寸与细分数是运行期常量，不落盘
type Definition struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
	Items    []Item `json:"items"`
}

// Options 房间的运行期参数
type Options struct {
	Width             int  // 粗粒度单位
	Height            int  // 粗粒度单位
	GridDivision      int  // 每个粗粒度单位的格子数
	SpawnAttempts     int  // 随机落点的最大尝试次数
	TrustClientOrigin bool // 移动时是否以客户端上报的 from 作为寻路起点
	Seed              uint64
	Sink              EventSink
	Logger            *zap.SugaredLogger
}

// DefaultOptions 7×7、细分 2、最多尝试 100 次
func DefaultOptions() Options {
	return Options{
		Width:             7,
		Height:            7,
		GridDivision:      2,
		SpawnAttempts:     100,
		TrustClientOrigin: true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.GridDivision <= 0 {
		o.GridDivision = d.GridDivision
	}
	if o.SpawnAttempts <= 0 {
		o.SpawnAttempts = d.SpawnAttempts
	}
	if o.Sink == nil {
		o.Sink = discardSink{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	return o
}

// Room 一个相互隔离的虚拟空间
type Room struct {
	ID   string
	Name string

	size         [2]int
	gridDivision int
	password     string // 构造后不可变，读取无需加锁
	opts         Options
	sink         EventSink
	log          *zap.SugaredLogger

	mu         sync.Mutex
	items      []Item
	characters map[string]*Character
	order      []string // 加入顺序，名单按此顺序输出
	grid       *grid.Grid
	rng        *rand.Rand

	count atomic.Int32 // 供大厅汇总无锁读取
}

// New 按定义创建房间，并立即重建网格
func New(def Definition, opts Options) *Room {
	opts = opts.withDefaults()
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	r := &Room{
		ID:           def.ID,
		Name:         def.Name,
		size:         [2]int{opts.Width, opts.Height},
		gridDivision: opts.GridDivision,
		password:     def.Password,
		opts:         opts,
		sink:         opts.Sink,
		log:          opts.Logger.With("room", def.ID),
		items:        cloneItems(def.Items),
		characters:   make(map[string]*Character),
		grid:         grid.New(opts.Width*opts.GridDivision, opts.Height*opts.GridDivision),
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	if r.items == nil {
		r.items = []Item{}
	}
	r.rebuildGrid()
	return r
}

// GridSize 网格宽高（格子数）
func (r *Room) GridSize() (int, int) {
	return r.size[0] * r.gridDivision, r.size[1] * r.gridDivision
}

// CharacterCount 当前人数（无锁）
func (r *Room) CharacterCount() int { return int(r.count.Load()) }

// HasPassword 是否设置了编辑密码
func (r *Room) HasPassword() bool { return r.password != "" }

// rebuildGrid 先全部重置，再按普通物品的旋转后占地逐格阻挡。调用方需持有锁。
func (r *Room) rebuildGrid() {
	r.grid.Reset()
	for _, it := range r.items {
		if !it.Plain() {
			continue
		}
		// 只遍历落在网格内的部分；加载的历史数据未经过布局校验
		fp := it.Footprint().Clip(r.grid.Width(), r.grid.Height())
		for x := 0; x < fp.W; x++ {
			for y := 0; y < fp.H; y++ {
				r.grid.Block(fp.X+x, fp.Y+y)
			}
		}
	}
}

// placeCharacter 在有限次数内随机挑选一个可行走格子。调用方需持有锁。
func (r *Room) placeCharacter() (grid.Cell, error) {
	w, h := r.GridSize()
	if w <= 0 || h <= 0 {
		return grid.Cell{}, ErrNoFreeCell
	}
	for i := 0; i < r.opts.SpawnAttempts; i++ {
		x, y := r.rng.IntN(w), r.rng.IntN(h)
		if r.grid.IsWalkable(x, y) {
			return grid.Cell{x, y}, nil
		}
	}
	return grid.Cell{}, ErrNoFreeCell
}

// firstWalkable 按行扫描第一个可行走格子；全部被阻挡时返回 [0,0]。调用方需持有锁。
func (r *Room) firstWalkable() grid.Cell {
	w, h := r.GridSize()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if r.grid.IsWalkable(x, y) {
				return grid.Cell{x, y}
			}
		}
	}
	return grid.Cell{0, 0}
}

// PlaceCharacter 随机挑选一个可行走格子；找不到时返回 ErrNoFreeCell
func (r *Room) PlaceCharacter() (grid.Cell, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.placeCharacter()
}

// Join 创建角色并加入名单。
// 加入者收到 CharacterJoined 快照，房间收到 RosterChanged。
func (r *Room) Join(id string, opts JoinOptions) (Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.characters[id]; ok {
		return Character{}, fmt.Errorf("join %s: %w", r.ID, ErrAlreadyInRoom)
	}
	pos, err := r.placeCharacter()
	if err != nil {
		// 随机落点失败：按行扫描第一个可行走格子，仍找不到才退回原点；加入仍然成功
		pos = r.firstWalkable()
		r.log.Warnw("no free cell for new character, using fallback", "character", id, "position", pos)
	}
	c := &Character{
		ID:        id,
		Session:   r.rng.IntN(1000),
		Position:  pos,
		AvatarURL: opts.AvatarURL,
	}
	r.characters[id] = c
	r.order = append(r.order, id)
	r.count.Add(1)

	r.sink.Publish(CharacterJoined{Room: r.ID, ID: id, Map: r.mapState(), Characters: r.roster()})
	r.sink.Publish(RosterChanged{Room: r.ID, Recipients: r.recipients(), Characters: r.roster(), Membership: true})
	return c.snapshot(), nil
}

// Leave 移除角色；不在房间时返回 false（幂等）
func (r *Room) Leave(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.characters[id]; !ok {
		return false
	}
	delete(r.characters, id)
	for i, cid := range r.order {
		if cid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.count.Add(-1)

	r.sink.Publish(RosterChanged{Room: r.ID, Recipients: r.recipients(), Characters: r.roster(), Membership: true})
	return true
}

// RequestMove 从 from 寻路到 to。成功时更新角色位置与路径并广播；
// 失败时状态不变、不广播。
//
// 默认信任客户端上报的 from 作为起点（不与服务端记录的位置比对）；
// TrustClientOrigin 关闭时改为从服务端记录的位置出发。
func (r *Room) RequestMove(id string, from, to grid.Cell) ([]grid.Cell, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.characters[id]
	if !ok {
		return nil, ErrNotInRoom
	}
	origin := from
	if !r.opts.TrustClientOrigin {
		origin = c.Position
	}
	path, ok := r.grid.FindPath(origin, to)
	if !ok {
		return nil, fmt.Errorf("move %v -> %v: %w", origin, to, ErrNoPath)
	}
	c.Position = origin
	c.Path = path

	snap := c.snapshot()
	r.sink.Publish(CharacterMoved{Room: r.ID, Recipients: r.recipients(), Character: snap})
	return snap.Path, nil
}

// UpdateAvatar 更新外观并重新广播名单
func (r *Room) UpdateAvatar(id, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.characters[id]
	if !ok {
		return ErrNotInRoom
	}
	c.AvatarURL = url
	r.sink.Publish(RosterChanged{Room: r.ID, Recipients: r.recipients(), Characters: r.roster()})
	return nil
}

// Dance 无状态转发
func (r *Room) Dance(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.characters[id]; !ok {
		return ErrNotInRoom
	}
	r.sink.Publish(CharacterDanced{Room: r.ID, Recipients: r.recipients(), ID: id})
	return nil
}

// Chat 无状态转发，不校验内容
func (r *Room) Chat(id, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.characters[id]; !ok {
		return ErrNotInRoom
	}
	r.sink.Publish(ChatMessage{Room: r.ID, Recipients: r.recipients(), ID: id, Message: message})
	return nil
}

// CheckPassword 密码正确时授予编辑权限；结果只发给请求者。
// 未设置密码的房间永远不授予编辑权限。
func (r *Room) CheckPassword(id, candidate string) (bool, error) {
	// bcrypt 比较较慢，放在锁外
	ok := r.passwordMatches(candidate)

	r.mu.Lock()
	defer r.mu.Unlock()

	c, found := r.characters[id]
	if !found {
		return false, ErrNotInRoom
	}
	if ok {
		c.CanUpdateRoom = true
	}
	r.sink.Publish(PasswordChecked{Room: r.ID, To: id, OK: ok})
	return ok, nil
}

func (r *Room) passwordMatches(candidate string) bool {
	if r.password == "" {
		return false
	}
	if isBcryptHash(r.password) {
		return bcrypt.CompareHashAndPassword([]byte(r.password), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(r.password), []byte(candidate)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// SetItems 整体替换布局。需要请求者已通过密码校验；空布局、越界或碰撞一律拒绝且不改变状态。
// 成功后重建网格，清空所有路径并为每个角色重新随机落点，然后广播 ItemsChanged。
func (r *Room) SetItems(id string, items []Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.characters[id]
	if !ok {
		return ErrNotInRoom
	}
	if !c.CanUpdateRoom {
		return ErrUnauthorized
	}
	if len(items) == 0 {
		return ErrEmptyLayout
	}
	w, h := r.GridSize()
	if err := ValidateLayout(w, h, items); err != nil {
		return err
	}

	r.items = cloneItems(items)
	r.rebuildGrid()
	for _, cid := range r.order {
		ch := r.characters[cid]
		ch.Path = nil
		pos, err := r.placeCharacter()
		if err != nil {
			r.log.Warnw("no free cell after layout edit, keeping previous position",
				"character", cid, "position", ch.Position)
			continue
		}
		ch.Position = pos
	}

	r.sink.Publish(ItemsChanged{
		Room:       r.ID,
		Recipients: r.recipients(),
		Map:        r.mapState(),
		Characters: r.roster(),
		Definition: r.definition(),
	})
	return nil
}

// CanPlace 在当前布局上校验一次放置（拖拽预判用）
func (r *Room) CanPlace(item Item, pos grid.Cell, rotation, excluding int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, h := r.GridSize()
	return CanPlace(w, h, r.items, item, pos, rotation, excluding)
}

// IsWalkable 查询当前网格
func (r *Room) IsWalkable(c grid.Cell) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grid.IsWalkable(c.X(), c.Y())
}

// Map 地图快照
func (r *Room) Map() MapState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mapState()
}

// Characters 名单快照（按加入顺序）
func (r *Room) Characters() []Character {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roster()
}

// Character 单个角色快照
func (r *Room) Character(id string) (Character, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.characters[id]
	if !ok {
		return Character{}, false
	}
	return c.snapshot(), true
}

// Definition 持久化用的定义快照
func (r *Room) Definition() Definition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.definition()
}

func (r *Room) mapState() MapState {
	return MapState{GridDivision: r.gridDivision, Size: r.size, Items: cloneItems(r.items)}
}

func (r *Room) definition() Definition {
	return Definition{ID: r.ID, Name: r.Name, Password: r.password, Items: cloneItems(r.items)}
}

func (r *Room) roster() []Character {
	out := make([]Character, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.characters[id].snapshot())
	}
	return out
}

func (r *Room) recipients() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
