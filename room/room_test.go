package room

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"hangout/grid"
)

// recorder 记录房间发出的事件
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func newTestRoom(t *testing.T, def Definition) (*Room, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts := DefaultOptions()
	opts.Sink = rec
	opts.Seed = 42
	return New(def, opts), rec
}

func bathtubRoom() Definition {
	return Definition{
		ID:       "bath",
		Name:     "Bathroom",
		Password: "secret",
		Items: []Item{
			{Name: "bathtub", Size: [2]int{4, 2}, GridPosition: grid.Cell{0, 0}},
			{Name: "rugRound", Size: [2]int{4, 4}, GridPosition: grid.Cell{6, 6}, Walkable: true},
			{Name: "bathroomMirror", Size: [2]int{2, 1}, GridPosition: grid.Cell{8, 0}, Wall: true},
		},
	}
}

func TestRoom_RebuildGridBlocksPlainFootprints(t *testing.T) {
	r, _ := newTestRoom(t, bathtubRoom())
	w, h := r.GridSize()
	require.Equal(t, 14, w)
	require.Equal(t, 14, h)

	for x := 0; x < 4; x++ {
		for y := 0; y < 2; y++ {
			assert.False(t, r.IsWalkable(grid.Cell{x, y}), "bathtub cell (%d,%d)", x, y)
		}
	}
	assert.True(t, r.IsWalkable(grid.Cell{4, 0}))
	assert.True(t, r.IsWalkable(grid.Cell{0, 2}))
	assert.True(t, r.IsWalkable(grid.Cell{7, 7}), "rug never blocks")
	assert.True(t, r.IsWalkable(grid.Cell{8, 0}), "wall item never blocks")
}

func TestRoom_JoinAndLeave(t *testing.T) {
	r, rec := newTestRoom(t, bathtubRoom())

	c, err := r.Join("a", JoinOptions{AvatarURL: "https://example.com/a.glb"})
	require.NoError(t, err)
	assert.Equal(t, "a", c.ID)
	assert.True(t, r.IsWalkable(c.Position))
	assert.GreaterOrEqual(t, c.Session, 0)
	assert.Less(t, c.Session, 1000)
	assert.Equal(t, 1, r.CharacterCount())

	evs := rec.all()
	require.Len(t, evs, 2)
	joined, ok := evs[0].(CharacterJoined)
	require.True(t, ok)
	assert.Equal(t, "a", joined.ID)
	assert.Equal(t, 2, joined.Map.GridDivision)
	assert.Equal(t, [2]int{7, 7}, joined.Map.Size)
	assert.Len(t, joined.Map.Items, 3)
	roster, ok := evs[1].(RosterChanged)
	require.True(t, ok)
	assert.True(t, roster.Membership)
	assert.Equal(t, []string{"a"}, roster.Recipients)

	_, err = r.Join("a", JoinOptions{})
	assert.ErrorIs(t, err, ErrAlreadyInRoom)

	_, err = r.Join("b", JoinOptions{})
	require.NoError(t, err)
	ids := []string{}
	for _, c := range r.Characters() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)

	rec.reset()
	assert.True(t, r.Leave("a"))
	assert.False(t, r.Leave("a"), "second leave is a no-op")
	assert.False(t, r.Leave("never-joined"))
	assert.Equal(t, 1, r.CharacterCount())
	evs = rec.all()
	require.Len(t, evs, 1)
	assert.Equal(t, []string{"b"}, evs[0].(RosterChanged).Recipients)
}

func TestRoom_RequestMove(t *testing.T) {
	r, rec := newTestRoom(t, bathtubRoom())
	_, err := r.Join("a", JoinOptions{})
	require.NoError(t, err)
	rec.reset()

	path, err := r.RequestMove("a", grid.Cell{0, 5}, grid.Cell{13, 0})
	require.NoError(t, err)
	assert.Equal(t, grid.Cell{0, 5}, path[0])
	assert.Equal(t, grid.Cell{13, 0}, path[len(path)-1])
	for _, c := range path {
		assert.True(t, r.IsWalkable(c))
	}

	c, ok := r.Character("a")
	require.True(t, ok)
	assert.Equal(t, grid.Cell{0, 5}, c.Position)
	assert.Equal(t, path, c.Path)

	evs := rec.all()
	require.Len(t, evs, 1)
	moved := evs[0].(CharacterMoved)
	assert.Equal(t, "a", moved.Character.ID)
	assert.Equal(t, path, moved.Character.Path)
}

func TestRoom_RequestMoveRejectedLeavesStateUnchanged(t *testing.T) {
	r, rec := newTestRoom(t, bathtubRoom())
	before, err := r.Join("a", JoinOptions{})
	require.NoError(t, err)
	rec.reset()

	// 终点在浴缸内
	_, err = r.RequestMove("a", grid.Cell{5, 5}, grid.Cell{1, 1})
	assert.ErrorIs(t, err, ErrNoPath)
	// 起点越界
	_, err = r.RequestMove("a", grid.Cell{-1, 5}, grid.Cell{5, 5})
	assert.ErrorIs(t, err, ErrNoPath)

	after, _ := r.Character("a")
	assert.Equal(t, before.Position, after.Position)
	assert.Empty(t, after.Path)
	assert.Empty(t, rec.all())

	_, err = r.RequestMove("ghost", grid.Cell{5, 5}, grid.Cell{6, 6})
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestRoom_RequestMoveFromStoredPosition(t *testing.T) {
	opts := DefaultOptions()
	opts.TrustClientOrigin = false
	opts.Seed = 7
	r := New(bathtubRoom(), opts)
	c, err := r.Join("a", JoinOptions{})
	require.NoError(t, err)

	path, err := r.RequestMove("a", grid.Cell{13, 13}, grid.Cell{13, 12})
	require.NoError(t, err)
	assert.Equal(t, c.Position, path[0], "client-supplied origin is ignored")
}

func TestRoom_PasswordGate(t *testing.T) {
	r, rec := newTestRoom(t, bathtubRoom())
	_, err := r.Join("a", JoinOptions{})
	require.NoError(t, err)
	rec.reset()

	ok, err := r.CheckPassword("a", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
	c, _ := r.Character("a")
	assert.False(t, c.CanUpdateRoom)

	ok, err = r.CheckPassword("a", "secret")
	require.NoError(t, err)
	assert.True(t, ok)
	c, _ = r.Character("a")
	assert.True(t, c.CanUpdateRoom)

	evs := rec.all()
	require.Len(t, evs, 2)
	assert.Equal(t, PasswordChecked{Room: "bath", To: "a", OK: false}, evs[0])
	assert.Equal(t, PasswordChecked{Room: "bath", To: "a", OK: true}, evs[1])

	_, err = r.CheckPassword("ghost", "secret")
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestRoom_PasswordGateBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	def := bathtubRoom()
	def.Password = string(hash)
	r, _ := newTestRoom(t, def)
	_, err = r.Join("a", JoinOptions{})
	require.NoError(t, err)

	ok, _ := r.CheckPassword("a", string(hash))
	assert.False(t, ok, "the hash itself is not the password")
	ok, _ = r.CheckPassword("a", "hunter2")
	assert.True(t, ok)
}

func TestRoom_NoPasswordNeverGrants(t *testing.T) {
	def := bathtubRoom()
	def.Password = ""
	r, _ := newTestRoom(t, def)
	_, err := r.Join("a", JoinOptions{})
	require.NoError(t, err)
	ok, _ := r.CheckPassword("a", "")
	assert.False(t, ok)
}

func TestRoom_SetItemsUnauthorized(t *testing.T) {
	r, rec := newTestRoom(t, bathtubRoom())
	_, err := r.Join("a", JoinOptions{})
	require.NoError(t, err)
	rec.reset()
	before := r.Map().Items

	err = r.SetItems("a", []Item{{Name: "plant", Size: [2]int{1, 1}}})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, before, r.Map().Items)
	assert.Empty(t, rec.all())

	err = r.SetItems("ghost", []Item{{Name: "plant", Size: [2]int{1, 1}}})
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestRoom_SetItemsRejectsEmptyAndInvalid(t *testing.T) {
	r, rec := newTestRoom(t, bathtubRoom())
	_, err := r.Join("a", JoinOptions{})
	require.NoError(t, err)
	_, err = r.CheckPassword("a", "secret")
	require.NoError(t, err)
	rec.reset()
	before := r.Map().Items

	assert.ErrorIs(t, r.SetItems("a", nil), ErrEmptyLayout)
	assert.ErrorIs(t, r.SetItems("a", []Item{}), ErrEmptyLayout)
	assert.ErrorIs(t, r.SetItems("a", []Item{
		{Name: "table", Size: [2]int{4, 2}, GridPosition: grid.Cell{0, 0}},
		{Name: "plant", Size: [2]int{1, 1}, GridPosition: grid.Cell{3, 1}},
	}), ErrInvalidPlacement)
	assert.ErrorIs(t, r.SetItems("a", []Item{
		{Name: "table", Size: [2]int{4, 2}, GridPosition: grid.Cell{12, 0}},
	}), ErrInvalidPlacement)

	assert.Equal(t, before, r.Map().Items)
	assert.Empty(t, rec.all())
}

func TestRoom_SetItemsRebuildsGridAndRespawns(t *testing.T) {
	r, rec := newTestRoom(t, bathtubRoom())
	_, err := r.Join("a", JoinOptions{})
	require.NoError(t, err)
	_, err = r.Join("b", JoinOptions{})
	require.NoError(t, err)
	_, err = r.RequestMove("b", grid.Cell{5, 5}, grid.Cell{9, 9})
	require.NoError(t, err)
	_, err = r.CheckPassword("a", "secret")
	require.NoError(t, err)
	rec.reset()

	newItems := []Item{
		{Name: "bedDouble", Size: [2]int{5, 5}, GridPosition: grid.Cell{9, 9}, Rotation: 2},
	}
	require.NoError(t, r.SetItems("a", newItems))

	// 浴缸移走后原位置可行走，新床阻挡
	assert.True(t, r.IsWalkable(grid.Cell{0, 0}))
	assert.False(t, r.IsWalkable(grid.Cell{9, 9}))
	assert.False(t, r.IsWalkable(grid.Cell{13, 13}))
	assert.Equal(t, newItems, r.Map().Items)

	for _, c := range r.Characters() {
		assert.Empty(t, c.Path, "paths are cleared on layout edit")
		assert.True(t, r.IsWalkable(c.Position), "character %s respawned on a walkable cell", c.ID)
	}

	evs := rec.all()
	require.Len(t, evs, 1)
	changed := evs[0].(ItemsChanged)
	assert.Equal(t, []string{"a", "b"}, changed.Recipients)
	assert.Equal(t, newItems, changed.Map.Items)
	assert.Equal(t, "bath", changed.Definition.ID)
	assert.Equal(t, "secret", changed.Definition.Password)
	assert.Equal(t, newItems, changed.Definition.Items)
}

func TestRoom_SetItemsInputIsCopied(t *testing.T) {
	r, _ := newTestRoom(t, bathtubRoom())
	_, _ = r.Join("a", JoinOptions{})
	_, _ = r.CheckPassword("a", "secret")
	items := []Item{{Name: "plant", Size: [2]int{1, 1}, GridPosition: grid.Cell{3, 3}}}
	require.NoError(t, r.SetItems("a", items))
	items[0].GridPosition = grid.Cell{4, 4}
	assert.False(t, r.IsWalkable(grid.Cell{3, 3}))
	assert.Equal(t, grid.Cell{3, 3}, r.Map().Items[0].GridPosition)
}

func TestRoom_NoFreeCell(t *testing.T) {
	def := Definition{ID: "full", Name: "Full", Items: []Item{
		{Name: "slab", Size: [2]int{14, 14}},
	}}
	r, _ := newTestRoom(t, def)
	_, err := r.PlaceCharacter()
	assert.ErrorIs(t, err, ErrNoFreeCell)

	c, err := r.Join("a", JoinOptions{})
	require.NoError(t, err, "join still succeeds")
	assert.Equal(t, grid.Cell{0, 0}, c.Position)
}

func TestRoom_NoRandomCellFallsBackToScan(t *testing.T) {
	// 只剩 (13,13) 可行走
	def := Definition{ID: "nook", Name: "Nook", Items: []Item{
		{Name: "slab", Size: [2]int{13, 14}},
		{Name: "shelf", Size: [2]int{1, 13}, GridPosition: grid.Cell{13, 0}},
	}}
	rec := &recorder{}
	opts := DefaultOptions()
	opts.Sink = rec
	opts.Seed = 42
	opts.SpawnAttempts = 1
	r := New(def, opts)

	c, err := r.Join("a", JoinOptions{})
	require.NoError(t, err)
	assert.Equal(t, grid.Cell{13, 13}, c.Position)
	assert.True(t, r.IsWalkable(c.Position))
}

func TestRoom_OversizedStoredItemIsClipped(t *testing.T) {
	def := Definition{ID: "stale", Name: "Stale", Items: []Item{
		{Name: "slab", Size: [2]int{math.MaxInt, 1}, GridPosition: grid.Cell{10, 0}},
	}}
	r, _ := newTestRoom(t, def)

	assert.True(t, r.IsWalkable(grid.Cell{9, 0}))
	for x := 10; x < 14; x++ {
		assert.False(t, r.IsWalkable(grid.Cell{x, 0}))
	}
	assert.True(t, r.IsWalkable(grid.Cell{10, 1}))
}

func TestRoom_SetItemsRejectsHugeSize(t *testing.T) {
	r, rec := newTestRoom(t, bathtubRoom())
	_, err := r.Join("a", JoinOptions{})
	require.NoError(t, err)
	_, err = r.CheckPassword("a", "secret")
	require.NoError(t, err)
	rec.reset()
	before := r.Map().Items

	assert.ErrorIs(t, r.SetItems("a", []Item{
		{Name: "slab", Size: [2]int{math.MaxInt, 1}, GridPosition: grid.Cell{1, 0}},
	}), ErrInvalidPlacement)
	assert.ErrorIs(t, r.SetItems("a", []Item{
		{Name: "plant", Size: [2]int{1, 1}, GridPosition: grid.Cell{math.MaxInt, 0}},
	}), ErrInvalidPlacement)

	assert.Equal(t, before, r.Map().Items)
	assert.Empty(t, rec.all())
}

func TestRoom_AvatarDanceChat(t *testing.T) {
	r, rec := newTestRoom(t, bathtubRoom())
	_, _ = r.Join("a", JoinOptions{AvatarURL: "old"})
	_, _ = r.Join("b", JoinOptions{})
	rec.reset()

	require.NoError(t, r.UpdateAvatar("a", "new"))
	c, _ := r.Character("a")
	assert.Equal(t, "new", c.AvatarURL)
	require.NoError(t, r.Dance("b"))
	require.NoError(t, r.Chat("a", "hello"))

	evs := rec.all()
	require.Len(t, evs, 3)
	roster := evs[0].(RosterChanged)
	assert.False(t, roster.Membership)
	assert.Equal(t, CharacterDanced{Room: "bath", Recipients: []string{"a", "b"}, ID: "b"}, evs[1])
	assert.Equal(t, ChatMessage{Room: "bath", Recipients: []string{"a", "b"}, ID: "a", Message: "hello"}, evs[2])

	assert.ErrorIs(t, r.UpdateAvatar("ghost", "x"), ErrNotInRoom)
	assert.ErrorIs(t, r.Dance("ghost"), ErrNotInRoom)
	assert.ErrorIs(t, r.Chat("ghost", "x"), ErrNotInRoom)
}

func TestRoom_ConcurrentOperations(t *testing.T) {
	r, _ := newTestRoom(t, bathtubRoom())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			c, err := r.Join(id, JoinOptions{})
			if err != nil {
				return
			}
			for j := 0; j < 20; j++ {
				_, _ = r.RequestMove(id, c.Position, grid.Cell{13, 13})
				_ = r.Chat(id, "hi")
			}
			if i%2 == 0 {
				r.Leave(id)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, r.CharacterCount())
	assert.Len(t, r.Characters(), 8)
}
