package room

import "hangout/grid"

// Character 已加入房间的连接所对应的角色（服务端权威状态）
type Character struct {
	ID            string      `json:"id"`      // 连接标识，房间内唯一
	Session       int         `json:"session"` // 每次加入随机生成，仅供表现层重挂载
	Position      grid.Cell   `json:"position"`
	Path          []grid.Cell `json:"path"`
	AvatarURL     string      `json:"avatarUrl"`
	CanUpdateRoom bool        `json:"canUpdateRoom,omitempty"`
}

// snapshot 返回可安全跨 goroutine 传递的副本
func (c *Character) snapshot() Character {
	cp := *c
	if c.Path != nil {
		cp.Path = make([]grid.Cell, len(c.Path))
		copy(cp.Path, c.Path)
	} else {
		cp.Path = []grid.Cell{}
	}
	return cp
}

// JoinOptions 加入房间时客户端提供的外观信息
type JoinOptions struct {
	AvatarURL string
}
