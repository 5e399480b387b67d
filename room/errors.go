package room

import "errors"

var (
	// ErrNotInRoom 角色不在该房间
	ErrNotInRoom = errors.New("character not in room")
	// ErrAlreadyInRoom 同一连接重复加入
	ErrAlreadyInRoom = errors.New("character already in room")
	// ErrNoPath 目标不可达或端点不可行走
	ErrNoPath = errors.New("no path")
	// ErrUnauthorized 未通过密码校验即尝试编辑布局
	ErrUnauthorized = errors.New("not authorized to update room")
	// ErrEmptyLayout 拒绝空布局，防止误清空
	ErrEmptyLayout = errors.New("empty layout")
	// ErrInvalidPlacement 越界或碰撞
	ErrInvalidPlacement = errors.New("invalid placement")
	// ErrNoFreeCell 有限次随机尝试内没有找到可行走格子
	ErrNoFreeCell = errors.New("no free walkable cell")
)
