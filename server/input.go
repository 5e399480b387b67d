package server

import (
	"encoding/json"

	"hangout/grid"
	"hangout/room"
)

// Envelope 所有 WebSocket 文本帧的外层结构
// 示例：{"type":"move","payload":{"from":[0,5],"to":[13,0]}}
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// 入站消息类型
const (
	TypeJoinRoom     = "joinRoom"
	TypeLeaveRoom    = "leaveRoom"
	TypeAvatarUpdate = "characterAvatarUpdate"
	TypeMove         = "move"
	TypeDance        = "dance"
	TypeChatMessage  = "chatMessage"
	TypePasswordChk  = "passwordCheck"
	TypeItemsUpdate  = "itemsUpdate"
)

type JoinRoomInput struct {
	RoomID    string `json:"roomId"`
	AvatarURL string `json:"avatarUrl"`
}

type AvatarInput struct {
	AvatarURL string `json:"avatarUrl"`
}

// MoveInput from 为客户端观察到的当前格子，to 为目标格子
type MoveInput struct {
	From grid.Cell `json:"from"`
	To   grid.Cell `json:"to"`
}

type ChatInput struct {
	Message string `json:"message"`
}

type PasswordInput struct {
	Password string `json:"password"`
}

type ItemsInput struct {
	Items []room.Item `json:"items"`
}
