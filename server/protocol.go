package server

import (
	"encoding/json"

	"hangout/room"
	"hangout/store"
)

// 出站消息类型
const (
	TypeWelcome           = "welcome"
	TypeRoomJoined        = "roomJoined"
	TypeRooms             = "rooms"
	TypeCharacters        = "characters"
	TypePlayerMove        = "playerMove"
	TypePlayerDance       = "playerDance"
	TypePlayerChatMessage = "playerChatMessage"
	TypePasswordSuccess   = "passwordCheckSuccess"
	TypePasswordFail      = "passwordCheckFail"
	TypeMapUpdate         = "mapUpdate"
)

type WelcomeOutput struct {
	Rooms []room.Summary `json:"rooms"`
	Items store.Catalog  `json:"items"`
}

type RoomJoinedOutput struct {
	Map        room.MapState    `json:"map"`
	Characters []room.Character `json:"characters"`
	ID         string           `json:"id"`
}

type MapUpdateOutput struct {
	Map        room.MapState    `json:"map"`
	Characters []room.Character `json:"characters"`
}

type DanceOutput struct {
	ID string `json:"id"`
}

type ChatOutput struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// encode 组装出站帧；payload 为 nil 时省略 payload 字段
func encode(typ string, payload any) ([]byte, error) {
	env := Envelope{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
