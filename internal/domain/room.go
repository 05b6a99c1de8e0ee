package domain

import "github.com/google/uuid"

type RoomID string

type Room struct {
	ID RoomID
}

func NewRoom() *Room {
	return &Room{ID: RoomID(uuid.NewString())}
}
