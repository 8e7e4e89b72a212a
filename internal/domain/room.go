package domain

import "time"

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "AVAILABLE"
	RoomOccupied    RoomStatus = "OCCUPIED"
	RoomCleaning    RoomStatus = "CLEANING"
	RoomMaintenance RoomStatus = "MAINTENANCE"
)

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomAvailable, RoomOccupied, RoomCleaning, RoomMaintenance:
		return true
	}
	return false
}

// Room is a physical guest room a guest terminal can be bound to.
type Room struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Floor       int        `json:"floor"`
	Status      RoomStatus `json:"status"`
	Fingerprint string     `json:"fingerprint"`
}

// Receptionist is a front desk position. Socket holds the peer id of the
// terminal currently registered as it, empty when free.
type Receptionist struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Socket    PeerID    `json:"socket"`
	UpdatedAt time.Time `json:"updatedAt"`
}
