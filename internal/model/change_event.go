package model

import "time"

// ChangeEvent is one unit of work delivered by the backend: a reference
// entity changed and must be re-fetched as of Timestamp. The delivery
// token identifies the event when reporting the outcome back.
type ChangeEvent struct {
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Timestamp     time.Time `json:"timestamp"`
	DeliveryToken string    `json:"delivery_token"`
}
