package services

// Fanout routes deltas to connected sockets. Delivery is fire and forget.
type Fanout interface {
	BroadcastToRoom(chatID, event string, payload any)
	BroadcastToUser(userID, event string, payload any)
}

// Hub is a Fanout that also manages per connection chat room membership.
type Hub interface {
	Fanout
	JoinRoom(connID, chatID string) error
	LeaveRoom(connID, chatID string)
	ClearRoom(chatID string)
}
