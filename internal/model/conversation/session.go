package conversation

import "time"

// Session holds the windowed memory for one conversation. The store owns
// the only mutable copy; everything handed out is a snapshot.
type Session struct {
	ID             string    `json:"id"`
	Turns          []Turn    `json:"turns"`
	WindowSize     int       `json:"windowSize"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
}
