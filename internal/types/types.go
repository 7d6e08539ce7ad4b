package types

import "time"

// User is a profile record. UserId is assigned by the auth provider when the
// account is created and the record is never mutated afterwards.
type User struct {
	UserId   string `json:"userId" firestore:"userId"`
	Name     string `json:"name" firestore:"name"`
	Username string `json:"username" firestore:"username"`
	Email    string `json:"email" firestore:"email"`
}

// Message is a chat record pushed under a room. Timestamp is wall-clock
// milliseconds at creation.
type Message struct {
	SenderId   string `json:"senderId"`
	ReceiverId string `json:"receiverId"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
}

type Session struct {
	UserId    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func NowMillis() int64 {
	return time.Now().UnixMilli()
}
