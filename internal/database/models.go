package database

import (
	"time"

	"github.com/npezzotti/go-lag/internal/types"
)

type Account struct {
	Id           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

type Profile struct {
	UserId   string `db:"user_id"`
	Name     string `db:"name"`
	Username string `db:"username"`
	Email    string `db:"email"`
}

type Message struct {
	Key        string    `db:"key"`
	RoomId     string    `db:"room_id"`
	SenderId   string    `db:"sender_id"`
	ReceiverId string    `db:"receiver_id"`
	Content    string    `db:"content"`
	Timestamp  int64     `db:"timestamp"`
	CreatedAt  time.Time `db:"created_at"`
}

type CreateAccountParams struct {
	Id           string
	Email        string
	PasswordHash string
}

func ProfileFromUser(u types.User) Profile {
	return Profile{
		UserId:   u.UserId,
		Name:     u.Name,
		Username: u.Username,
		Email:    u.Email,
	}
}

func (p Profile) User() types.User {
	return types.User{
		UserId:   p.UserId,
		Name:     p.Name,
		Username: p.Username,
		Email:    p.Email,
	}
}

func (m Message) Record() types.Message {
	return types.Message{
		SenderId:   m.SenderId,
		ReceiverId: m.ReceiverId,
		Content:    m.Content,
		Timestamp:  m.Timestamp,
	}
}
