package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrConflict
	}

	return err
}

func (db *PgRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	var a Account
	err := db.conn.GetContext(ctx, &a,
		"INSERT INTO accounts (id, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, email, password_hash, created_at",
		params.Id,
		params.Email,
		params.PasswordHash,
		time.Now().UTC(),
	)

	return a, mapError(err)
}

func (db *PgRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	var a Account
	err := db.conn.GetContext(ctx, &a,
		"SELECT id, email, password_hash, created_at FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)

	return a, mapError(err)
}

func (db *PgRepository) PutProfile(ctx context.Context, p Profile) error {
	_, err := db.conn.NamedExecContext(ctx,
		"INSERT INTO profiles (user_id, name, username, email) "+
			"VALUES (:user_id, :name, :username, :email) "+
			"ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name, username = EXCLUDED.username, email = EXCLUDED.email",
		p,
	)

	return mapError(err)
}

func (db *PgRepository) ListProfiles(ctx context.Context, excludeId string) ([]Profile, error) {
	profiles := make([]Profile, 0)
	err := db.conn.SelectContext(ctx, &profiles,
		"SELECT user_id, name, username, email FROM profiles WHERE user_id <> $1 ORDER BY username",
		excludeId,
	)

	return profiles, mapError(err)
}

func (db *PgRepository) GetProfilesByIds(ctx context.Context, ids []string) ([]Profile, error) {
	profiles := make([]Profile, 0, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	err := db.conn.SelectContext(ctx, &profiles,
		"SELECT user_id, name, username, email FROM profiles WHERE user_id = ANY($1)",
		pq.Array(ids),
	)

	return profiles, mapError(err)
}

func (db *PgRepository) GetProfileByUsername(ctx context.Context, username string) (Profile, error) {
	var p Profile
	err := db.conn.GetContext(ctx, &p,
		"SELECT user_id, name, username, email FROM profiles WHERE username = $1 LIMIT 1",
		username,
	)

	return p, mapError(err)
}

func (db *PgRepository) CreateMessage(ctx context.Context, msg Message) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO messages (key, room_id, sender_id, receiver_id, content, timestamp, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7)",
		msg.Key,
		msg.RoomId,
		msg.SenderId,
		msg.ReceiverId,
		msg.Content,
		msg.Timestamp,
		time.Now().UTC(),
	)

	return mapError(err)
}

func (db *PgRepository) GetMessages(ctx context.Context, roomId string) ([]Message, error) {
	messages := make([]Message, 0)
	err := db.conn.SelectContext(ctx, &messages,
		"SELECT key, room_id, sender_id, receiver_id, content, timestamp, created_at FROM messages "+
			"WHERE room_id = $1 ORDER BY id",
		roomId,
	)

	return messages, mapError(err)
}

func (db *PgRepository) ListRooms(ctx context.Context) ([]string, error) {
	rooms := make([]string, 0)
	err := db.conn.SelectContext(ctx, &rooms,
		"SELECT room_id FROM messages GROUP BY room_id ORDER BY room_id",
	)

	return rooms, mapError(err)
}

func (db *PgRepository) DeleteRoom(ctx context.Context, roomId string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM messages WHERE room_id = $1", roomId)

	return mapError(err)
}
