// Package chat holds the client-side reconciliation rules for two-party
// conversations: room identification, message ordering and the active chats
// roster.
package chat

import "strings"

// Separator joins the two participant ids of a room identifier. User ids are
// generated without it.
const Separator = "-"

// RoomId derives the canonical room identifier for a pair of users. The
// result is the same regardless of argument order. Callers must not pass
// identical ids.
func RoomId(idA, idB string) string {
	if idA < idB {
		return idA + Separator + idB
	}
	return idB + Separator + idA
}

// Participants splits a room identifier into the two encoded user ids.
// ok is false when roomId does not hold exactly two ids.
func Participants(roomId string) (a, b string, ok bool) {
	parts := strings.Split(roomId, Separator)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// IsParticipant reports whether userId is one of the two participants of
// roomId.
func IsParticipant(roomId, userId string) bool {
	a, b, ok := Participants(roomId)
	if !ok {
		return false
	}
	return a == userId || b == userId
}

// Peer returns the participant of roomId that is not userId. ok is false when
// userId is not a participant or the room pairs userId with itself.
func Peer(roomId, userId string) (string, bool) {
	a, b, ok := Participants(roomId)
	if !ok {
		return "", false
	}
	switch {
	case a == userId && b != userId:
		return b, true
	case b == userId && a != userId:
		return a, true
	}
	return "", false
}

// Canonical reports whether roomId is the identifier RoomId derives for its
// two participants. Self rooms and reversed pairs are not canonical.
func Canonical(roomId string) bool {
	a, b, ok := Participants(roomId)
	if !ok || a == "" || b == "" || a == b {
		return false
	}
	return RoomId(a, b) == roomId
}
