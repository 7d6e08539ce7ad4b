package store

import "github.com/npezzotti/go-lag/internal/types"

// Snapshot is the complete set of children under Path at one point in time.
// Children of the chats root carry keys only.
type Snapshot struct {
	Path     string  `json:"path"`
	Children []Child `json:"children"`
}

type Child struct {
	Key     string         `json:"key"`
	Message *types.Message `json:"message,omitempty"`
	User    *types.User    `json:"user,omitempty"`
}

type Subscription = Stream[Snapshot]

func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Children))
	for _, c := range s.Children {
		keys = append(keys, c.Key)
	}
	return keys
}

func (s Snapshot) Messages() []types.Message {
	msgs := make([]types.Message, 0, len(s.Children))
	for _, c := range s.Children {
		if c.Message != nil {
			msgs = append(msgs, *c.Message)
		}
	}
	return msgs
}

func (s Snapshot) Users() []types.User {
	users := make([]types.User, 0, len(s.Children))
	for _, c := range s.Children {
		if c.User != nil {
			users = append(users, *c.User)
		}
	}
	return users
}

// Filter returns a copy of s keeping only the children keep accepts.
func (s Snapshot) Filter(keep func(Child) bool) Snapshot {
	out := Snapshot{Path: s.Path, Children: make([]Child, 0, len(s.Children))}
	for _, c := range s.Children {
		if keep(c) {
			out.Children = append(out.Children, c)
		}
	}
	return out
}
