package chat

import (
	"slices"

	"github.com/npezzotti/go-lag/internal/types"
)

// SortMessages returns a copy of msgs ordered ascending by timestamp. Equal
// timestamps keep their arrival order.
func SortMessages(msgs []types.Message) []types.Message {
	sorted := slices.Clone(msgs)
	slices.SortStableFunc(sorted, func(a, b types.Message) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	return sorted
}
