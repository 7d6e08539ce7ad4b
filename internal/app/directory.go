package app

import (
	"context"
	"slices"
	"strings"

	"github.com/npezzotti/go-lag/internal/store"
	"github.com/npezzotti/go-lag/internal/types"
)

// Directory lists every other user, ordered by username.
type Directory struct {
	profiles store.ProfileStore
	userId   string
}

func NewDirectory(profiles store.ProfileStore, userId string) *Directory {
	return &Directory{profiles: profiles, userId: userId}
}

func (d *Directory) Run(ctx context.Context, render func(View[types.User])) error {
	render(loadingView[types.User]())

	stream, err := d.profiles.QueryExcluding(ctx, d.userId)
	if err != nil {
		e := networkError(err)
		render(failedView[types.User](e))
		return e
	}
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case users, ok := <-stream.Updates():
			if !ok {
				if err := stream.Err(); err != nil {
					e := networkError(err)
					render(failedView[types.User](e))
					return e
				}
				return nil
			}
			render(readyView(sortByUsername(users)))
		}
	}
}

func sortByUsername(users []types.User) []types.User {
	sorted := slices.Clone(users)
	slices.SortStableFunc(sorted, func(a, b types.User) int {
		return strings.Compare(a.Username, b.Username)
	})
	return sorted
}
