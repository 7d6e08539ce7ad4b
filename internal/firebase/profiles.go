package firebase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/npezzotti/go-lag/internal/database"
	"github.com/npezzotti/go-lag/internal/types"
)

const (
	usersCollection = "users"
	// Firestore limits "in" filters to 30 values.
	maxInValues = 30
)

type Profiles struct {
	client *firestore.Client
}

var _ database.ProfileRepository = (*Profiles)(nil)

func (p *Profiles) PutProfile(ctx context.Context, profile database.Profile) error {
	existing, err := p.GetProfileByUsername(ctx, profile.Username)
	if err == nil && existing.UserId != profile.UserId {
		return database.ErrConflict
	}
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}

	_, err = p.client.Collection(usersCollection).Doc(profile.UserId).Set(ctx, profile.User())
	return err
}

func (p *Profiles) ListProfiles(ctx context.Context, excludeId string) ([]database.Profile, error) {
	docs, err := p.client.Collection(usersCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	profiles, err := decodeProfiles(docs)
	if err != nil {
		return nil, err
	}

	profiles = slices.DeleteFunc(profiles, func(p database.Profile) bool {
		return p.UserId == excludeId
	})
	slices.SortFunc(profiles, func(a, b database.Profile) int {
		return strings.Compare(a.Username, b.Username)
	})

	return profiles, nil
}

func (p *Profiles) GetProfilesByIds(ctx context.Context, ids []string) ([]database.Profile, error) {
	profiles := make([]database.Profile, 0, len(ids))
	for _, batch := range chunk(ids, maxInValues) {
		docs, err := p.client.Collection(usersCollection).Where("userId", "in", batch).Documents(ctx).GetAll()
		if err != nil {
			return nil, fmt.Errorf("query users: %w", err)
		}

		decoded, err := decodeProfiles(docs)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, decoded...)
	}

	return profiles, nil
}

func (p *Profiles) GetProfileByUsername(ctx context.Context, username string) (database.Profile, error) {
	docs, err := p.client.Collection(usersCollection).Where("username", "==", username).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return database.Profile{}, fmt.Errorf("query username: %w", err)
	}
	if len(docs) == 0 {
		return database.Profile{}, database.ErrNotFound
	}

	profiles, err := decodeProfiles(docs)
	if err != nil {
		return database.Profile{}, err
	}

	return profiles[0], nil
}

func decodeProfiles(docs []*firestore.DocumentSnapshot) ([]database.Profile, error) {
	profiles := make([]database.Profile, 0, len(docs))
	for _, doc := range docs {
		var u types.User
		if err := doc.DataTo(&u); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", doc.Ref.ID, err)
		}
		if u.UserId == "" {
			u.UserId = doc.Ref.ID
		}
		profiles = append(profiles, database.ProfileFromUser(u))
	}

	return profiles, nil
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
