// Package firebase backs the server with Firebase: Authentication for
// credentials, Firestore for profiles and the Realtime Database for chats.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
)

type Config struct {
	ProjectID   string
	DatabaseURL string
	// Web API key used for password sign-in through Identity Toolkit.
	APIKey string
}

type Backend struct {
	Auth     *Auth
	Profiles *Profiles
	Messages *Messages

	firestore *firestore.Client
}

// New initializes the Firebase app with application default credentials.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.ProjectID == "" || cfg.DatabaseURL == "" || cfg.APIKey == "" {
		return nil, errors.New("project id, database url and api key are required")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore: %w", err)
	}

	rtdb, err := app.Database(ctx)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("realtime database: %w", err)
	}

	return &Backend{
		Auth: &Auth{
			client:     authClient,
			apiKey:     cfg.APIKey,
			endpoint:   signInEndpoint,
			httpClient: &http.Client{Timeout: 10 * time.Second},
		},
		Profiles:  &Profiles{client: fs},
		Messages:  &Messages{client: rtdb},
		firestore: fs,
	}, nil
}

func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.firestore.Collection(usersCollection).Limit(1).Documents(ctx).GetAll()
	return err
}

func (b *Backend) Close() error {
	return b.firestore.Close()
}
