package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// NewFirebaseApp initializes the Firebase app from either a credentials file
// (FIREBASE_CREDENTIALS_FILE) or base64-encoded credentials
// (FIREBASE_CREDENTIALS_BASE64). The base64 variant is for cloud deployments
// (Railway, Fly.io, Render) where you can't upload files easily.
func NewFirebaseApp(ctx context.Context) (*firebase.App, error) {
	if file := os.Getenv("FIREBASE_CREDENTIALS_FILE"); file != "" {
		app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(file))
		if err != nil {
			return nil, fmt.Errorf("error initializing Firebase app: %w", err)
		}
		return app, nil
	}

	if encoded := os.Getenv("FIREBASE_CREDENTIALS_BASE64"); encoded != "" {
		credentialsJSON, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
		}
		app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(credentialsJSON))
		if err != nil {
			return nil, fmt.Errorf("error initializing Firebase app: %w", err)
		}
		return app, nil
	}

	return nil, fmt.Errorf("neither FIREBASE_CREDENTIALS_FILE nor FIREBASE_CREDENTIALS_BASE64 is set")
}

// NewFirestoreClient opens the Firestore client backing the driver and branch
// documents.
func NewFirestoreClient(ctx context.Context, app *firebase.App) (*firestore.Client, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firestore client: %w", err)
	}
	return client, nil
}
