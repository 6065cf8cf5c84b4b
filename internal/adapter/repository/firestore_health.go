package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// FirestorePing reads at most one offer document to prove the client can
// reach the database.
func FirestorePing(client *firestore.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		iter := client.Collection(offersCollection).Limit(1).Documents(ctx)
		defer iter.Stop()

		_, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		return err
	}
}
