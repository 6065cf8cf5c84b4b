package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"
)

// FirebaseAuthClient verifies the ID tokens issued to web and mobile clients.
type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", err
	}

	return result.UID, nil
}

const healthCheckUID = "changas-health-check"

// Ping checks that the Auth backend answers with a lookup of a uid nobody owns.
func (f *FirebaseAuthClient) Ping(ctx context.Context) error {
	return authReachable(f.client.GetUser(ctx, healthCheckUID))
}

// authReachable treats "user not found" as a healthy answer.
func authReachable(_ *auth.UserRecord, err error) error {
	if err == nil || auth.IsUserNotFound(err) {
		return nil
	}
	return err
}
