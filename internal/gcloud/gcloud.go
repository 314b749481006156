package gcloud

import (
	"context"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
)

const (
	// https://cloud.google.com/dataproc/docs/concepts/iam/iam
	ScopeCloudPlatform string = "https://www.googleapis.com/auth/cloud-platform"
	// https://cloud.google.com/storage/docs/json_api/v1/how-tos/authorizing
	ScopeStorageReadWrite string = "https://www.googleapis.com/auth/devstorage.read_write"
)

// LoadFromServiceJSON reads a json service account credential file and returns
// an http.Client bound to an oauth2 access token for scopes. Tokens are
// refreshed with ctx.
func LoadFromServiceJSON(ctx context.Context, serviceAccountPath string, scope ...string) (*http.Client, error) {
	data, err := os.ReadFile(serviceAccountPath)
	if err != nil {
		return nil, err
	}
	conf, err := google.JWTConfigFromJSON(data, scope...)
	if err != nil {
		return nil, err
	}
	return conf.Client(ctx), nil
}

// CredentialsPath returns entered, or GOOGLE_APPLICATION_CREDENTIALS when
// entered is empty.
func CredentialsPath(entered string) string {
	if entered != "" {
		return entered
	}
	return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
}
