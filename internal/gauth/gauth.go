// Package gauth resolves the Google credentials the grader runs with: a
// service account (or ambient ADC) for Vertex, Sheets and Drive reads, and
// an optional end-user OAuth token for Drive uploads, which must count
// against a real user's storage quota rather than the service account's.
package gauth

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// Scopes requested for service credentials.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/cloud-platform",
}

// ServiceCredentials detects service credentials. When credentialsJSON is
// set (e.g. loaded from SSM) it wins; otherwise credentialsFile is used if
// it exists, and finally Application Default Credentials.
func ServiceCredentials(ctx context.Context, credentialsFile string, credentialsJSON []byte) (*auth.Credentials, error) {
	opts := &credentials.DetectOptions{Scopes: Scopes}
	source := "adc"
	switch {
	case len(credentialsJSON) > 0:
		opts.CredentialsJSON = credentialsJSON
		source = "json"
	case credentialsFile != "" && fileExists(credentialsFile):
		opts.CredentialsFile = credentialsFile
		source = "file"
	}

	creds, err := credentials.DetectDefault(opts)
	if err != nil {
		return nil, fmt.Errorf("detect google credentials (%s): %w", source, err)
	}
	projectID, _ := creds.ProjectID(ctx)
	log.Debug().Str("source", source).Str("project", projectID).Msg("Google service credentials resolved")
	return creds, nil
}

// ClientOptions returns the Google API client options for creds.
func ClientOptions(creds *auth.Credentials) []option.ClientOption {
	if creds == nil {
		return nil
	}
	return []option.ClientOption{option.WithAuthCredentials(creds)}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
