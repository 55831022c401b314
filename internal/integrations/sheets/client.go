package sheets

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// NewSheetsService builds a Sheets client from GOOGLE_SHEETS_CREDENTIALS_JSON,
// falling back to a local credentials file for development.
func NewSheetsService(ctx context.Context) (*sheets.Service, error) {
	credentialsJSON := os.Getenv("GOOGLE_SHEETS_CREDENTIALS_JSON")
	if credentialsJSON == "" {
		b, err := os.ReadFile("configs/google-credentials.json")
		if err != nil {
			return nil, fmt.Errorf("unable to read google credentials: %w", err)
		}
		credentialsJSON = string(b)
	}

	credentials, err := google.CredentialsFromJSON(ctx, []byte(credentialsJSON), sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to load google credentials: %w", err)
	}

	client := oauth2.NewClient(ctx, credentials.TokenSource)
	service, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create google sheets client: %w", err)
	}

	return service, nil
}
