// Package google writes budget reports to a Google Sheets spreadsheet.
// Authentication uses the OAuth client and token produced by the
// oauth-init command.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgeteer/internal/config"
	"budgeteer/internal/export"
)

const writeAttempts = 3

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ export.ReportWriter = (*Client)(nil)

// New builds a Sheets client from the export configuration.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("missing Google Spreadsheet ID")
	}
	if cfg.GoogleSheetName == "" {
		return nil, errors.New("missing Google Sheet name")
	}

	clientJSON, err := readCredential(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("load OAuth client: %w", err)
	}
	tokenJSON, err := readCredential(cfg.GoogleOAuthTokenJSON, cfg.GoogleOAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("load OAuth token: %w", err)
	}

	oauthCfg, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("decode OAuth token: %w", err)
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.GoogleSpreadsheetID,
		sheetName:     cfg.GoogleSheetName,
	}, nil
}

func readCredential(inline, file string) ([]byte, error) {
	if strings.TrimSpace(inline) != "" {
		return []byte(inline), nil
	}
	if strings.TrimSpace(file) != "" {
		return os.ReadFile(file)
	}
	return nil, errors.New("neither inline JSON nor a file path is set")
}

// WriteReport replaces the sheet's contents with the rendered report.
// Writes retry with backoff; Sheets quota errors are transient.
func (c *Client) WriteReport(ctx context.Context, report export.Report) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	values := [][]any{
		{report.Title, "", "", "", report.GeneratedAt.Format(time.RFC3339)},
		{"Category", "Budgeted", "Actual", "Difference", "% Used"},
	}
	for _, row := range report.Rows {
		values = append(values, []any{
			row.Category,
			row.Budgeted.Float(),
			row.Actual.Float(),
			row.Difference.Float(),
			row.PercentageUsed,
		})
	}
	values = append(values, []any{
		"TOTAL",
		report.TotalBudgeted.Float(),
		report.TotalActual.Float(),
		report.TotalDifference.Float(),
		"",
	})

	clearRange := fmt.Sprintf("%s!A:E", c.sheetName)
	err := retry.Do(func() error {
		_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do()
		return err
	}, retry.Attempts(writeAttempts), retry.Context(ctx), retry.LastErrorOnly(true))
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", c.sheetName, err)
	}

	writeRange := fmt.Sprintf("%s!A1:E%d", c.sheetName, len(values))
	vr := &gsheet.ValueRange{Values: values}
	err = retry.Do(func() error {
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		return err
	}, retry.Attempts(writeAttempts), retry.Context(ctx), retry.LastErrorOnly(true))
	if err != nil {
		return fmt.Errorf("write report to sheet %s: %w", c.sheetName, err)
	}

	return nil
}
