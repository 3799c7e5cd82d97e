package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"subtrack/internal/core"
	"subtrack/internal/schedule"
	ports "subtrack/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// maxTitleLen is the longest sheet title Google Sheets accepts.
const maxTitleLen = 100

// DefaultTabPrefix names per-user tabs when no prefix is configured.
const DefaultTabPrefix = "Schedule "

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabPrefix     string

	mu   sync.Mutex
	tabs map[string]bool
}

// Ensure interface conformance
var _ ports.ScheduleWriter = (*Client)(nil)

// New creates a Sheets client writing schedules into spreadsheetID.
// Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, tabPrefix string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if tabPrefix == "" {
		tabPrefix = DefaultTabPrefix
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		tabPrefix:     tabPrefix,
		tabs:          make(map[string]bool),
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// WriteSchedule replaces the user's tab with the projected schedule in
// columns A:F and the aggregates in H:I.
func (c *Client) WriteSchedule(ctx context.Context, userID string, res schedule.Result, summary core.Summary) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if userID == "" {
		return core.ErrEmptyUser
	}

	tab := TabName(c.tabPrefix, userID)
	if err := c.ensureTab(ctx, tab); err != nil {
		return err
	}

	clearRange := A1(tab, "A:I")
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := ports.Rows(res)
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, A1(tab, "A1"), &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write schedule to %s: %w", tab, err)
	}

	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, A1(tab, "H1"), &gsheet.ValueRange{Values: ports.SummaryRows(summary)}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write summary to %s: %w", tab, err)
	}

	slog.InfoContext(ctx, "Schedule written to Google Sheets",
		"user_id", userID,
		"tab", tab,
		"rows", len(rows)-1)
	return nil
}

// ensureTab creates the tab on first use. Known tabs are remembered for the
// lifetime of the client.
func (c *Client) ensureTab(ctx context.Context, tab string) error {
	c.mu.Lock()
	known := c.tabs[tab]
	c.mu.Unlock()
	if known {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}

	exists := false
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == tab {
			exists = true
			break
		}
	}

	if !exists {
		req := &gsheet.BatchUpdateSpreadsheetRequest{
			Requests: []*gsheet.Request{{
				AddSheet: &gsheet.AddSheetRequest{
					Properties: &gsheet.SheetProperties{Title: tab},
				},
			}},
		}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("add sheet %s: %w", tab, err)
		}
		slog.InfoContext(ctx, "Created schedule sheet", "tab", tab)
	}

	c.mu.Lock()
	c.tabs[tab] = true
	c.mu.Unlock()
	return nil
}

// TabName returns "<prefix><userID>", trimmed to the Sheets title limit.
func TabName(prefix, userID string) string {
	name := []rune(prefix + userID)
	if len(name) > maxTitleLen {
		name = name[:maxTitleLen]
	}
	return string(name)
}

// A1 quotes a sheet title for use in an A1 range.
func A1(tab, cells string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cells
}
