package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgetbot/internal/core"
	ports "budgetbot/internal/sheets"
)

// Options selects the spreadsheet, worksheet names and credentials.
type Options struct {
	SpreadsheetID string

	TransactionsSheet  string
	CategoriesSheet    string
	PersonsSheet       string
	ContributionsSheet string

	// Service account credentials, inline or on disk.
	ServiceAccountJSON string
	ServiceAccountFile string

	// OAuth user credentials as written by cmd/oauth-init.
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

func (o *Options) defaults() {
	if o.TransactionsSheet == "" {
		o.TransactionsSheet = "Transactions"
	}
	if o.CategoriesSheet == "" {
		o.CategoriesSheet = "Categories"
	}
	if o.PersonsSheet == "" {
		o.PersonsSheet = "Persons"
	}
	if o.ContributionsSheet == "" {
		o.ContributionsSheet = "Contributions"
	}
}

type Client struct {
	svc  *gsheet.Service
	opts Options

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// Ensure interface conformance
var _ ports.Backend = (*Client)(nil)

// New creates a Sheets client authenticated from opts.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	ts, err := tokenSource(ctx, opts)
	if err != nil {
		return nil, err
	}
	// oauth2 picks the base transport up from the context.
	base := context.WithValue(context.Background(), oauth2.HTTPClient, newHTTPClientWithPooling())
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauth2.NewClient(base, ts)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", opts.SpreadsheetID)
	return NewWithService(svc, opts), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, opts Options) *Client {
	opts.defaults()
	return &Client{svc: svc, opts: opts, sheetIDs: map[string]int64{}}
}

// tokenSource prefers a service account and falls back to an OAuth user token.
func tokenSource(ctx context.Context, o Options) (oauth2.TokenSource, error) {
	saJSON, err := inlineOrFile(o.ServiceAccountJSON, o.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}
	if saJSON == nil {
		if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" && o.OAuthClientJSON == "" && o.OAuthClientFile == "" {
			if saJSON, err = os.ReadFile(path); err != nil {
				return nil, fmt.Errorf("read service account: %w", err)
			}
		}
	}
	if saJSON != nil {
		creds, err := goauth.CredentialsFromJSON(ctx, saJSON, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("service account credentials: %w", err)
		}
		slog.InfoContext(ctx, "Using service account credentials")
		return creds.TokenSource, nil
	}

	clientJSON, err := inlineOrFile(o.OAuthClientJSON, o.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if clientJSON == nil {
		return nil, errors.New("missing credentials: set a service account or an oauth client")
	}
	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	tokJSON, err := inlineOrFile(o.OAuthTokenJSON, o.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if tokJSON == nil {
		return nil, errors.New("missing oauth token: run oauth-init first")
	}
	tok, err := decodeToken(tokJSON)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Using OAuth user credentials")
	return cfg.TokenSource(ctx, tok), nil
}

func inlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if p := strings.TrimSpace(path); p != "" {
		return os.ReadFile(p)
	}
	return nil, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// ScanAll reads the whole transactions sheet, header included.
func (c *Client) ScanAll(ctx context.Context) ([][]string, error) {
	rng := fmt.Sprintf("%s!A:I", c.opts.TransactionsSheet)
	values, err := c.read(ctx, rng)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = toStrings(v)
	}
	return rows, nil
}

// Append adds one row after the last non-empty row of the ledger.
func (c *Client) Append(ctx context.Context, row []string) error {
	rng := fmt.Sprintf("%s!A:I", c.opts.TransactionsSheet)
	vr := &gsheet.ValueRange{Values: [][]any{toCells(row)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.opts.SpreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.opts.TransactionsSheet, err)
	}
	return nil
}

// DeleteAt removes a whole sheet row, shifting the rows below it up.
func (c *Client) DeleteAt(ctx context.Context, row int) error {
	if row < 2 {
		return fmt.Errorf("refusing to delete row %d", row)
	}
	sheetID, err := c.sheetID(ctx, c.opts.TransactionsSheet)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(row - 1),
			EndIndex:   int64(row),
			// The first sheet has id 0, which would otherwise be omitted.
			ForceSendFields: []string{"SheetId", "StartIndex"},
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.opts.SpreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d of %s: %w", row, c.opts.TransactionsSheet, err)
	}
	return nil
}

// LoadReference reads categories, persons and contributions.
func (c *Client) LoadReference(ctx context.Context) (core.Reference, error) {
	cats, err := c.read(ctx, fmt.Sprintf("%s!A:C", c.opts.CategoriesSheet))
	if err != nil {
		return core.Reference{}, err
	}
	persons, err := c.read(ctx, fmt.Sprintf("%s!A:C", c.opts.PersonsSheet))
	if err != nil {
		return core.Reference{}, err
	}
	contrib, err := c.read(ctx, fmt.Sprintf("%s!A:Z", c.opts.ContributionsSheet))
	if err != nil {
		// Contributions are optional.
		slog.WarnContext(ctx, "Contributions sheet unreadable", "sheet", c.opts.ContributionsSheet, "error", err)
		contrib = nil
	}
	ref := core.Reference{
		Categories: parseCategories(cats),
		Persons:    parsePersons(persons),
	}
	ref.Contributions, ref.ContributionTotals = parseContributions(contrib)
	return ref, nil
}

// WriteCategoryLimit updates column B of the category's row.
func (c *Client) WriteCategoryLimit(ctx context.Context, category string, limit int64) error {
	return c.writeLimit(ctx, c.opts.CategoriesSheet, "A", "B", category, limit)
}

// WritePersonLimit updates column C of the person's row.
func (c *Client) WritePersonLimit(ctx context.Context, person string, limit int64) error {
	return c.writeLimit(ctx, c.opts.PersonsSheet, "B", "C", person, limit)
}

func (c *Client) writeLimit(ctx context.Context, sheet, keyCol, valueCol, key string, limit int64) error {
	values, err := c.read(ctx, fmt.Sprintf("%s!%s:%s", sheet, keyCol, keyCol))
	if err != nil {
		return err
	}
	row := findRow(values, key)
	if row == 0 {
		return fmt.Errorf("%q not found in %s", key, sheet)
	}
	rng := fmt.Sprintf("%s!%s%d", sheet, valueCol, row)
	vr := &gsheet.ValueRange{Values: [][]any{{limit}}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.opts.SpreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (c *Client) read(ctx context.Context, rng string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.opts.SpreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.sheetIDs[title]; ok {
		return id, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.opts.SpreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok := c.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", title)
	}
	return id, nil
}
