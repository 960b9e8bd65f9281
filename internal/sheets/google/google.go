package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/oauth2"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"
)

const (
	spreadsheetQuery = "mimeType='application/vnd.google-apps.spreadsheet' and 'me' in owners and trashed=false"
	documentFields   = "files(id, name)"
	regionFields     = "properties.title,sheets.properties.title"

	valueInputOption = "USER_ENTERED"
	insertDataOption = "INSERT_ROWS"

	defaultPageSize = 20
)

// Client talks to Drive and Sheets on behalf of one bearer credential.
type Client struct {
	drive    *gdrive.Service
	sheets   *gsheet.Service
	pageSize int64
}

var _ ports.Workbook = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithPageSize sets how many spreadsheets ListDocuments asks for.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = int64(n)
		}
	}
}

// New builds a client that sends token on every request. The token is used as-is
// and never refreshed.
func New(ctx context.Context, token *oauth2.Token, opts ...Option) (*Client, error) {
	if token == nil || token.AccessToken == "" {
		return nil, errors.New("missing bearer credential")
	}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{Source: oauth2.StaticTokenSource(token), Base: pooledTransport},
		Timeout:   60 * time.Second,
	}
	return NewWithClientOptions(ctx, []goption.ClientOption{goption.WithHTTPClient(httpClient)}, opts...)
}

// NewWithClientOptions builds a client from raw API options. Tests use it to point
// both services at a local endpoint.
func NewWithClientOptions(ctx context.Context, clientOpts []goption.ClientOption, opts ...Option) (*Client, error) {
	driveSvc, err := gdrive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	sheetsSvc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	c := &Client{drive: driveSvc, sheets: sheetsSvc, pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// pooledTransport is shared by every session's client so connections to the
// Google APIs are reused across users.
var pooledTransport = newPooledTransport()

func newPooledTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// ListDocuments returns the first page of spreadsheets owned by the signed-in user.
func (c *Client) ListDocuments(ctx context.Context) ([]core.DocumentRef, error) {
	resp, err := c.drive.Files.List().
		Q(spreadsheetQuery).
		PageSize(c.pageSize).
		Fields(googleapi.Field(documentFields)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list spreadsheets: %w", err)
	}
	docs := lo.FilterMap(resp.Files, func(f *gdrive.File, _ int) (core.DocumentRef, bool) {
		if f == nil || f.Id == "" {
			return core.DocumentRef{}, false
		}
		return core.DocumentRef{ID: f.Id, Name: f.Name}, true
	})
	slog.DebugContext(ctx, "Listed spreadsheets", "count", len(docs))
	return docs, nil
}

// GetSpreadsheet returns the spreadsheet title and its sheet names in tab order.
func (c *Client) GetSpreadsheet(ctx context.Context, documentID string) (core.Spreadsheet, error) {
	if strings.TrimSpace(documentID) == "" {
		return core.Spreadsheet{}, core.ErrEmptyDocument
	}
	resp, err := c.sheets.Spreadsheets.Get(documentID).
		Fields(googleapi.Field(regionFields)).
		Context(ctx).
		Do()
	if err != nil {
		return core.Spreadsheet{}, fmt.Errorf("get spreadsheet %s: %w", documentID, err)
	}
	sp := core.Spreadsheet{ID: documentID}
	if resp.Properties != nil {
		sp.Title = resp.Properties.Title
	}
	sp.Regions = lo.FilterMap(resp.Sheets, func(s *gsheet.Sheet, _ int) (core.RegionRef, bool) {
		if s == nil || s.Properties == nil {
			return core.RegionRef{}, false
		}
		return core.RegionRef{Name: s.Properties.Title}, true
	})
	return sp, nil
}

// ReadColumn returns the populated cells of column A, one slice per row.
func (c *Client) ReadColumn(ctx context.Context, documentID, regionName string) ([][]any, error) {
	rng := ports.ColumnRange(regionName)
	resp, err := c.sheets.Spreadsheets.Values.Get(documentID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// AppendRow inserts row after the last row of the region's data table.
func (c *Client) AppendRow(ctx context.Context, documentID, regionName string, row []any) error {
	rng := ports.AppendAnchor(regionName)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := c.sheets.Spreadsheets.Values.Append(documentID, rng, vr).
		ValueInputOption(valueInputOption).
		InsertDataOption(insertDataOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", rng, err)
	}
	return nil
}
