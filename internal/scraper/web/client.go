// Package web fetches REST payloads and static HTML pages.
package web

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"AfricaScraper/internal/pipeline"
	"AfricaScraper/pkg/config"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
)

// Client wraps a resty client with the scraper's retry budget and error mapping.
type Client struct {
	r   *resty.Client
	log zerolog.Logger
}

// NewClient builds a client from the scraper settings. Transport errors, 429 and
// 5xx responses are retried up to MaxRetries times with exponential backoff.
func NewClient(cfg config.ScraperConfig) *Client {
	r := resty.New().
		SetTimeout(cfg.RequestTimeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(8 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code >= 500
		})
	return &Client{r: r, log: log.With().Str("component", "web").Logger()}
}

// SetBearer sends token with every request.
func (c *Client) SetBearer(token string) *Client {
	if token != "" {
		c.r.SetAuthToken(token)
	}
	return c
}

// Get performs a GET and maps failures onto the pipeline error taxonomy.
func (c *Client) Get(ctx context.Context, url string, query map[string]string) ([]byte, string, error) {
	req := c.r.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(url)
	if err != nil {
		if isTimeout(err) {
			return nil, "", pipeline.PageTimeout(url, err)
		}
		return nil, "", &pipeline.SourceError{URL: url, Err: err}
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return nil, "", fmt.Errorf("%s: %w", url, pipeline.ErrNotFound)
	case code == http.StatusGatewayTimeout:
		return nil, "", pipeline.PageTimeout(url, fmt.Errorf("status %d", code))
	case !resp.IsSuccess():
		return nil, "", &pipeline.SourceError{URL: url, Status: code}
	}

	c.log.Debug().Str("url", resp.Request.URL).Int("bytes", len(resp.Body())).Dur("took", resp.Time()).Msg("fetched")
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// JSON decodes the response body into out, keeping numbers as json.Number.
func (c *Client) JSON(ctx context.Context, url string, query map[string]string, out any) error {
	body, _, err := c.Get(ctx, url, query)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &pipeline.SourceError{URL: url, Err: fmt.Errorf("decoding json: %w", err)}
	}
	return nil
}

// CSV fetches a delimited payload and returns its header and rows.
func (c *Client) CSV(ctx context.Context, url string, query map[string]string) ([]string, []map[string]any, error) {
	body, _, err := c.Get(ctx, url, query)
	if err != nil {
		return nil, nil, err
	}
	cols, rows, err := ParseCSV(bytes.NewReader(body))
	if err != nil {
		return nil, nil, &pipeline.SourceError{URL: url, Err: err}
	}
	return cols, rows, nil
}

// ParseCSV reads a header row and data rows; empty cells become nil.
func ParseCSV(r io.Reader) ([]string, []map[string]any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	var rows []map[string]any
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading csv: %w", err)
		}
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) && rec[i] != "" {
				row[col] = rec[i]
			} else {
				row[col] = nil
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func trimBOM(s string) string {
	return string(bytes.TrimPrefix([]byte(s), []byte("\xef\xbb\xbf")))
}

// Document fetches an HTML page, decoding it to UTF-8 from its declared charset.
func (c *Client) Document(ctx context.Context, url string) (*Document, error) {
	body, contentType, err := c.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return ParseDocument(bytes.NewReader(body), contentType, url)
}

// ParseDocument parses HTML from r. contentType may be empty.
func ParseDocument(r io.Reader, contentType, baseURL string) (*Document, error) {
	utf8, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("detecting charset: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(utf8)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return &Document{sel: doc.Selection, base: baseURL}, nil
}
