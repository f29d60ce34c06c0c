// Package wallapop pages through the Wallapop search API.
package wallapop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PabloReca/busca-pisos/internal/models"
)

var ErrUnexpectedStatus = errors.New("unexpected status from search API")

type Client struct {
	logger  *logrus.Logger
	client  *http.Client
	baseURL string
	headers map[string]string
}

// ClientOptions configures a search client.
type ClientOptions struct {
	BaseURL string
	Headers map[string]string
	Timeout time.Duration
}

// Page is one decoded search response.
type Page struct {
	Items    []models.RawItem
	NextPage string
}

type searchResponse struct {
	Data struct {
		Section struct {
			Payload struct {
				Items []json.RawMessage `json:"items"`
			} `json:"payload"`
		} `json:"section"`
	} `json:"data"`
	Meta struct {
		NextPage string `json:"next_page"`
	} `json:"meta"`
}

func NewClient(opts ClientOptions, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &Client{
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
		baseURL: opts.BaseURL,
		headers: headers,
	}
}

// SearchPage requests a single page of results.
func (c *Client) SearchPage(ctx context.Context, params url.Values) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.URL.RawQuery = params.Encode()
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	page := &Page{NextPage: decoded.Meta.NextPage}
	for i, raw := range decoded.Data.Section.Payload.Items {
		item, err := decodeItem(raw)
		if err != nil {
			c.logger.WithError(err).WithField("index", i).Warn("Skipping undecodable item")
			continue
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

// FetchAll follows next_page tokens until the source runs dry, stops
// returning a token, or maxPages pages have been read. A failing page ends
// the fetch and whatever was collected so far is returned; this never
// returns an error to the caller. The page cap is the only guard against a
// token cycle.
func (c *Client) FetchAll(ctx context.Context, params url.Values, maxPages int) ([]models.RawItem, int) {
	var items []models.RawItem
	query := cloneValues(params)
	pages := 0

	for page := 1; page <= maxPages; page++ {
		entry := c.logger.WithFields(logrus.Fields{
			"page": page,
			"type": params.Get("type"),
		})

		result, err := c.SearchPage(ctx, query)
		if err != nil {
			entry.WithError(err).Warn("Search page failed, keeping partial results")
			break
		}
		pages++

		if len(result.Items) == 0 {
			entry.Info("No more results")
			break
		}

		items = append(items, result.Items...)
		entry.WithFields(logrus.Fields{
			"items": len(result.Items),
			"total": len(items),
		}).Info("Fetched search page")

		if result.NextPage == "" {
			break
		}

		// The token carries the whole query, so continuation requests send nothing else.
		query = url.Values{"next_page": []string{result.NextPage}}
	}

	return items, pages
}

func decodeItem(raw json.RawMessage) (models.RawItem, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var item models.RawItem
	if err := dec.Decode(&item); err != nil {
		return nil, err
	}
	if item == nil {
		return nil, errors.New("item is null")
	}
	return item, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
