package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TableQuery selects the rows rendered by the table fragment endpoint.
type TableQuery struct {
	Text      string
	Type      string
	Page      int
	ExportAll bool
}

// Values encodes the query. Empty text and type are omitted entirely
// rather than sent as empty parameters, and so is the first page. An export
// is never paged.
func (q TableQuery) Values() url.Values {
	values := url.Values{}
	if text := strings.TrimSpace(q.Text); text != "" {
		values.Set("q", text)
	}
	if typ := strings.TrimSpace(q.Type); typ != "" {
		values.Set("type", typ)
	}
	if q.ExportAll {
		values.Set("export", "all")
	} else if q.Page > 1 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	return values
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %s returned HTTP %d", e.Endpoint, e.Code)
}

// TableURL returns the fragment URL for q.
func (c *Client) TableURL(q TableQuery) string {
	return c.resolve(c.settings.TablePath, q.Values())
}

// FetchTable retrieves the server-rendered table fragment for q.
func (c *Client) FetchTable(ctx context.Context, q TableQuery) (string, error) {
	req, id, err := c.newRequest(ctx, http.MethodGet, c.TableURL(q), nil)
	if err != nil {
		return "", fmt.Errorf("api: build table request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	start := time.Now()
	status, data, err := c.do(req)
	c.metrics.observe(EndpointTable, time.Since(start))
	log := c.logger.With(zap.String("endpoint", EndpointTable), zap.String("request_id", id))
	if err != nil {
		c.metrics.count(EndpointTable, outcomeTransport)
		log.Warn("table fetch failed", zap.Error(err))
		return "", fmt.Errorf("api: fetch table: %w", err)
	}
	if status < 200 || status > 299 {
		c.metrics.count(EndpointTable, outcomeHTTPError)
		log.Warn("table fetch rejected", zap.Int("status", status))
		return "", &StatusError{Endpoint: EndpointTable, Code: status}
	}
	c.metrics.count(EndpointTable, outcomeOK)
	log.Debug("table fetched", zap.Int("bytes", len(data)), zap.Bool("export", q.ExportAll))
	return string(data), nil
}
