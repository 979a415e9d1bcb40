package clickhouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loykin/prokill/internal/history"
)

// HTTPSink sends events to ClickHouse through its HTTP interface, one
// JSONEachRow line per event. The table must already exist.
type HTTPSink struct {
	client *http.Client
	base   string // e.g. http://localhost:8123
	table  string
}

func NewHTTP(baseURL, table string) (*HTTPSink, error) {
	if table == "" {
		table = "kill_history"
	}
	if err := validTable(table); err != nil {
		return nil, err
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, err
	}
	return &HTTPSink{
		client: &http.Client{Timeout: 5 * time.Second},
		base:   strings.TrimRight(baseURL, "/"),
		table:  table,
	}, nil
}

func (s *HTTPSink) Send(ctx context.Context, e history.Event) error {
	u, err := url.Parse(s.base)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("query", fmt.Sprintf("INSERT INTO %s FORMAT JSONEachRow", s.table))
	u.RawQuery = q.Encode()

	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(append(line, '\n')))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("clickhouse sink status %d", resp.StatusCode)
	}
	return nil
}
