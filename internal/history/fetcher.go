// Package history fetches pages of past messages from the chat server.
package history

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vedran77/pulsefeed/internal/domain"
)

var ErrUnexpectedStatus = errors.New("unexpected history response status")

const defaultTimeout = 10 * time.Second

// Fetcher requests history over HTTP:
// GET <baseURL><path><conversationID>[/<before>]?limit=<pageSize>.
type Fetcher struct {
	client   *resty.Client
	path     string
	pageSize int
}

type Option func(*Fetcher)

// WithToken sends the token as a bearer credential.
func WithToken(token string) Option {
	return func(f *Fetcher) {
		if token != "" {
			f.client.SetAuthToken(token)
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.client.SetTimeout(d)
	}
}

func NewFetcher(baseURL, path string, pageSize int, opts ...Option) *Fetcher {
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	f := &Fetcher{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
		path:     path,
		pageSize: pageSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchPage returns one page in ascending id order. An empty before
// requests the newest page.
func (f *Fetcher) FetchPage(ctx context.Context, conversationID, before string) ([]domain.Message, error) {
	endpoint := f.path + url.PathEscape(conversationID)
	if before != "" {
		endpoint += "/" + url.PathEscape(before)
	}

	var messages []domain.Message
	req := f.client.R().
		SetContext(ctx).
		SetResult(&messages).
		ForceContentType("application/json")
	if f.pageSize > 0 {
		req.SetQueryParam("limit", strconv.Itoa(f.pageSize))
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status())
	}

	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}
