// internal/platform/client.go

// Package platform wraps the asset platform REST API.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/signalnine/twiliot/internal/config"
	"github.com/signalnine/twiliot/internal/logging"
	"github.com/signalnine/twiliot/internal/protocol"
)

const (
	// DefaultPageSize is the page size requested when the config sets none
	DefaultPageSize = 100

	pixelsPath = "/v1/owner/{owner}/tag"
	assetsPath = "/v1/traceability/owner/{owner}/asset"
	assetPath  = "/v1/traceability/owner/{owner}/asset/{id}"
)

// ErrNotFound is returned when the platform has no record for an id
var ErrNotFound = errors.New("not found")

// Client lists pixels and assets for one platform account
type Client struct {
	http     *resty.Client
	pageSize int
	log      zerolog.Logger
}

// listResponse is one page of a paginated listing
type listResponse[T any] struct {
	Data []T `json:"data"`
	Meta struct {
		Next string `json:"next"`
	} `json:"meta"`
}

type assetResponse struct {
	Data *protocol.Asset `json:"data"`
}

// NewClient validates cfg and builds a client; missing credentials are a ConfigError
func NewClient(cfg config.PlatformConfig, log zerolog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	log = logging.Component(log, "platform")

	r := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.URL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json").
		SetAuthToken(cfg.APIKey).
		SetPathParam("owner", cfg.AccountID).
		SetLogger(logging.RestyLogger{L: log}).
		SetDebug(logging.DebugEnabled(log)).
		OnRequestLog(logging.RedactAuth)

	r.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Dur("elapsed", resp.Time()).
			Msg("platform request")
		return nil
	})

	return &Client{
		http:     r,
		pageSize: pageSize,
		log:      log,
	}, nil
}

// GetPixels accumulates pixel pages until the continuation token runs out
// or max records are held. max <= 0 means no cap.
func (c *Client) GetPixels(ctx context.Context, max int) ([]protocol.Pixel, error) {
	pixels, err := collect[protocol.Pixel](ctx, c, pixelsPath, max)
	if err != nil {
		return nil, fmt.Errorf("list pixels: %w", err)
	}
	return pixels, nil
}

// GetAssets lists assets with the same pagination and cap as GetPixels
func (c *Client) GetAssets(ctx context.Context, max int) ([]protocol.Asset, error) {
	assets, err := collect[protocol.Asset](ctx, c, assetsPath, max)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

// GetAsset fetches a single asset by id
func (c *Client) GetAsset(ctx context.Context, id string) (*protocol.Asset, error) {
	if strings.TrimSpace(id) == "" {
		return nil, protocol.Missing("asset id")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get(assetPath)
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("get asset %s: %w", id, ErrNotFound)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get asset %s: %w", id, statusError(resp))
	}

	var out assetResponse
	if err := decode(resp, &out); err != nil {
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}
	if out.Data == nil {
		return nil, &protocol.ValidationError{Field: "data", Msg: "asset response has no data"}
	}

	return out.Data, nil
}

func collect[T any](ctx context.Context, c *Client, path string, max int) ([]T, error) {
	items, next, err := fetchPage[T](ctx, c, path, "")
	if err != nil {
		return nil, err
	}

	for next != "" && (max <= 0 || len(items) < max) {
		more, following, err := fetchPage[T](ctx, c, path, next)
		if err != nil {
			return nil, err
		}
		if following == next {
			return nil, fmt.Errorf("continuation token %q repeated", next)
		}
		items = append(items, more...)
		next = following
	}

	if max > 0 && len(items) > max {
		c.log.Debug().Int("fetched", len(items)).Int("max", max).Msg("truncating listing to cap")
		items = items[:max]
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func fetchPage[T any](ctx context.Context, c *Client, path, next string) ([]T, string, error) {
	var page listResponse[T]

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(c.pageSize))
	if next != "" {
		req.SetQueryParam("next", next)
	}

	resp, err := req.Get(path)
	if err != nil {
		return nil, "", err
	}
	if resp.IsError() {
		return nil, "", statusError(resp)
	}
	if err := decode(resp, &page); err != nil {
		return nil, "", err
	}
	if page.Data == nil {
		return nil, "", &protocol.ValidationError{Field: "data", Msg: "listing response has no data"}
	}

	c.log.Debug().Int("count", len(page.Data)).Bool("more", page.Meta.Next != "").Msg("fetched page")
	return page.Data, page.Meta.Next, nil
}

// decode reads the body as JSON whatever Content-Type the server claimed
func decode(resp *resty.Response, out any) error {
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &protocol.ValidationError{
			Field: "response",
			Msg:   fmt.Sprintf("malformed platform response (%s): %v", resp.Header().Get("Content-Type"), err),
		}
	}
	return nil
}

func statusError(resp *resty.Response) error {
	return fmt.Errorf("platform returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
}
