// Package catalog is the client side of the external catalog collaborator:
// synchronous book lookup with a bounded timeout, a redis read-through
// cache, and a circuit breaker.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Chamal1120/globalbooks-soa/circuitbreaker"
	"github.com/Chamal1120/globalbooks-soa/errdefs"
)

// Book is the catalog's view of a title. Price is zero when the catalog
// does not carry pricing.
type Book struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Author string          `json:"author"`
	Price  decimal.Decimal `json:"price,omitempty"`
}

type Client interface {
	Lookup(ctx context.Context, bookID string) (Book, error)
}

// HTTPClient looks up books over the catalog's REST API
// (GET {base}/api/books/{id}).
type HTTPClient struct {
	baseURL  string
	http     *http.Client
	breaker  *circuitbreaker.Breaker
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewHTTPClient builds a catalog client. cache may be nil to disable the
// read-through cache.
func NewHTTPClient(baseURL string, timeout time.Duration, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
		breaker:  circuitbreaker.New(5, 30*time.Second),
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func (c *HTTPClient) Lookup(ctx context.Context, bookID string) (Book, error) {
	if book, ok := c.cached(ctx, bookID); ok {
		return book, nil
	}

	var book Book
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		book, err = c.fetch(ctx, bookID)
		// A miss is a definitive answer, not a collaborator failure;
		// it must not trip the breaker.
		if errdefs.IsNotFound(err) {
			return nil
		}
		return err
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return Book{}, errdefs.Upstreamf("catalog circuit open")
	}
	if err != nil {
		return Book{}, err
	}
	if book.ID == "" {
		return Book{}, errdefs.NotFoundf("book %s", bookID)
	}

	c.store(ctx, book)
	return book, nil
}

func (c *HTTPClient) fetch(ctx context.Context, bookID string) (Book, error) {
	url := fmt.Sprintf("%s/api/books/%s", c.baseURL, bookID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Book{}, fmt.Errorf("failed to build catalog request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Book{}, errdefs.Upstreamf("catalog request failed: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Book{}, errdefs.NotFoundf("book %s", bookID)
	case resp.StatusCode != http.StatusOK:
		return Book{}, errdefs.Upstreamf("catalog returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Book{}, errdefs.Upstreamf("failed to read catalog response: %v", err)
	}

	var book Book
	if err := json.Unmarshal(body, &book); err != nil {
		return Book{}, errdefs.Upstreamf("failed to decode catalog response: %v", err)
	}
	if book.ID == "" {
		book.ID = bookID
	}
	return book, nil
}

func (c *HTTPClient) cached(ctx context.Context, bookID string) (Book, bool) {
	if c.cache == nil {
		return Book{}, false
	}
	data, err := c.cache.Get(ctx, "book:"+bookID).Bytes()
	if err != nil {
		return Book{}, false
	}
	var book Book
	if err := json.Unmarshal(data, &book); err != nil {
		return Book{}, false
	}
	return book, true
}

func (c *HTTPClient) store(ctx context.Context, book Book) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(book)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, "book:"+book.ID, data, c.cacheTTL).Err(); err != nil {
		c.logger.Warn("Failed to cache book", zap.String("book_id", book.ID), zap.Error(err))
	}
}

// InitRedis connects the catalog cache.
func InitRedis(addr, password string, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}
