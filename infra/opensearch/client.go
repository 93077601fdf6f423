package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/paygate-sk/tatrapay/infra/config"
)

// Client wraps the OpenSearch client used for log shipping
type Client struct {
	client *opensearch.Client
	config *config.AppConfig
}

// NewClient creates a new OpenSearch client
func NewClient(cfg *config.AppConfig) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.OpenSearchURL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // local/dev clusters use self-signed certs
			},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if cfg.OpenSearchUser != "" && cfg.OpenSearchPass != "" {
		opensearchConfig.Username = cfg.OpenSearchUser
		opensearchConfig.Password = cfg.OpenSearchPass
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// Ping checks connectivity to the OpenSearch cluster
func (c *Client) Ping(ctx context.Context) error {
	req := opensearchapi.PingRequest{}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("opensearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch ping returned status %d", res.StatusCode)
	}
	return nil
}

// SystemLogIndexName returns the monthly index name for system logs
func (c *Client) SystemLogIndexName() string {
	return fmt.Sprintf("tatrapay-system-logs-%s", time.Now().UTC().Format("2006.01"))
}

// PaymentLogIndexName returns the monthly index name for payment logs
func (c *Client) PaymentLogIndexName() string {
	return fmt.Sprintf("tatrapay-payment-logs-%s", time.Now().UTC().Format("2006.01"))
}

// index writes a single document into the given index
func (c *Client) index(ctx context.Context, indexName, docID string, body string) error {
	req := opensearchapi.IndexRequest{
		Index:      indexName,
		DocumentID: docID,
		Body:       strings.NewReader(body),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing failed with status %d", res.StatusCode)
	}

	return nil
}
