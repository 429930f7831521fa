package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/timmy/catalogsync/internal/config"
	"github.com/timmy/catalogsync/internal/logger"
)

// Dispatcher hands a resolved descriptor to the out-of-process transfer.
type Dispatcher interface {
	Dispatch(ctx context.Context, desc *Descriptor) error
}

// TransferClient posts descriptors to the transfer worker's HTTP endpoint.
type TransferClient struct {
	client   *resty.Client
	endpoint string
}

type transferRequest struct {
	TransferID string `json:"transfer_id"`
	*Descriptor
}

type transferResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// NewTransferClient creates a TransferClient.
// Parameters:
//   - cfg: rehost configuration; TransferURL is required.
//
// Returns:
//   - *TransferClient: initialized client.
//   - error: non-nil when no transfer URL is configured.
func NewTransferClient(cfg config.RehostConfig) (*TransferClient, error) {
	if cfg.TransferURL == "" {
		return nil, errors.New("rehost.transfer_url is required")
	}
	timeout := cfg.TransferTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)
	if cfg.TransferToken != "" {
		client.SetAuthToken(cfg.TransferToken)
	}

	return &TransferClient{client: client, endpoint: cfg.TransferURL}, nil
}

// Dispatch posts the descriptor. Any non-2xx answer is an error; the caller
// treats it as a transport failure.
func (c *TransferClient) Dispatch(ctx context.Context, desc *Descriptor) error {
	req := transferRequest{TransferID: uuid.NewString(), Descriptor: desc}

	var resp transferResponse
	r := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp)
	if id := logger.GetRequestID(ctx); id != "" {
		r.SetHeader("X-Request-ID", id)
	}

	httpResp, err := r.Post(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to call transfer worker: %w", err)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != "" {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error)
		}
		return fmt.Errorf("transfer worker returned error: %s", errorMsg)
	}

	logger.With(logger.Fields{
		logger.FieldJobID:  desc.JobID,
		"transfer_id":      req.TransferID,
		logger.FieldStatus: httpResp.StatusCode(),
	}).Debug(ctx, "Dispatched transfer for %s", desc.SourceURL)
	return nil
}
