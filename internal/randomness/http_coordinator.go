package randomness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// HTTPCoordinator places requests with a remote randomness service. The
// service answers asynchronously by calling CallbackURL, which the API
// package routes to Adapter.Fulfill.
type HTTPCoordinator struct {
	endpoint    string
	callbackURL string
	client      *http.Client
}

func NewHTTPCoordinator(endpoint string, callbackURL string) *HTTPCoordinator {
	return &HTTPCoordinator{
		endpoint:    endpoint,
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

type requestBody struct {
	Consumer    string `json:"consumer"`
	KeyHash     string `json:"key_hash"`
	Fee         string `json:"fee"`
	CallbackURL string `json:"callback_url"`
}

type responseBody struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

func (c *HTTPCoordinator) RequestRandomness(ctx context.Context, consumer common.Address, keyHash common.Hash, fee *big.Int) (common.Hash, error) {
	payload, err := json.Marshal(requestBody{
		Consumer:    consumer.Hex(),
		KeyHash:     keyHash.Hex(),
		Fee:         fee.String(),
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		return common.Hash{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/requests", bytes.NewReader(payload))
	if err != nil {
		return common.Hash{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return common.Hash{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return common.Hash{}, err
	}

	var body responseBody
	decodeErr := json.Unmarshal(raw, &body)
	if decodeErr != nil {
		body.Error = strings.TrimSpace(string(raw))
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		return common.Hash{}, fmt.Errorf("%w: %s", ErrInsufficientFunding, body.Error)
	case resp.StatusCode >= 300:
		return common.Hash{}, fmt.Errorf("coordinator responded %d: %s", resp.StatusCode, body.Error)
	case decodeErr != nil:
		return common.Hash{}, fmt.Errorf("coordinator response: %w", decodeErr)
	}

	if body.RequestID == "" {
		return common.Hash{}, fmt.Errorf("coordinator response has no request id")
	}

	return common.HexToHash(body.RequestID), nil
}
