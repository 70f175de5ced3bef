package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/tonkeeper/tongo/ton"
)

// Client is an HTTP client for a remote token service.
// It acts on behalf of a single holder account.
type Client struct {
	baseURL    string
	apiKey     string
	holder     ton.AccountID
	httpClient *http.Client

	// Rate limiting
	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration

	readAttempts uint
}

// NewClient creates a new token service client bound to holder
func NewClient(baseURL, apiKey string, holder ton.AccountID) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		holder:  holder,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		minDelay:     100 * time.Millisecond,
		readAttempts: 3,
	}
}

func (c *Client) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.lastCall)
	if elapsed < c.minDelay {
		time.Sleep(c.minDelay - elapsed)
	}
	c.lastCall = time.Now()
}

// statusError is returned for non-2xx responses
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("token API error %d: %s", e.code, e.body)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	c.throttle()

	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &statusError{code: resp.StatusCode, body: string(data)}
	}

	return data, nil
}

// get performs an idempotent read, retrying transient failures.
// Client errors (4xx) are not retried.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return retry.Unrecoverable(err)
			}
			data, err := c.doRequest(ctx, http.MethodGet, path, nil)
			if err != nil {
				if se, ok := err.(*statusError); ok && se.code < 500 {
					return retry.Unrecoverable(err)
				}
				return err
			}
			if err := json.Unmarshal(data, out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("unmarshal: %w", err))
			}
			return nil
		},
		retry.Attempts(c.readAttempts),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

// BalanceOf returns the token balance of account
func (c *Client) BalanceOf(ctx context.Context, account ton.AccountID) (uint64, error) {
	var resp BalanceResponse
	if err := c.get(ctx, "/balances/"+account.ToRaw(), &resp); err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

// Allowance returns how much spender may move out of owner's balance
func (c *Client) Allowance(ctx context.Context, owner, spender ton.AccountID) (uint64, error) {
	path := fmt.Sprintf("/allowances/%s/%s", owner.ToRaw(), spender.ToRaw())
	var resp AllowanceResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

// TransferFrom moves amount from one account to another using the holder's allowance.
// Transfers are never retried.
func (c *Client) TransferFrom(ctx context.Context, from, to ton.AccountID, amount uint64) (bool, error) {
	body := TransferFromRequest{
		Spender: c.holder.ToRaw(),
		From:    from.ToRaw(),
		To:      to.ToRaw(),
		Amount:  amount,
	}
	return c.postTransfer(ctx, "/transfer-from", body)
}

// Transfer moves amount from the holder to another account
func (c *Client) Transfer(ctx context.Context, to ton.AccountID, amount uint64) (bool, error) {
	body := TransferRequest{
		From:   c.holder.ToRaw(),
		To:     to.ToRaw(),
		Amount: amount,
	}
	return c.postTransfer(ctx, "/transfer", body)
}

func (c *Client) postTransfer(ctx context.Context, path string, body interface{}) (bool, error) {
	data, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return false, err
	}

	var resp TransferResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return false, fmt.Errorf("unmarshal: %w", err)
	}
	return resp.Success, nil
}
