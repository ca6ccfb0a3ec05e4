package wallet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrInsufficientFunds is returned by Debit when the player's spendable
// balance cannot cover the requested amount. The wallet service is the single
// source of truth for this check (atomic decrement-if-sufficient).
var ErrInsufficientFunds = errors.New("wallet: insufficient funds")

// Client calls the account/balance service. Amounts are platform coins.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// Debit removes amount coins from the player's spendable balance. The wallet
// performs the check-and-decrement atomically; a rejection comes back as
// ErrInsufficientFunds with no side effects.
func (c *Client) Debit(playerID string, amount int64) error {
	status, err := c.post("/api/wallet/debit", playerID, amount)
	if status == http.StatusPaymentRequired {
		return ErrInsufficientFunds
	}
	return err
}

// Credit adds amount coins to the player's balance.
func (c *Client) Credit(playerID string, amount int64) error {
	_, err := c.post("/api/wallet/credit", playerID, amount)
	return err
}

// Balance returns the player's spendable coin balance.
func (c *Client) Balance(playerID string) (int64, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/wallet/balance?player_id="+playerID, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var data struct {
		Balance int64  `json:"balance"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &data)
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("wallet: %s", data.Error)
	}
	return data.Balance, nil
}

func (c *Client) post(path, playerID string, amount int64) (int, error) {
	payload := map[string]interface{}{
		"playerId": playerID,
		"amount":   amount,
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	var data struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(respBody, &data)
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("wallet: %s", data.Error)
	}
	return resp.StatusCode, nil
}
