// Package chain fetches blocks and coinbase transactions from a
// WhatsOnChain style REST block explorer
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bsv-blockchain/go-sdk/transaction"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the explorer has no such block or transaction
var ErrNotFound = errors.New("not found")

// Block is the part of a block response the service uses
//
// {
//   "hash": "0000000000000000009e3ba1ea2518c0a73212e0a38e3dc3aee2e7df3d883d7c",
//   "height": 654018,
//   "coinbasetxid": "00eb4e6a607f8b2089e237dad9e71e17b18f08c779a2f96a985a9e6bf70be3cf",
//   "tx": ["00eb4e6a607f8b2089e237dad9e71e17b18f08c779a2f96a985a9e6bf70be3cf", ...]
// }
type Block struct {
	Hash          string   `json:"hash"`
	Height        int32    `json:"height"`
	Time          uint64   `json:"time"`
	PreviousBlock string   `json:"previousblockhash"`
	CoinbaseTxID  string   `json:"coinbasetxid"`
	Tx            []string `json:"tx"`
}

// CoinbaseID returns the coinbase txid, falling back to the first listed tx
func (b *Block) CoinbaseID() (string, bool) {
	if b.CoinbaseTxID != "" {
		return b.CoinbaseTxID, true
	}
	if len(b.Tx) > 0 {
		return b.Tx[0], true
	}
	return "", false
}

// Info is the chain tip summary
type Info struct {
	Chain         string `json:"chain"`
	Blocks        int32  `json:"blocks"`
	BestBlockHash string `json:"bestblockhash"`
}

// Client talks to the explorer
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	log      *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the request logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient returns a client for endpoint. token is sent in the "token"
// header when not empty.
func NewClient(endpoint, token string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChainInfo returns the current tip
func (c *Client) ChainInfo(ctx context.Context) (*Info, error) {
	info := &Info{}
	if err := c.getJSON(ctx, "/chain/info", info); err != nil {
		return nil, err
	}
	return info, nil
}

// BestHeight returns the height of the chain tip
func (c *Client) BestHeight(ctx context.Context) (int32, error) {
	info, err := c.ChainInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.Blocks, nil
}

// BlockByHeight returns the block at height
func (c *Client) BlockByHeight(ctx context.Context, height int32) (*Block, error) {
	block := &Block{}
	if err := c.getJSON(ctx, "/block/height/"+strconv.FormatInt(int64(height), 10), block); err != nil {
		return nil, err
	}
	return block, nil
}

// RawTransaction returns the hex encoded transaction
func (c *Client) RawTransaction(ctx context.Context, txID string) (string, error) {
	body, err := c.get(ctx, "/tx/"+txID+"/hex")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Trim(string(body), `"`)), nil
}

// Coinbase returns the coinbase transaction of the block at height
func (c *Client) Coinbase(ctx context.Context, height int32) (*transaction.Transaction, error) {
	block, err := c.BlockByHeight(ctx, height)
	if err != nil {
		return nil, err
	}
	txID, ok := block.CoinbaseID()
	if !ok {
		return nil, fmt.Errorf("block %d has no transactions: %w", height, ErrNotFound)
	}

	raw, err := c.RawTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	tx, err := transaction.NewTransactionFromHex(raw)
	if err != nil {
		return nil, fmt.Errorf("decode coinbase %s: %w", txID, err)
	}
	if got := tx.TxID().String(); got != txID {
		return nil, fmt.Errorf("coinbase txid mismatch: requested %s, decoded %s", txID, got)
	}
	return tx, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.endpoint + path

	// Create a request
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	// Add headers
	if c.token != "" {
		request.Header.Add("token", c.token)
	}
	request.Header.Add("Accept", "application/json")

	// Fire the request
	start := time.Now()
	var res *http.Response
	if res, err = c.http.Do(request); err != nil {
		return nil, err
	}
	defer func() {
		_ = res.Body.Close()
	}()
	c.log.Debug("chain api request",
		zap.String("path", path),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	// read the body
	var body []byte
	if body, err = io.ReadAll(res.Body); err != nil {
		return nil, err
	}

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	case res.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: unexpected status %d: %s", path, res.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
