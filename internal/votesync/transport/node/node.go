// Package node talks to verification nodes. Client reaches a remote node
// over HTTP; Local signs in-process and can serve the same protocol.
package node

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"fortis/internal/votesync"
	"fortis/pkg/platform/circuit"
	"fortis/pkg/platform/sentinel"
)

type ackResponse struct {
	Signature string `json:"signature"`
}

// Client acknowledges submissions through POST {url}/v1/acknowledge. The
// address is the node's configured signing identity.
type Client struct {
	url     string
	address common.Address
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(n *Client) { n.client = c }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(n *Client) { n.breaker = b }
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Client) { n.logger = logger }
}

func NewClient(url string, address common.Address, opts ...Option) *Client {
	c := &Client{
		url:     url,
		address: address,
		client:  &http.Client{Timeout: 30 * time.Second},
		breaker: circuit.New("node:" + address.Hex()),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Address() common.Address { return c.address }

func (c *Client) Acknowledge(ctx context.Context, req votesync.AckRequest) ([]byte, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("node %s circuit open: %w", c.address.Hex(), sentinel.ErrUnavailable)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode ack request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/acknowledge", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ack request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.recordFailure(ctx)
		return nil, fmt.Errorf("request ack from %s: %w", c.address.Hex(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.recordFailure(ctx)
		return nil, fmt.Errorf("node %s returned %d: %w", c.address.Hex(), resp.StatusCode, sentinel.ErrUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordSuccess()
		return nil, fmt.Errorf("node %s refused acknowledgement: %d", c.address.Hex(), resp.StatusCode)
	}

	var out ackResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ack response: %w", err)
	}
	sig, err := hexutil.Decode(out.Signature)
	if err != nil {
		return nil, fmt.Errorf("decode ack signature: %w", err)
	}
	c.breaker.RecordSuccess()
	return sig, nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "verification node circuit opened", "node", c.address.Hex())
	}
}

// Local signs acknowledgements with its own secp256k1 key.
type Local struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewLocal(key *ecdsa.PrivateKey) *Local {
	return &Local{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// GenerateLocal creates a node with a fresh key.
func GenerateLocal() (*Local, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate node key: %w", err)
	}
	return NewLocal(key), nil
}

// LocalFromHex loads a node key from its hex encoding.
func LocalFromHex(hexKey string) (*Local, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse node key: %w", err)
	}
	return NewLocal(key), nil
}

func (l *Local) Address() common.Address { return l.address }

func (l *Local) Acknowledge(ctx context.Context, req votesync.AckRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.LogHash == "" {
		return nil, fmt.Errorf("missing log hash")
	}
	return crypto.Sign(votesync.AckDigest(req.Submission.VoteID, req.LogHash), l.key)
}

// Handler serves POST /v1/acknowledge for this node.
func (l *Local) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/acknowledge", func(w http.ResponseWriter, r *http.Request) {
		var req votesync.AckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid ack request", http.StatusBadRequest)
			return
		}
		sig, err := l.Acknowledge(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ackResponse{Signature: hexutil.Encode(sig)})
	})
	return mux
}
