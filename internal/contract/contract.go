package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/maticvigil/vigil-go/internal/abi"
	"github.com/maticvigil/vigil-go/internal/logger"
	"github.com/maticvigil/vigil-go/internal/rest"
	"github.com/maticvigil/vigil-go/internal/signer"
)

const (
	VerbGet  = "get"
	VerbPost = "post"
)

// Method describes one generated REST endpoint of a contract.
type Method struct {
	Name   string
	URL    string
	Verb   string
	Params []string
}

// Config carries what a proxy needs from the session that generated it.
type Config struct {
	Address          string
	Methods          map[string]Method
	InternalEndpoint string
	WriteKey         string
	Signer           signer.Signer
	Rest             *rest.Client
	Logger           logger.Logger
}

type Option func(*Contract) error

// WithABI validates every call against reg before it is sent.
func WithABI(reg *abi.Registry) Option {
	return func(c *Contract) error {
		c.abi = reg
		return nil
	}
}

// WithABIJSON is WithABI for a raw interface description.
func WithABIJSON(data []byte) Option {
	return func(c *Contract) error {
		return c.LoadABI(data)
	}
}

// Contract is a proxy over the gateway's REST API for one deployed contract.
type Contract struct {
	address  string
	internal string
	writeKey string
	methods  map[string]Method

	signer signer.Signer
	rest   *rest.Client
	lggr   logger.Logger

	mu      sync.RWMutex
	abi     *abi.Registry
	pending map[string]struct{}
}

func New(cfg Config, opts ...Option) (*Contract, error) {
	if cfg.Rest == nil {
		return nil, fmt.Errorf("rest client is required")
	}
	lggr := cfg.Logger
	if lggr == nil {
		lggr = logger.Nop()
	}
	c := &Contract{
		address:  cfg.Address,
		internal: strings.TrimRight(cfg.InternalEndpoint, "/"),
		writeKey: cfg.WriteKey,
		methods:  maps.Clone(cfg.Methods),
		signer:   cfg.Signer,
		rest:     cfg.Rest,
		lggr:     lggr.Named("contract").Named(cfg.Address),
		pending:  make(map[string]struct{}),
	}
	if c.methods == nil {
		c.methods = make(map[string]Method)
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Contract) Address() string {
	return c.address
}

// Methods returns the names of all dispatchable methods, sorted.
func (c *Contract) Methods() []string {
	return slices.Sorted(maps.Keys(c.methods))
}

func (c *Contract) Method(name string) (Method, bool) {
	m, ok := c.methods[name]
	return m, ok
}

// LoadABI attaches an interface description, replacing any previous one.
func (c *Contract) LoadABI(data []byte) error {
	entries, err := abi.ParseEntries(data)
	if err != nil {
		return err
	}
	reg, err := abi.New(entries)
	if err != nil {
		return fmt.Errorf("error loading ABI for %s: %w", c.address, err)
	}
	c.mu.Lock()
	c.abi = reg
	c.mu.Unlock()
	return nil
}

func (c *Contract) ABI() *abi.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.abi
}

// Args holds the arguments of a generic invocation. GET methods take
// Positional, POST methods take Named.
type Args struct {
	Positional []any
	Named      map[string]any
}

// Result is what Invoke returns: the decoded response of a GET, or the
// transactions sent by a POST.
type Result struct {
	Response     *rest.Envelope
	Transactions []Transaction
}

// Invoke dispatches name through the method table.
func (c *Contract) Invoke(ctx context.Context, name string, args Args) (*Result, error) {
	m, ok := c.methods[name]
	if !ok {
		return nil, fmt.Errorf("unknown method %s on contract %s", name, c.address)
	}
	switch m.Verb {
	case VerbGet:
		env, err := c.Call(ctx, name, args.Positional...)
		if err != nil {
			return nil, err
		}
		return &Result{Response: env}, nil
	case VerbPost:
		txs, err := c.Transact(ctx, name, args.Named)
		if err != nil {
			return nil, err
		}
		return &Result{Transactions: txs}, nil
	default:
		return nil, fmt.Errorf("unsupported verb %q for method %s", m.Verb, name)
	}
}

// Call reads from the contract. Arguments are appended to the method URL as
// path segments, in order.
func (c *Contract) Call(ctx context.Context, name string, args ...any) (*rest.Envelope, error) {
	m, ok := c.methods[name]
	if !ok || m.Verb != VerbGet {
		return nil, fmt.Errorf("no GET method %s on contract %s", name, c.address)
	}
	if reg := c.ABI(); reg != nil {
		_, errs, err := reg.CoerceArgs(name, args)
		if err != nil {
			return nil, err
		}
		if err := errs.Err(name); err != nil {
			return nil, err
		}
	}

	u := m.URL
	for _, arg := range args {
		u += "/" + url.PathEscape(fmt.Sprint(arg))
	}
	u = strings.TrimRight(u, "/")

	c.lggr.Debugw("Calling contract function", "method", name, "url", u)
	var env rest.Envelope
	if err := c.rest.Get(ctx, u, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Transaction is one transaction the gateway submitted for a write.
type Transaction struct {
	TxHash string `json:"txHash"`
}

type transactResponse struct {
	Success bool          `json:"success"`
	Data    []Transaction `json:"data"`
	Error   string        `json:"error"`
}

// Transact writes to the contract. The returned transaction hashes stay
// pending until Confirm is called for them.
func (c *Contract) Transact(ctx context.Context, name string, params map[string]any) ([]Transaction, error) {
	m, ok := c.methods[name]
	if !ok || m.Verb != VerbPost {
		return nil, fmt.Errorf("no POST method %s on contract %s", name, c.address)
	}
	if reg := c.ABI(); reg != nil {
		_, errs, err := reg.CoerceParams(name, params)
		if err != nil {
			return nil, err
		}
		if err := errs.Err(name); err != nil {
			return nil, err
		}
	}
	if params == nil {
		params = map[string]any{}
	}

	c.lggr.Debugw("Calling contract function", "method", name, "url", m.URL)
	var resp transactResponse
	if err := c.rest.Post(ctx, m.URL, params, map[string]string{"X-API-KEY": c.writeKey}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("error sending %s: %s", name, resp.Error)
	}
	if len(resp.Data) == 0 || resp.Data[0].TxHash == "" {
		return nil, fmt.Errorf("error sending %s: no transaction hash in response", name)
	}

	c.mu.Lock()
	c.pending[resp.Data[0].TxHash] = struct{}{}
	c.mu.Unlock()
	return resp.Data, nil
}

// Confirm clears txHash from the pending set and reports whether it was there.
func (c *Contract) Confirm(txHash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[txHash]
	delete(c.pending, txHash)
	return ok
}

// PendingTxHashes returns the unconfirmed transactions sent through c, sorted.
func (c *Contract) PendingTxHashes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.pending))
}

// MarshalJSON describes the proxy: address, methods and pending transactions.
func (c *Contract) MarshalJSON() ([]byte, error) {
	methods := make([]Method, 0, len(c.methods))
	for _, name := range c.Methods() {
		methods = append(methods, c.methods[name])
	}
	return json.Marshal(struct {
		Address string   `json:"address"`
		Methods []Method `json:"methods"`
		Pending []string `json:"pending"`
	}{c.address, methods, c.PendingTxHashes()})
}
