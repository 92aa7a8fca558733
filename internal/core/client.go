package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/maticvigil/vigil-go/internal/logger"
	"github.com/maticvigil/vigil-go/internal/rest"
	"github.com/maticvigil/vigil-go/internal/settings"
	"github.com/maticvigil/vigil-go/internal/signer"
)

// Messages signed for the gateway handshakes.
const (
	LoginMessage  = "Trying to login"
	SignupMessage = "Trying to signup"
	DeployMessage = "Trying to deploy"
)

var (
	ErrNoSigner  = errors.New("no signing key configured, set PRIVATEKEY in settings or pass a signer")
	ErrNoAccount = errors.New("not logged in and no cached account information")
)

type Options struct {
	// Dir is the settings directory. Defaults to ~/.maticvigil.
	Dir string
	// Signer overrides the PRIVATEKEY of the settings file.
	Signer *signer.Options
	Logger logger.Logger
	Rest   []rest.Option
	// Now stamps the account cache. Defaults to time.Now.
	Now func() time.Time
}

// Client is a session with the gateway: settings, signing identity and the
// account of the last successful login.
type Client struct {
	store    *settings.Store
	settings *settings.Settings
	signer   signer.Signer
	rest     *rest.Client
	lggr     logger.Logger
	now      func() time.Time

	mu      sync.RWMutex
	account *settings.Account
}

// New loads the settings and logs in. A first run only writes the default
// settings. When login fails the cached account, if any, is used instead.
func New(ctx context.Context, opts Options) (*Client, error) {
	lggr := opts.Logger
	if lggr == nil {
		lggr = logger.Nop()
	}
	lggr = lggr.Named("core")

	dir := opts.Dir
	if dir == "" {
		var err error
		if dir, err = settings.DefaultDir(); err != nil {
			return nil, err
		}
	}
	store := settings.NewStore(dir)
	cfg, created, err := store.Load()
	if err != nil {
		return nil, err
	}
	lggr.Debugw("Loaded settings", "dir", dir, "endpoint", cfg.InternalAPIEndpoint, "created", created)

	var s signer.Signer
	switch {
	case opts.Signer != nil:
		s, err = signer.New(*opts.Signer)
	case cfg.PrivateKey != "":
		s, err = signer.New(signer.Options{PrivateKey: cfg.PrivateKey})
	}
	if err != nil {
		return nil, fmt.Errorf("error creating signer: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	c := &Client{
		store:    store,
		settings: cfg,
		signer:   s,
		rest:     rest.New(lggr, opts.Rest...),
		lggr:     lggr,
		now:      now,
	}

	if created {
		lggr.Infow("Created clean slate settings", "dir", dir)
		return c, nil
	}

	if _, err := c.Login(ctx); err != nil {
		lggr.Infow("Could not connect to MaticVigil endpoint. Attempting to load account information from cache.", "err", err)
		acct, cacheErr := store.LoadAccount()
		if cacheErr != nil {
			lggr.Errorw("Could not load account information from cache", "err", cacheErr)
			return c, nil
		}
		lggr.Infow("Loaded account information from cache", "cachedTime", acct.CachedTime)
		c.setAccount(acct)
	}
	return c, nil
}

func (c *Client) internalURL(path string) string {
	return strings.TrimRight(c.settings.InternalAPIEndpoint, "/") + path
}

func (c *Client) sign(msg string) (string, string, error) {
	if c.signer == nil {
		return "", "", ErrNoSigner
	}
	return signer.SignedMessage(c.signer, msg)
}

type accountResponse struct {
	Success bool              `json:"success"`
	Data    *settings.Account `json:"data"`
	Error   string            `json:"error"`
}

// Login authenticates with a signed message and caches the account.
func (c *Client) Login(ctx context.Context) (*settings.Account, error) {
	msg, sig, err := c.sign(LoginMessage)
	if err != nil {
		return nil, err
	}
	var resp accountResponse
	if err := c.rest.Post(ctx, c.internalURL("/login"), map[string]string{"msg": msg, "sig": sig}, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, fmt.Errorf("login failed: %s", resp.Error)
	}

	acct := resp.Data
	c.logAccount(acct)
	if err := c.store.SaveAccount(acct, c.now()); err != nil {
		c.lggr.Warnw("Could not cache account information", "err", err)
	}
	c.setAccount(acct)
	return acct, nil
}

func (c *Client) logAccount(acct *settings.Account) {
	for _, ct := range acct.Contracts {
		c.lggr.Infow("Contract deployed/verified", "name", ct.Name, "address", ct.Address)
	}
	c.lggr.Infow("Account", "apiPrefix", acct.APIPrefix, "hooks", string(acct.Hooks), "hookEvents", string(acct.HookEvents))
}

// Signup registers the signing address with an invite code.
func (c *Client) Signup(ctx context.Context, inviteCode string) (*rest.Envelope, error) {
	msg, sig, err := c.sign(SignupMessage)
	if err != nil {
		return nil, err
	}
	c.lggr.Debugw("Attempting to signup with MaticVigil")
	var env rest.Envelope
	params := map[string]string{"msg": msg, "sig": sig, "code": inviteCode}
	if err := c.rest.Post(ctx, c.internalURL("/signup"), params, nil, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return &env, fmt.Errorf("signup failed: %s", env.Error)
	}
	return &env, nil
}

func (c *Client) setAccount(acct *settings.Account) {
	c.mu.Lock()
	c.account = acct
	c.mu.Unlock()
}

// Account is nil until a login succeeded or the cache was loaded.
func (c *Client) Account() *settings.Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

// Contracts lists the contracts deployed or verified from the account.
func (c *Client) Contracts() []settings.Contract {
	acct := c.Account()
	if acct == nil {
		return nil
	}
	return acct.Contracts
}

func (c *Client) Settings() *settings.Settings {
	return c.settings
}

func (c *Client) Signer() signer.Signer {
	return c.signer
}

func (c *Client) Rest() *rest.Client {
	return c.rest
}

func (c *Client) Logger() logger.Logger {
	return c.lggr
}
