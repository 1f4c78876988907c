// Package azcli reads login, subscription and Key Vault information from
// the Azure CLI. Every call shells out to az with --output json; nothing in
// this package changes the user's CLI state except Login.
package azcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jongio/kvenv/cache"
	"github.com/jongio/kvenv/logutil"
)

// Errors reported by Client.
var (
	ErrNotLoggedIn         = errors.New("not logged in to the Azure CLI; run 'kvenv login' or 'az login'")
	ErrAzNotInstalled      = errors.New("the Azure CLI (az) was not found on PATH; install it from https://aka.ms/installazurecli")
	ErrInvalidSubscription = errors.New("invalid subscription ID")
)

// DefaultCacheTTL is how long a cached inventory stays valid.
const DefaultCacheTTL = 10 * time.Minute

var subscriptionIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// CommandRunner is an interface for running external commands.
// This allows for mocking in tests.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes a command and returns its standard output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

// User is the signed-in identity.
type User struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Account is one entry of 'az account show' or 'az account list'.
type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TenantID  string `json:"tenantId"`
	IsDefault bool   `json:"isDefault"`
	State     string `json:"state"`
	User      User   `json:"user"`
}

// Vault is one entry of 'az keyvault list'.
type Vault struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Location      string `json:"location"`
	ResourceGroup string `json:"resourceGroup"`
}

// SubscriptionVaults pairs a subscription with the vaults it holds.
type SubscriptionVaults struct {
	Subscription Account  `json:"subscription"`
	Vaults       []string `json:"vaults"`
	Err          string   `json:"error,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithRunner replaces the command runner.
func WithRunner(runner CommandRunner) Option {
	return func(c *Client) { c.runner = runner }
}

// WithCache stores inventories in m.
func WithCache(m *cache.Manager) Option {
	return func(c *Client) { c.cache = m }
}

// WithExecutable sets the az executable name or path.
func WithExecutable(path string) Option {
	return func(c *Client) { c.executable = path }
}

// Client talks to the Azure CLI. The account from the last successful
// Account or Login call is kept for the Client's lifetime.
type Client struct {
	runner     CommandRunner
	cache      *cache.Manager
	executable string

	mu      sync.Mutex
	account *Account
}

// NewClient returns a Client that runs "az" from PATH unless configured
// otherwise.
func NewClient(opts ...Option) *Client {
	c := &Client{
		runner:     ExecRunner{},
		executable: "az",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Account returns the current account. A failing 'az account show' means
// nobody is logged in.
func (c *Client) Account(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.runJSON(ctx, &account, "account", "show"); err != nil {
		if errors.Is(err, ErrAzNotInstalled) || ctx.Err() != nil {
			return nil, err
		}
		logutil.NewLogger("azcli").Debug("az account show failed", "error", err)
		return nil, ErrNotLoggedIn
	}
	c.remember(&account)
	return &account, nil
}

func (c *Client) remember(account *Account) {
	c.mu.Lock()
	c.account = account
	c.mu.Unlock()
}

// knownAccount returns the remembered account, asking az only when there is
// none yet.
func (c *Client) knownAccount(ctx context.Context) (*Account, error) {
	c.mu.Lock()
	account := c.account
	c.mu.Unlock()
	if account != nil {
		return account, nil
	}
	return c.Account(ctx)
}

// Login runs the interactive 'az login' flow and returns the first account
// it reports.
func (c *Client) Login(ctx context.Context) (*Account, error) {
	var accounts []Account
	if err := c.runJSON(ctx, &accounts, "login"); err != nil {
		return nil, fmt.Errorf("failed to login to Azure CLI: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("failed to login to Azure CLI: no accounts returned")
	}
	c.remember(&accounts[0])
	return &accounts[0], nil
}

// Subscriptions lists the subscriptions visible to the current account.
func (c *Client) Subscriptions(ctx context.Context) ([]Account, error) {
	var subs []Account
	if err := c.runJSON(ctx, &subs, "account", "list"); err != nil {
		return nil, fmt.Errorf("failed to retrieve subscriptions: %w", err)
	}
	return subs, nil
}

// Vaults lists the vault names in one subscription. The subscription is
// passed per call so the CLI's default subscription is left alone.
func (c *Client) Vaults(ctx context.Context, subscriptionID string) ([]string, error) {
	if !subscriptionIDPattern.MatchString(subscriptionID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubscription, subscriptionID)
	}

	var vaults []Vault
	if err := c.runJSON(ctx, &vaults, "keyvault", "list", "--subscription", subscriptionID); err != nil {
		return nil, fmt.Errorf("failed to list key vaults: %w", err)
	}

	names := make([]string, 0, len(vaults))
	for _, v := range vaults {
		names = append(names, v.Name)
	}
	return names, nil
}

// Vault looks up one vault by name across the account's subscriptions.
func (c *Client) Vault(ctx context.Context, name string) (*Vault, error) {
	if name == "" || strings.HasPrefix(name, "-") {
		return nil, fmt.Errorf("invalid key vault name %q", name)
	}

	var vault Vault
	if err := c.runJSON(ctx, &vault, "keyvault", "show", "--name", name); err != nil {
		return nil, fmt.Errorf("failed to find key vault %s: %w", name, err)
	}
	return &vault, nil
}

// Inventory lists every subscription with its vaults. A subscription whose
// vaults cannot be listed is kept with Err set. Results are served from
// the cache when one is configured, unless refresh is true.
func (c *Client) Inventory(ctx context.Context, refresh bool) ([]SubscriptionVaults, error) {
	log := logutil.NewLogger("azcli")

	var key string
	if c.cache != nil {
		account, err := c.knownAccount(ctx)
		if err != nil {
			return nil, err
		}
		key = "inventory-" + account.TenantID + "-" + account.User.Name

		if !refresh {
			var cached []SubscriptionVaults
			ok, err := c.cache.Get(key, &cached)
			if err != nil {
				log.Debug("ignoring unreadable inventory cache", "error", err)
			} else if ok {
				log.Debug("inventory served from cache", "subscriptions", len(cached))
				return cached, nil
			}
		}
	}

	subs, err := c.Subscriptions(ctx)
	if err != nil {
		return nil, err
	}

	inventory := make([]SubscriptionVaults, 0, len(subs))
	for _, sub := range subs {
		entry := SubscriptionVaults{Subscription: sub, Vaults: []string{}}
		vaults, err := c.Vaults(ctx, sub.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("could not list key vaults", "subscription", sub.Name, "error", err)
			entry.Err = err.Error()
		} else {
			entry.Vaults = vaults
		}
		inventory = append(inventory, entry)
	}

	if c.cache != nil {
		if err := c.cache.Set(key, inventory); err != nil {
			log.Debug("failed to cache inventory", "error", err)
		}
	}

	return inventory, nil
}

func (c *Client) runJSON(ctx context.Context, target interface{}, args ...string) error {
	args = append(args, "--output", "json")
	out, err := c.runner.Run(ctx, c.executable, args...)
	if err != nil {
		return describeRunError(err)
	}
	if err := json.Unmarshal(out, target); err != nil {
		return fmt.Errorf("failed to parse az output: %w", err)
	}
	return nil
}

func describeRunError(err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return ErrAzNotInstalled
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if stderr := strings.TrimSpace(string(exitErr.Stderr)); stderr != "" {
			return fmt.Errorf("%w: %s", err, firstLine(stderr))
		}
	}
	return err
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
