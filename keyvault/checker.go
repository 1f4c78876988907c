package keyvault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// ErrSecretNotFound indicates a reference to a secret the vault does not hold.
var ErrSecretNotFound = errors.New("secret not found")

// SecretGetter reads one secret. *azsecrets.Client satisfies it.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// ClientFactory creates a SecretGetter for a vault URL.
type ClientFactory func(vaultURL string) (SecretGetter, error)

// ReferenceCheck is the result of checking one reference.
type ReferenceCheck struct {
	Name      string `json:"name"`
	Reference string `json:"reference"`
	Err       error  `json:"-"`
}

// Found reports whether the referenced secret exists.
func (c ReferenceCheck) Found() bool {
	return c.Err == nil
}

// Checker confirms that Key Vault references resolve, without exposing the
// secret values. Clients are created once per vault.
type Checker struct {
	factory ClientFactory
	clients map[string]SecretGetter
	mu      sync.RWMutex
}

// NewChecker builds a Checker whose clients authenticate with cred.
func NewChecker(cred azcore.TokenCredential) *Checker {
	return NewCheckerWithFactory(func(vaultURL string) (SecretGetter, error) {
		return azsecrets.NewClient(vaultURL, cred, nil)
	})
}

// NewCheckerWithFactory builds a Checker around a custom client factory.
func NewCheckerWithFactory(factory ClientFactory) *Checker {
	return &Checker{
		factory: factory,
		clients: make(map[string]SecretGetter),
	}
}

// CheckReference returns nil when the secret behind reference exists.
func (c *Checker) CheckReference(ctx context.Context, reference string) error {
	ref, err := ParseReference(reference)
	if err != nil {
		return err
	}

	client, err := c.getClient(ref.VaultURL)
	if err != nil {
		return err
	}

	resp, err := client.GetSecret(ctx, ref.SecretName, ref.Version, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrSecretNotFound, ref.SecretName)
		}
		// Don't include vault URL in error to avoid information disclosure in logs
		return fmt.Errorf("failed to get secret from Key Vault: %w", err)
	}

	if resp.Value == nil {
		return fmt.Errorf("secret has no value")
	}

	return nil
}

// CheckAll checks each named reference in order, continuing past failures.
func (c *Checker) CheckAll(ctx context.Context, names, references []string) []ReferenceCheck {
	results := make([]ReferenceCheck, 0, len(references))
	for i, reference := range references {
		check := ReferenceCheck{Reference: reference}
		if i < len(names) {
			check.Name = names[i]
		}

		if err := ctx.Err(); err != nil {
			check.Err = err
		} else {
			check.Err = c.CheckReference(ctx, reference)
		}
		results = append(results, check)
	}
	return results
}

func (c *Checker) getClient(vaultURL string) (SecretGetter, error) {
	// Double-checked locking pattern: check without lock first for performance,
	// then acquire write lock only if client doesn't exist
	c.mu.RLock()
	if client, ok := c.clients[vaultURL]; ok {
		c.mu.RUnlock()
		return client, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[vaultURL]; ok {
		return client, nil
	}

	client, err := c.factory(vaultURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}

	c.clients[vaultURL] = client
	return client, nil
}
