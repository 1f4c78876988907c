package testutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeVault is an in-memory Key Vault. Failing secrets answer with an HTTP
// error built the way azcore builds real ones.
type FakeVault struct {
	Name string

	mu       sync.Mutex
	secrets  map[string]string
	versions map[string]int
	failures map[string]int
	setCalls []string
}

// NewFakeVault returns an empty vault.
func NewFakeVault(name string) *FakeVault {
	return &FakeVault{
		Name:     name,
		secrets:  make(map[string]string),
		versions: make(map[string]int),
		failures: make(map[string]int),
	}
}

// FailSet makes every SetSecret for name fail with status.
func (v *FakeVault) FailSet(name string, status int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failures[name] = status
}

// Put stores a secret directly.
func (v *FakeVault) Put(name, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[name] = value
	v.versions[name]++
}

// Value returns the stored value of name.
func (v *FakeVault) Value(name string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	value, ok := v.secrets[name]
	return value, ok
}

// SetCalls returns the secret names passed to SetSecret, in call order.
func (v *FakeVault) SetCalls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.setCalls...)
}

// SetSecret implements keyvault.SecretSetter.
func (v *FakeVault) SetSecret(_ context.Context, name string, params azsecrets.SetSecretParameters, _ *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.setCalls = append(v.setCalls, name)
	if status, ok := v.failures[name]; ok {
		return azsecrets.SetSecretResponse{}, v.httpError(http.MethodPut, name, status)
	}

	if params.Value != nil {
		v.secrets[name] = *params.Value
	}
	v.versions[name]++

	id := v.id(name)
	var resp azsecrets.SetSecretResponse
	resp.ID = &id
	resp.Value = params.Value
	return resp, nil
}

// GetSecret implements keyvault.SecretGetter. Unknown names answer 404.
func (v *FakeVault) GetSecret(_ context.Context, name string, _ string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	value, ok := v.secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, v.httpError(http.MethodGet, name, http.StatusNotFound)
	}

	id := v.id(name)
	var resp azsecrets.GetSecretResponse
	resp.ID = &id
	resp.Value = &value
	return resp, nil
}

func (v *FakeVault) id(name string) azsecrets.ID {
	return azsecrets.ID(fmt.Sprintf("https://%s.vault.azure.net/secrets/%s/v%d", v.Name, name, v.versions[name]))
}

func (v *FakeVault) httpError(method, name string, status int) error {
	req, err := http.NewRequest(method, fmt.Sprintf("https://%s.vault.azure.net/secrets/%s", v.Name, name), nil)
	if err != nil {
		return err
	}
	body := fmt.Sprintf(`{"error":{"code":%q,"message":"fake vault"}}`, http.StatusText(status))
	return runtime.NewResponseError(&http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	})
}
