package keyvault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/jongio/kvenv/envfile"
	"github.com/jongio/kvenv/logutil"
	"github.com/jongio/kvenv/secretname"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrUpload matches every per-entry upload failure.
var ErrUpload = errors.New("failed to set secret")

// ErrCircuitOpen is reported for entries skipped after too many consecutive
// failures.
var ErrCircuitOpen = errors.New("too many consecutive failures, remaining secrets not sent")

// SecretSetter is the single Key Vault operation the upload needs.
// *azsecrets.Client satisfies it.
type SecretSetter interface {
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
}

// UploadOptions configures an Uploader.
type UploadOptions struct {
	// RateLimit caps SetSecret calls per second. 0 means unlimited.
	RateLimit float64

	// MaxConsecutiveFailures stops sending once this many calls in a row
	// have failed; the remaining entries are reported with ErrCircuitOpen.
	// 0 disables the breaker.
	MaxConsecutiveFailures int

	// ContentType is stored with every secret when set.
	ContentType string

	// OnOutcome, when set, is called after each entry is processed.
	OnOutcome func(Outcome)

	// OnBreakerStateChange, when set, is called when the failure breaker
	// opens or closes.
	OnBreakerStateChange func(vaultName string, state gobreaker.State)
}

// Outcome is the result of uploading one entry.
type Outcome struct {
	Key        string        `json:"key"`
	SecretName string        `json:"secretName"`
	Version    string        `json:"version,omitempty"`
	Duration   time.Duration `json:"durationNs"`
	Err        error         `json:"-"`
}

// Succeeded reports whether the secret was written.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// UploadError describes a failed entry.
type UploadError struct {
	Key        string
	SecretName string
	Err        error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to set secret %q (from %s): %v", e.SecretName, e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUpload) true for every UploadError.
func (e *UploadError) Is(target error) bool { return target == ErrUpload }

// UploadReport collects the outcome of every entry of one sweep, in order.
type UploadReport struct {
	VaultName string
	Outcomes  []Outcome
}

// Succeeded returns the outcomes that wrote a secret.
func (r *UploadReport) Succeeded() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the outcomes that did not.
func (r *UploadReport) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// Err joins every failure, or returns nil when all entries succeeded.
func (r *UploadReport) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// CheckPreconditions validates the inputs of an upload or render before any
// external call is made.
func CheckPreconditions(vaultName string, t *envfile.Table) error {
	if err := ValidateVaultName(vaultName); err != nil {
		return err
	}
	if t == nil || t.Len() == 0 {
		return ErrNoEntries
	}
	return nil
}

// Uploader writes the entries of a table to one vault.
type Uploader struct {
	vaultName string
	setter    SecretSetter
	opts      UploadOptions
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
}

// NewUploader creates an Uploader that sends through setter.
func NewUploader(vaultName string, setter SecretSetter, opts UploadOptions) (*Uploader, error) {
	if err := ValidateVaultName(vaultName); err != nil {
		return nil, err
	}

	u := &Uploader{
		vaultName: vaultName,
		setter:    setter,
		opts:      opts,
	}

	if opts.RateLimit > 0 {
		u.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	if opts.MaxConsecutiveFailures > 0 {
		threshold := uint32(opts.MaxConsecutiveFailures)
		u.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: vaultName,
			// A tripped breaker stays open for the rest of the sweep.
			Timeout: 24 * time.Hour,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logutil.NewLogger("upload").Debug("breaker state changed", "vault", name, "from", from.String(), "to", to.String())
				if opts.OnBreakerStateChange != nil {
					opts.OnBreakerStateChange(name, to)
				}
			},
		})
	}

	return u, nil
}

// NewUploaderForVault creates an Uploader backed by an azsecrets client for
// the named vault.
func NewUploaderForVault(vaultName string, cred azcore.TokenCredential, opts UploadOptions) (*Uploader, error) {
	if err := ValidateVaultName(vaultName); err != nil {
		return nil, err
	}

	client, err := NewSecretsClient(vaultName, cred)
	if err != nil {
		return nil, err
	}

	return NewUploader(vaultName, client, opts)
}

// NewSecretsClient creates an azsecrets client for the named vault.
func NewSecretsClient(vaultName string, cred azcore.TokenCredential) (*azsecrets.Client, error) {
	if err := ValidateVaultName(vaultName); err != nil {
		return nil, err
	}
	client, err := azsecrets.NewClient(VaultURL(vaultName), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	return client, nil
}

// Upload sends every entry of t, in order, under its store-form name. A
// failed entry never stops the sweep; every entry gets exactly one Outcome.
func (u *Uploader) Upload(ctx context.Context, t *envfile.Table) *UploadReport {
	log := logutil.NewLogger("upload").WithFields("vault", u.vaultName)
	report := &UploadReport{VaultName: u.vaultName}

	for _, entry := range t.Entries() {
		outcome := u.uploadOne(ctx, entry)

		if outcome.Err != nil {
			log.Warn("secret not set", "key", entry.Key, "secret", outcome.SecretName, "error", outcome.Err)
		} else {
			log.Debug("secret set", "key", entry.Key, "secret", outcome.SecretName, "version", outcome.Version)
		}

		report.Outcomes = append(report.Outcomes, outcome)
		if u.opts.OnOutcome != nil {
			u.opts.OnOutcome(outcome)
		}
	}

	return report
}

func (u *Uploader) uploadOne(ctx context.Context, entry envfile.Entry) Outcome {
	start := time.Now()
	name := secretname.ToStoreForm(entry.Key)
	outcome := Outcome{Key: entry.Key, SecretName: name}

	fail := func(err error) Outcome {
		outcome.Err = &UploadError{Key: entry.Key, SecretName: name, Err: err}
		outcome.Duration = time.Since(start)
		return outcome
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if err := secretname.Validate(name); err != nil {
		return fail(err)
	}

	if IsKeyVaultReference(entry.Value) {
		logutil.NewLogger("upload").Warn("value is already a Key Vault reference, uploading it as text", "key", entry.Key)
	}

	if u.limiter != nil {
		if err := u.limiter.Wait(ctx); err != nil {
			return fail(err)
		}
	}

	version, err := u.send(ctx, name, entry.Value)
	if err != nil {
		return fail(err)
	}

	outcome.Version = version
	outcome.Duration = time.Since(start)
	return outcome
}

// send performs the SetSecret call, through the breaker when one is set.
func (u *Uploader) send(ctx context.Context, name, value string) (string, error) {
	call := func() (string, error) {
		params := azsecrets.SetSecretParameters{Value: to.Ptr(value)}
		if u.opts.ContentType != "" {
			params.ContentType = to.Ptr(u.opts.ContentType)
		}
		resp, err := u.setter.SetSecret(ctx, name, params, nil)
		if err != nil {
			return "", describeError(err)
		}
		if resp.ID == nil {
			return "", nil
		}
		return resp.ID.Version(), nil
	}

	if u.breaker == nil {
		return call()
	}

	result, err := u.breaker.Execute(func() (interface{}, error) {
		return call()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", ErrCircuitOpen
	}
	if err != nil {
		return "", err
	}
	version, _ := result.(string)
	return version, nil
}

// describeError adds a hint for the Key Vault failures operators hit most.
func describeError(err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}

	switch respErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("access denied (%s); check the vault's access policy or RBAC role: %w", respErr.ErrorCode, err)
	case http.StatusConflict:
		return fmt.Errorf("secret is deleted but recoverable (%s); purge or recover it first: %w", respErr.ErrorCode, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("throttled by Key Vault (%s); retry with a lower --rate: %w", respErr.ErrorCode, err)
	default:
		return err
	}
}
