package credential

import (
	"context"
	"errors"
	"fmt"

	b2v1 "github.com/WirelessCar/b2-operator/api/v1"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

var (
	// ErrResolution wraps every failure to produce a Credential.
	ErrResolution = errors.New("failed to resolve credential")
	// ErrFieldNotFound is returned when a configured field is absent from the secret.
	ErrFieldNotFound = errors.New("field not found in secret")
	// ErrEmptyField is returned when a configured field holds an empty value.
	ErrEmptyField = errors.New("field is empty in secret")
)

const redacted = "<redacted>"

// SecretReader reads the decoded data of a secret.
type SecretReader interface {
	Get(ctx context.Context, namespace string, name string) (map[string]string, error)
}

// Credential is a B2 application key.
type Credential struct {
	KeyID          string
	ApplicationKey string
}

// MarshalLog keeps the application key out of log output.
func (c Credential) MarshalLog() any {
	return struct {
		KeyID          string `json:"keyID"`
		ApplicationKey string `json:"applicationKey"`
	}{
		KeyID:          c.KeyID,
		ApplicationKey: redacted,
	}
}

func (c Credential) String() string {
	return fmt.Sprintf("{KeyID:%s ApplicationKey:%s}", c.KeyID, redacted)
}

type Resolver struct {
	secrets SecretReader
}

func NewResolver(secrets SecretReader) *Resolver {
	return &Resolver{
		secrets: secrets,
	}
}

// Resolve reads the secret referenced by ref and returns the credential held in
// its configured fields.
func (r *Resolver) Resolve(ctx context.Context, ref b2v1.AccountSecretReference) (Credential, error) {
	log := logf.FromContext(ctx)

	data, err := r.secrets.Get(ctx, ref.Namespace, ref.Name)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %w", ErrResolution, err)
	}

	keyID, err := lookup(data, ref, ref.KeyIDField)
	if err != nil {
		return Credential{}, err
	}
	applicationKey, err := lookup(data, ref, ref.ApplicationKeyField)
	if err != nil {
		return Credential{}, err
	}

	credential := Credential{
		KeyID:          keyID,
		ApplicationKey: applicationKey,
	}
	log.V(1).Info("Resolved credential", "secret", ref.Namespace+"/"+ref.Name, "credential", credential)

	return credential, nil
}

func lookup(data map[string]string, ref b2v1.AccountSecretReference, field string) (string, error) {
	value, ok := data[field]
	if !ok {
		return "", fmt.Errorf("%w: %w: %q in %s/%s", ErrResolution, ErrFieldNotFound, field, ref.Namespace, ref.Name)
	}
	if value == "" {
		return "", fmt.Errorf("%w: %w: %q in %s/%s", ErrResolution, ErrEmptyField, field, ref.Namespace, ref.Name)
	}
	return value, nil
}
