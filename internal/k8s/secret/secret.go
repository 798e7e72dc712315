package secret

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/WirelessCar/b2-operator/internal/k8s"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ErrBinaryData is returned when a secret holds a value that is not valid UTF-8.
var ErrBinaryData = errors.New("secret contains binary data")

type Client struct {
	client client.Reader
}

func NewClient(client client.Reader) *Client {
	return &Client{
		client: client,
	}
}

// Get returns the decoded data of the secret. A single non UTF-8 value fails
// the whole secret, no partial map is returned.
func (k *Client) Get(ctx context.Context, namespace string, name string) (map[string]string, error) {
	secret, err := k.getSecret(ctx, namespace, name)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("secret %s/%s: %w", namespace, name, k8s.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	return decode(secret)
}

func decode(secret *v1.Secret) (map[string]string, error) {
	secretData := make(map[string]string, len(secret.Data))
	for key, value := range secret.Data {
		if !utf8.Valid(value) {
			return nil, fmt.Errorf("secret %s/%s key %q: %w", secret.Namespace, secret.Name, key, ErrBinaryData)
		}
		secretData[key] = string(value)
	}

	return secretData, nil
}

func (k *Client) getSecret(ctx context.Context, namespace string, name string) (*v1.Secret, error) {
	k8sSecret := &v1.Secret{}

	key := client.ObjectKey{Namespace: namespace, Name: name}
	if err := k.client.Get(ctx, key, k8sSecret); err != nil {
		return nil, err
	}
	return k8sSecret, nil
}
