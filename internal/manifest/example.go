package manifest

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	b2v1 "github.com/WirelessCar/b2-operator/api/v1"
)

// ExampleAccount returns an Account referencing a credential secret, as a starting point for users.
func ExampleAccount() *b2v1.Account {
	return &b2v1.Account{
		TypeMeta: metav1.TypeMeta{
			APIVersion: b2v1.GroupVersion.String(),
			Kind:       "Account",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name: "test",
		},
		Spec: b2v1.AccountSpec{
			CredentialReference: b2v1.AccountSecretReference{
				Name:                "Yeet",
				Namespace:           "example_namespace",
				KeyIDField:          "key_id",
				ApplicationKeyField: "application_key",
			},
		},
	}
}
