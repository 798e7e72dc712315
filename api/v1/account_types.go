/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// AccountSpec defines the desired state of Account.
type AccountSpec struct {
	// CredentialReference points at the secret holding the B2 application key.
	CredentialReference AccountSecretReference `json:"credential_reference"`
}

// AccountSecretReference locates a B2 key id and application key inside a secret.
type AccountSecretReference struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	// KeyIDField is the secret data key holding the B2 key id.
	KeyIDField string `json:"key_id_field"`
	// ApplicationKeyField is the secret data key holding the B2 application key.
	ApplicationKeyField string `json:"application_key_field"`
}

// +kubebuilder:object:root=true

// Account is the Schema for the accounts API.
type Account struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec AccountSpec `json:"spec,omitempty"`
}

// +kubebuilder:object:root=true

// AccountList contains a list of Account.
type AccountList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Account `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Account{}, &AccountList{})
}
