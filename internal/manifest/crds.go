// Package manifest builds the CustomResourceDefinitions and example resources
// printed by the CLI.
package manifest

import (
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	b2v1 "github.com/WirelessCar/b2-operator/api/v1"
)

// CRDs returns the Account, Bucket and Key definitions in that order.
func CRDs() []*apiextensionsv1.CustomResourceDefinition {
	return []*apiextensionsv1.CustomResourceDefinition{
		newCRD("Account", "accounts", "account", accountSpecSchema()),
		newCRD("Bucket", "buckets", "bucket", bucketSpecSchema()),
		newCRD("Key", "keys", "key", keySpecSchema()),
	}
}

func newCRD(kind, plural, singular string, spec apiextensionsv1.JSONSchemaProps) *apiextensionsv1.CustomResourceDefinition {
	return &apiextensionsv1.CustomResourceDefinition{
		TypeMeta: metav1.TypeMeta{
			APIVersion: apiextensionsv1.SchemeGroupVersion.String(),
			Kind:       "CustomResourceDefinition",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name: plural + "." + b2v1.GroupVersion.Group,
		},
		Spec: apiextensionsv1.CustomResourceDefinitionSpec{
			Group: b2v1.GroupVersion.Group,
			Names: apiextensionsv1.CustomResourceDefinitionNames{
				Kind:     kind,
				ListKind: kind + "List",
				Plural:   plural,
				Singular: singular,
			},
			Scope: apiextensionsv1.NamespaceScoped,
			Versions: []apiextensionsv1.CustomResourceDefinitionVersion{
				{
					Name:    b2v1.GroupVersion.Version,
					Served:  true,
					Storage: true,
					Schema: &apiextensionsv1.CustomResourceValidation{
						OpenAPIV3Schema: &apiextensionsv1.JSONSchemaProps{
							Type:     "object",
							Required: []string{"spec"},
							Properties: map[string]apiextensionsv1.JSONSchemaProps{
								"apiVersion": {Type: "string"},
								"kind":       {Type: "string"},
								"metadata":   {Type: "object"},
								"spec":       spec,
							},
						},
					},
				},
			},
		},
	}
}

func secretReferenceSchema() apiextensionsv1.JSONSchemaProps {
	return apiextensionsv1.JSONSchemaProps{
		Type:     "object",
		Required: []string{"application_key_field", "key_id_field", "name", "namespace"},
		Properties: map[string]apiextensionsv1.JSONSchemaProps{
			"name":                  {Type: "string"},
			"namespace":             {Type: "string"},
			"key_id_field":          {Type: "string"},
			"application_key_field": {Type: "string"},
		},
	}
}

func accountSpecSchema() apiextensionsv1.JSONSchemaProps {
	return apiextensionsv1.JSONSchemaProps{
		Type:     "object",
		Required: []string{"credential_reference"},
		Properties: map[string]apiextensionsv1.JSONSchemaProps{
			"credential_reference": secretReferenceSchema(),
		},
	}
}

func bucketSpecSchema() apiextensionsv1.JSONSchemaProps {
	return apiextensionsv1.JSONSchemaProps{
		Type:     "object",
		Required: []string{"account_reference"},
		Properties: map[string]apiextensionsv1.JSONSchemaProps{
			"account_reference": {Type: "string"},
		},
	}
}

func keySpecSchema() apiextensionsv1.JSONSchemaProps {
	item := secretReferenceSchema()
	return apiextensionsv1.JSONSchemaProps{
		Type:     "object",
		Required: []string{"target_secrets"},
		Properties: map[string]apiextensionsv1.JSONSchemaProps{
			"target_secrets": {
				Type:  "array",
				Items: &apiextensionsv1.JSONSchemaPropsOrArray{Schema: &item},
			},
		},
	}
}
