package manifest

import (
	"encoding/json"
	"fmt"
	"io"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"
)

const documentSeparator = "---\n"

// Print writes each object as a YAML document to w. Fields populated by the API
// server (status and metadata.creationTimestamp) are left out.
func Print(w io.Writer, objs ...any) error {
	for i, obj := range objs {
		out, err := marshalDocument(obj)
		if err != nil {
			return fmt.Errorf("failed to marshal object %d: %w", i, err)
		}
		if i > 0 {
			if _, err := io.WriteString(w, documentSeparator); err != nil {
				return err
			}
		}
		if _, err := w.Write(out); err != nil {
			return err
		}
	}
	return nil
}

func marshalDocument(obj any) ([]byte, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	content := map[string]any{}
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, err
	}
	unstructured.RemoveNestedField(content, "status")
	unstructured.RemoveNestedField(content, "metadata", "creationTimestamp")

	return yaml.Marshal(content)
}
