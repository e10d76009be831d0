package format

import (
	"bytes"
	"strings"
	"testing"
)

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	payload := map[string]any{"id": "ph-1", "size": 42}
	if err := (JSONFormatter{}).Write(&buf, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"id":"ph-1"`) {
		t.Fatalf("unexpected json output: %s", out)
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	payload := map[string]any{"id": "ph-1"}
	if err := (YAMLFormatter{}).Write(&buf, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "id: ph-1") {
		t.Fatalf("unexpected yaml output: %s", buf.String())
	}
}

func TestYAMLFormatterUsesJSONTags(t *testing.T) {
	var buf bytes.Buffer
	payload := struct {
		OriginalName string `json:"original_name"`
	}{OriginalName: "beach.png"}
	if err := (YAMLFormatter{}).Write(&buf, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "original_name: beach.png") {
		t.Fatalf("expected json tag names in yaml output, got: %s", buf.String())
	}
}

func TestByName(t *testing.T) {
	if _, err := ByName("json"); err != nil {
		t.Fatalf("json: %v", err)
	}
	if _, err := ByName("yaml"); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if _, err := ByName(""); err != nil {
		t.Fatalf("empty should default to json: %v", err)
	}
	if _, err := ByName("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
