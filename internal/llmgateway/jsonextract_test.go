package llmgateway

import "testing"

func TestExtractJSONPlain(t *testing.T) {
	result := ExtractJSON(`{"key": "value", "num": 42}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key=value, got %v", result["key"])
	}
}

func TestExtractJSONWithCodeFence(t *testing.T) {
	text := "```json\n{\"key\": \"value\"}\n```"
	result := ExtractJSON(text)
	if result == nil || result["key"] != "value" {
		t.Fatalf("got %v", result)
	}
}

func TestExtractJSONWithPlainFence(t *testing.T) {
	text := "```\n{\"key\": \"value\"}\n```"
	result := ExtractJSON(text)
	if result == nil || result["key"] != "value" {
		t.Fatalf("got %v", result)
	}
}

func TestExtractJSONFromSurroundingProse(t *testing.T) {
	text := "Sure, here's the answer:\n{\"claims\": [1, 2]}\nHope that helps!"
	result := ExtractJSON(text)
	if result == nil {
		t.Fatal("expected non-nil result extracted from surrounding prose")
	}
	if _, ok := result["claims"]; !ok {
		t.Errorf("expected claims key, got %v", result)
	}
}

func TestExtractJSONInvalid(t *testing.T) {
	if result := ExtractJSON("not json at all"); result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestExtractJSONEmpty(t *testing.T) {
	if result := ExtractJSON(""); result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestExtractJSONIntoTypedStruct(t *testing.T) {
	type plan struct {
		Intent     string   `json:"intent"`
		Subqueries []string `json:"subqueries"`
	}
	var p plan
	ok := ExtractJSONInto(`{"intent": "compare", "subqueries": ["a", "b"]}`, &p)
	if !ok {
		t.Fatal("expected successful decode")
	}
	if p.Intent != "compare" || len(p.Subqueries) != 2 {
		t.Errorf("got %+v", p)
	}
}

func TestExtractJSONIntoFailsOnGarbage(t *testing.T) {
	var m map[string]any
	if ExtractJSONInto("garbage, not json", &m) {
		t.Error("expected failure on unparseable input")
	}
}
