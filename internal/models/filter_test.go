package models

import (
	"strings"
	"testing"
)

func testSchema() Schema {
	return NewSchema([]Column{
		{ID: "c1", Name: "Name", Type: ColumnText, Order: 0},
		{ID: "c2", Name: "Age", Type: ColumnNumber, Order: 1},
	})
}

func TestParseFilter_Empty(t *testing.T) {
	g, err := ParseFilter("")
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	if !g.IsEmpty() {
		t.Error("expected empty group")
	}
	if g.CombineWith != CombineAnd {
		t.Errorf("expected AND, got %q", g.CombineWith)
	}
}

func TestParseFilter_Nested(t *testing.T) {
	text := `{"combineWith":"OR","conditions":[
		{"columnName":"Age","operator":"gt","value":"10"},
		{"combineWith":"AND","conditions":[
			{"columnName":"Name","operator":"is empty"},
			{"combineWith":"AND","conditions":[]}
		]}
	]}`

	g, err := ParseFilter(text)
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	if g.CombineWith != CombineOr {
		t.Errorf("expected OR, got %q", g.CombineWith)
	}
	if len(g.Conditions) != 2 {
		t.Fatalf("expected 2 children, got %d", len(g.Conditions))
	}
	if g.Conditions[0].Condition == nil || g.Conditions[0].Condition.Operator != OpGreaterThan {
		t.Errorf("first child should be a gt condition, got %+v", g.Conditions[0])
	}
	inner := g.Conditions[1].Group
	if inner == nil {
		t.Fatal("second child should be a group")
	}
	if inner.Conditions[1].Group == nil || !inner.Conditions[1].Group.IsEmpty() {
		t.Error("expected an empty nested group")
	}
	if err := g.Validate(testSchema()); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestParseFilter_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"combineWith":`,
		"bare value node": `{"combineWith":"AND","conditions":["x"]}`,
		"unknown node":    `{"combineWith":"AND","conditions":[{"foo":"bar"}]}`,
		"missing value":   `{"combineWith":"AND","conditions":[{"columnName":"Name","operator":"is"}]}`,
	}
	for name, text := range cases {
		if _, err := ParseFilter(text); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestFilterGroup_Validate(t *testing.T) {
	schema := testSchema()

	bad := []FilterGroup{
		NewFilter("XOR"),
		NewFilter(CombineAnd, Cond("Name", "like", "a")),
		NewFilter(CombineAnd, Cond("Missing", OpIs, "a")),
		NewFilter(CombineAnd, Group(CombineOr, Cond("Age", OpLessThan, "3"), FilterNode{})),
	}
	for i, g := range bad {
		if err := g.Validate(schema); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}

	good := NewFilter(CombineAnd, Cond("Name", OpContains, "a"), Group(CombineOr))
	if err := good.Validate(schema); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFilterGroup_EncodeRoundTrip(t *testing.T) {
	g := NewFilter(CombineOr,
		Cond("Age", OpGreaterThan, "10"),
		Cond("Name", OpIs, "amy"),
		Cond("Name", OpIs, ""),
		Cond("Name", OpContains, ""),
		Cond("Age", OpLessThan, ""),
		Group(CombineAnd, Cond("Name", OpIsNotEmpty, "")),
	)

	text, err := g.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(text, `"combineWith":"OR"`) {
		t.Errorf("unexpected encoding: %s", text)
	}

	back, err := ParseFilter(text)
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	again, err := back.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if again != text {
		t.Errorf("round trip mismatch:\n%s\n%s", text, again)
	}
	if err := back.Validate(testSchema()); err != nil {
		t.Errorf("decoded filter no longer validates: %v", err)
	}
	if c := back.Conditions[2].Condition; c == nil || c.Operator != OpIs || c.Value != "" {
		t.Errorf("empty operand lost in round trip: %+v", back.Conditions[2])
	}
}

func TestFilterGroup_EncodeKeepsEmptyValue(t *testing.T) {
	text, err := NewFilter(CombineAnd, Cond("Name", OpIs, "")).Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(text, `"value":""`) {
		t.Errorf("empty value must be written, got %s", text)
	}
}

func TestFilterGroup_EncodeEmpty(t *testing.T) {
	text, err := NewFilter(CombineAnd).Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty string, got %q", text)
	}
}

func TestFilterGroup_ColumnNames(t *testing.T) {
	g := NewFilter(CombineAnd,
		Cond("Name", OpIs, "a"),
		Group(CombineOr, Cond("Age", OpGreaterThan, "1"), Cond("Name", OpIsEmpty, "")),
	)
	names := g.ColumnNames()
	if len(names) != 2 || names[0] != "Name" || names[1] != "Age" {
		t.Errorf("unexpected column names %v", names)
	}
}
