package db

import (
	"strings"
	"testing"
)

func TestIndexBuilderBuild(t *testing.T) {
	def, err := NewIndex("ragdex-chunks").
		Prefix("ragdex:chunk:").
		Tag("source").
		Text("text").
		Numeric("chunk_index").
		VectorHNSW("vector", 1536, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if def.Name != "ragdex-chunks" {
		t.Errorf("Name = %q", def.Name)
	}
	if len(def.Fields) != 4 {
		t.Fatalf("got %d fields, want 4", len(def.Fields))
	}

	vec := def.Fields[3]
	if vec.Type != IndexFieldVector || vec.VectorAlgo != VectorHNSW {
		t.Errorf("vector field = %+v", vec)
	}
	if vec.VectorDim != 1536 || vec.VectorDistance != DistanceCosine {
		t.Errorf("vector params = dim %d distance %s", vec.VectorDim, vec.VectorDistance)
	}
}

func TestIndexBuilderValidation(t *testing.T) {
	tests := []struct {
		name    string
		builder *IndexBuilder
	}{
		{name: "empty name", builder: NewIndex("").Tag("source")},
		{name: "invalid name", builder: NewIndex("bad name!").Tag("source")},
		{name: "no fields", builder: NewIndex("idx")},
		{name: "duplicate field", builder: NewIndex("idx").Tag("source").Text("source")},
		{name: "vector without dim", builder: NewIndex("idx").VectorFlat("vector", 0, DistanceCosine)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.builder.Build(); err == nil {
				t.Error("Build() succeeded, want validation error")
			}
		})
	}
}

func TestIndexDefinitionString(t *testing.T) {
	def := NewIndex("idx").Prefix("p:").Tag("source").MustBuild()

	s := def.String()
	for _, want := range []string{"FT.CREATE", "idx", "ON HASH", "PREFIX p:", "SCHEMA", "source TAG"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}
