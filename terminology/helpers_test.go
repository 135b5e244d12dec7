package terminology

import (
	"encoding/json"
	"testing"

	"github.com/gofhir/fhir/r4"
)

const conditionsURL = "http://example.org/CodeSystem/conditions"

// conditionsJSON nests disorder > diabetes > {t1dm, t2dm} and
// disorder > pregnancy; gdm sits below both diabetes and pregnancy through
// properties, and "retired" is an inactive top-level concept.
const conditionsJSON = `{
  "resourceType": "CodeSystem",
  "url": "http://example.org/CodeSystem/conditions",
  "status": "active",
  "content": "complete",
  "concept": [
    {"code": "disorder", "display": "Disorder", "concept": [
      {"code": "diabetes", "display": "Diabetes mellitus", "concept": [
        {"code": "t1dm", "display": "Type 1 diabetes"},
        {"code": "t2dm", "display": "Type 2 diabetes"}
      ]},
      {"code": "pregnancy", "display": "Disorder of pregnancy"}
    ]},
    {"code": "gdm", "display": "Gestational diabetes", "property": [
      {"code": "subsumedBy", "valueCode": "diabetes"},
      {"code": "parent", "valueCode": "pregnancy"}
    ]},
    {"code": "retired", "display": "Retired concept", "property": [
      {"code": "inactive", "valueBoolean": true}
    ]}
  ]
}`

const activeOnly = "property.where(code = 'inactive' and valueBoolean = true).empty()"

func parseCodeSystem(t testing.TB, data string) *r4.CodeSystem {
	t.Helper()
	var cs r4.CodeSystem
	if err := json.Unmarshal([]byte(data), &cs); err != nil {
		t.Fatalf("unmarshal CodeSystem: %v", err)
	}
	return &cs
}

func parseValueSet(t testing.TB, data string) *r4.ValueSet {
	t.Helper()
	var vs r4.ValueSet
	if err := json.Unmarshal([]byte(data), &vs); err != nil {
		t.Fatalf("unmarshal ValueSet: %v", err)
	}
	return &vs
}

func loadConditions(t testing.TB, opts ...Option) (*Registry, *CodingSystem) {
	t.Helper()
	reg, err := NewRegistry(opts...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	cs, err := reg.LoadR4CodeSystem(parseCodeSystem(t, conditionsJSON))
	if err != nil {
		t.Fatalf("LoadR4CodeSystem() error = %v", err)
	}
	return reg, cs
}
