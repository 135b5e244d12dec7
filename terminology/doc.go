// Package terminology provides in-memory coding systems for building
// hierarchies, loaded from FHIR R4 CodeSystem resources or YAML fixtures.
//
// The package provides:
//   - CodingSystem: an immutable service.CodingSystem over a concept DAG
//   - Registry: coding systems and ValueSets keyed by canonical URL
//   - DefinitionFromCompose / ExpansionFromCodes: ValueSet adapters
//
// Example usage:
//
//	reg, err := terminology.NewRegistry(
//	    terminology.WithConceptFilter("property.where(code = 'inactive' and valueBoolean = true).empty()"),
//	)
//	if err != nil {
//	    return err
//	}
//	if _, err := reg.LoadFromDirectory("terminology/"); err != nil {
//	    return err
//	}
//	cs, err := reg.Lookup("http://snomed.info/sct")
package terminology
