package goap

// Goal is a named, ordered collection of expectations to satisfy
// simultaneously. Order affects check iteration only, not ranking.
type Goal struct {
	Name         string
	Expectations []*Expectation
}

// NewGoal constructs a Goal from already-built expectations.
func NewGoal(name string, expectations ...*Expectation) *Goal {
	return &Goal{Name: name, Expectations: expectations}
}

// ExpectationSpec is one entry for BuildGoal: the fields of an expectation
// before construction.
type ExpectationSpec struct {
	Name     string
	Target   Target
	Property string
	Check    Checker
	Compare  Comparer
}

// BuildGoal assembles a Goal from an ordered sequence of expectation specs.
//
// Precondition: every spec carries a non-nil Check and Compare.
func BuildGoal(name string, specs ...ExpectationSpec) *Goal {
	expectations := make([]*Expectation, 0, len(specs))
	for _, spec := range specs {
		expectations = append(expectations, NewExpectation(spec.Name, spec.Target, spec.Property, spec.Check, spec.Compare))
	}
	return NewGoal(name, expectations...)
}
