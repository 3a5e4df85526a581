package sorter

import (
	"fmt"

	"github.com/mesh-intelligence/pantry/pkg/query"
)

// SwitchSorter dispatches on a control value read from the request. Matching
// is exact; an unmatched value uses the default plan, or no ordering.
type SwitchSorter struct {
	control    func(req any) (any, error)
	cases      map[any][]Clause
	def        []Clause
	hasDefault bool
}

// Switch reads the control value with control.
func Switch[TReq any, V comparable](control func(TReq) V) *SwitchSorter {
	return &SwitchSorter{
		control: func(req any) (any, error) {
			r, err := requestAs[TReq](req)
			if err != nil {
				return nil, err
			}
			return control(r), nil
		},
		cases: make(map[any][]Clause),
	}
}

// SwitchOn reads the control value from the request's exported field name.
func SwitchOn(field string) *SwitchSorter {
	return &SwitchSorter{
		control: func(req any) (any, error) {
			v, err := fieldValue(req, field)
			if err != nil {
				return nil, fmt.Errorf("switch control: %w", err)
			}
			return v.Interface(), nil
		},
		cases: make(map[any][]Clause),
	}
}

// Case maps value onto a plan.
func (s *SwitchSorter) Case(value any, clauses ...Clause) *SwitchSorter {
	s.cases[value] = clauses
	return s
}

// Default sets the plan used when no case matches.
func (s *SwitchSorter) Default(clauses ...Clause) *SwitchSorter {
	s.def = clauses
	s.hasDefault = true
	return s
}

// Sort implements Sorter.
func (s *SwitchSorter) Sort(req any, q *query.Query) (*query.Query, error) {
	v, err := s.control(req)
	if err != nil {
		return nil, err
	}
	if isHashable(v) {
		if clauses, ok := s.cases[v]; ok {
			return plan(q, clauses), nil
		}
	}
	if s.hasDefault {
		return plan(q, s.def), nil
	}
	return q, nil
}
