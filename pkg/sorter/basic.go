package sorter

import "github.com/mesh-intelligence/pantry/pkg/query"

// Chain is an ordered list of clauses, optionally gated by a request test.
type Chain struct {
	gate    func(req any) (bool, error)
	clauses []Clause
}

// Always builds an ungated chain.
func Always(clauses ...Clause) Chain {
	return Chain{clauses: clauses}
}

// When builds a chain used only when gate holds for the request.
func When[TReq any](gate func(TReq) bool, clauses ...Clause) Chain {
	return Chain{
		gate: func(req any) (bool, error) {
			r, err := requestAs[TReq](req)
			if err != nil {
				return false, err
			}
			return gate(r), nil
		},
		clauses: clauses,
	}
}

type basic struct {
	chains []Chain
}

// Basic tries chains in order and applies the first whose gate passes or
// that has no gate. If none applies the query is left unordered.
func Basic(chains ...Chain) Sorter {
	return basic{chains: chains}
}

func (b basic) Sort(req any, q *query.Query) (*query.Query, error) {
	for _, c := range b.chains {
		if c.gate != nil {
			ok, err := c.gate(req)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		return plan(q, c.clauses), nil
	}
	return q, nil
}
