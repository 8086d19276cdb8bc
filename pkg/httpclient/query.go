package httpclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
)

// Query evaluates a jq expression against the decoded body.
//
// A single result is returned as is, several results as a []any and no
// results as nil. An empty expression returns the body unchanged.
func (r *Response) Query(ctx context.Context, expression string) (any, error) {
	if expression == "" {
		return r.Body, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse jq expression: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile jq expression: %w", err)
	}

	var results []any
	iter := code.RunWithContext(ctx, r.Body)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return nil, fmt.Errorf("evaluate jq expression: %w", err)
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}
