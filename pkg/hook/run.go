package hook

import "context"

// RunRequests runs hooks in order and stops at the first error. The context
// is checked before each hook.
func RunRequests(ctx context.Context, hooks []Request, req any) error {
	for _, h := range hooks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h.Run(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// RunEntities runs hooks in order for one entity.
func RunEntities(ctx context.Context, hooks []Entity, req, entity any) error {
	for _, h := range hooks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h.Run(ctx, req, entity); err != nil {
			return err
		}
	}
	return nil
}

// RunItems threads item through hooks in order and returns the final item.
func RunItems(ctx context.Context, hooks []Item, req, item any) (any, error) {
	for _, h := range hooks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := h.Run(ctx, req, item)
		if err != nil {
			return nil, err
		}
		item = next
	}
	return item, nil
}

// RunResults threads result through hooks in order and returns the final
// result.
func RunResults(ctx context.Context, hooks []Result, req, result any) (any, error) {
	for _, h := range hooks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := h.Run(ctx, req, result)
		if err != nil {
			return nil, err
		}
		result = next
	}
	return result, nil
}
