package types

// Options tune how an entity type is handled by the pipelines. Nil fields
// are unset so options from several profiles can be layered with Merge.
type Options struct {
	// UseProjection runs the result transform inside the read query.
	UseProjection *bool

	// SuppressCreateActionsInSave skips create actions on the create branch
	// of a save.
	SuppressCreateActionsInSave *bool

	// SuppressUpdateActionsInSave skips update actions on the update branch
	// of a save.
	SuppressUpdateActionsInSave *bool
}

// Merge returns o with every field set in other overriding it.
func (o Options) Merge(other Options) Options {
	if other.UseProjection != nil {
		o.UseProjection = other.UseProjection
	}
	if other.SuppressCreateActionsInSave != nil {
		o.SuppressCreateActionsInSave = other.SuppressCreateActionsInSave
	}
	if other.SuppressUpdateActionsInSave != nil {
		o.SuppressUpdateActionsInSave = other.SuppressUpdateActionsInSave
	}
	return o
}

// Projection reports whether reads should project inside the query.
func (o Options) Projection() bool { return deref(o.UseProjection, false) }

// SuppressCreateInSave reports whether create actions are skipped in save.
func (o Options) SuppressCreateInSave() bool { return deref(o.SuppressCreateActionsInSave, false) }

// SuppressUpdateInSave reports whether update actions are skipped in save.
func (o Options) SuppressUpdateInSave() bool { return deref(o.SuppressUpdateActionsInSave, false) }

// ErrorConfig decides whether an empty selection is a FailedToFind error.
// Nil fields fall back to the operation default: an error for single-entity
// forms, silent for set forms.
type ErrorConfig struct {
	FailedToFindInGetIsError    *bool
	FailedToFindInGetAllIsError *bool
	FailedToFindInUpdateIsError *bool
	FailedToFindInDeleteIsError *bool
}

// Merge returns c with every field set in other overriding it.
func (c ErrorConfig) Merge(other ErrorConfig) ErrorConfig {
	if other.FailedToFindInGetIsError != nil {
		c.FailedToFindInGetIsError = other.FailedToFindInGetIsError
	}
	if other.FailedToFindInGetAllIsError != nil {
		c.FailedToFindInGetAllIsError = other.FailedToFindInGetAllIsError
	}
	if other.FailedToFindInUpdateIsError != nil {
		c.FailedToFindInUpdateIsError = other.FailedToFindInUpdateIsError
	}
	if other.FailedToFindInDeleteIsError != nil {
		c.FailedToFindInDeleteIsError = other.FailedToFindInDeleteIsError
	}
	return c
}

// GetIsError reports the policy for single-entity reads.
func (c ErrorConfig) GetIsError() bool { return deref(c.FailedToFindInGetIsError, true) }

// GetAllIsError reports the policy for list reads.
func (c ErrorConfig) GetAllIsError() bool { return deref(c.FailedToFindInGetAllIsError, false) }

// UpdateIsError reports the policy for updates; bulk updates default to silent.
func (c ErrorConfig) UpdateIsError(bulk bool) bool {
	return deref(c.FailedToFindInUpdateIsError, !bulk)
}

// DeleteIsError reports the policy for deletes; bulk deletes default to silent.
func (c ErrorConfig) DeleteIsError(bulk bool) bool {
	return deref(c.FailedToFindInDeleteIsError, !bulk)
}

// Bool returns a pointer to b, for populating Options and ErrorConfig.
func Bool(b bool) *bool { return &b }

func deref(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
