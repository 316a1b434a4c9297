package handler

import "errors"

// Typed failures surfaced by Loader/Manager implementations and the registry. Callers branch on these with
// errors.Is; anything else is an opaque backend fault.
var (
	// ErrAccountNotFound means a source or destination identifier does not exist on the backend.
	ErrAccountNotFound = errors.New("account or address does not exist on this network")
	// ErrNotEnoughBalance means the source account cannot cover the requested amount.
	ErrNotEnoughBalance = errors.New("not enough balance to complete the send")
	// ErrAuthorityMissing means no usable signing credential was located in the key store.
	ErrAuthorityMissing = errors.New("no signing credential found for this account")
	// ErrIssueNotSupported means the backend or coin cannot mint new units.
	ErrIssueNotSupported = errors.New("issuing is not supported by this coin")
	// ErrHandlerNotFound means a registry operation referenced an unknown handler name.
	ErrHandlerNotFound = errors.New("no handler registered under this name")
	// ErrTokenNotFound means a coin symbol is not known to the catalog or index.
	ErrTokenNotFound = errors.New("coin symbol not found")
	// ErrAmountTooSmall means the amount rounds below one unit of the asset's precision.
	ErrAmountTooSmall = errors.New("amount is below one unit of the asset precision")
	// ErrNoSourceAccount means a send had no explicit source and the handler has no configured own account.
	ErrNoSourceAccount = errors.New("no source account available for send")
)
