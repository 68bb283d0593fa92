package handshake

import "aervo/pkg/domainerrors"

// Messages are shown to the browser as-is and never echo tokens or signatures.
var (
	ErrMissingParameters    = domainerrors.New(domainerrors.CodeMissingParameters, "Missing required query params")
	ErrInvalidState         = domainerrors.New(domainerrors.CodeInvalidState, "Invalid state or session mismatch")
	ErrIntegrityCheckFailed = domainerrors.New(domainerrors.CodeIntegrityCheckFailed, "Signature validation failed")
	ErrNotConfigured        = domainerrors.New(domainerrors.CodeNotConfigured, "handshake not configured")
	ErrShopRequired         = domainerrors.New(domainerrors.CodeBadRequest, "Missing shop domain")
)

const retryMessage = "Connection failed, please retry"

func exchangeFailed(err error) error {
	return &domainerrors.Error{Code: domainerrors.CodeExchangeFailed, Message: retryMessage, Err: err}
}
