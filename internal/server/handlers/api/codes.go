package api

const (
	// Generic request/server errors
	CodeInvalidRequest   = "E_INVALID_REQUEST"    // bad or invalid request
	CodeRateLimited      = "E_RATE_LIMITED"       // rate limit exceeded
	CodeInternalError    = "E_INTERNAL_ERROR"     // internal server error
	CodeNotFound         = "E_NOT_FOUND"          // no route or resource
	CodeMethodNotAllowed = "E_METHOD_NOT_ALLOWED" // route exists for another method

	// Asset errors
	CodeAssetNotFound    = "E_ASSET_NOT_FOUND"    // the requested asset is not published
	CodeAssetInvalidPath = "E_ASSET_INVALID_PATH" // the asset path is empty, absolute or escapes the root
	CodeAssetReadFailed  = "E_ASSET_READ_FAILED"  // the backend failed to open or stream the asset

	// Manifest errors
	CodeManifestUnavailable = "E_MANIFEST_UNAVAILABLE" // no manifest is published and none could be built
)
