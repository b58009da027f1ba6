package api

// ErrorResponse is the body of every failed request. Error carries a generic
// message only; causes are logged.
type ErrorResponse struct {
	Error string `json:"error"`
}

var (
	registerFailed = map[string]string{
		"hpa": "Failed to register HPA session.",
		"ypa": "Failed to register YPA session.",
	}
	callbackFailed = map[string]string{
		"hpa": "Failed to get authorization.",
		"ypa": "Failed to get company roles.",
	}
)

const (
	msgUnknownMode     = "Unknown delegation mode."
	msgInvalidIdentity = "Invalid personal identity code."
	msgNotGranted      = "Principal selection was cancelled."
)
