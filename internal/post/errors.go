package post

import "fmt"

// Classification is a coarse grouping of dispatch failures. It is stored on
// the job's terminal result so operators can tell local failures apart from
// platform-side ones.
type Classification string

const (
	// ClassValidation: content shape wrong for (platform, type). Local,
	// detected before any network call.
	ClassValidation Classification = "validation"
	// ClassConfiguration: platform not enabled or resolvable, or the engine
	// gave up on a stalled job. Local.
	ClassConfiguration Classification = "configuration"
	// ClassAuthentication: credentials invalid or expired.
	ClassAuthentication Classification = "authentication"
	// ClassRateLimit: platform throttling.
	ClassRateLimit Classification = "rate_limit"
	// ClassMalformedPayload: the platform rejected the payload.
	ClassMalformedPayload Classification = "malformed_payload"
	// ClassTransientNetwork: timeout or connection failure.
	ClassTransientNetwork Classification = "transient_network"
	// ClassUnknown: anything the adapter could not classify.
	ClassUnknown Classification = "unknown"
)

// Error is a structured dispatch failure recorded in a post's result.
type Error struct {
	Classification Classification `json:"classification"`
	Cause          string         `json:"cause"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", e.Classification, e.Cause)
}
