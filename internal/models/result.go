package models

// Status classifies the outcome of a single source attempt. Every source maps
// its native errors onto this taxonomy; retry and fallback policy is defined
// purely in terms of these tags, never raw status codes.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotFound
	StatusRateLimited
	StatusBlocked
	StatusAuthExpired
	StatusTimeout
	StatusTransient
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not_found"
	case StatusRateLimited:
		return "rate_limited"
	case StatusBlocked:
		return "blocked"
	case StatusAuthExpired:
		return "auth_expired"
	case StatusTimeout:
		return "timeout"
	case StatusTransient:
		return "transient_error"
	default:
		return "unknown"
	}
}

// Retryable reports whether the coordinator may retry this outcome within the
// same call. Blocks and missing items never are; retrying a block only wastes
// quota and risks harsher defenses.
func (s Status) Retryable() bool {
	return s == StatusTimeout || s == StatusTransient
}

// Result is the tagged outcome of one source attempt. Product is set only
// when Status is StatusSuccess.
type Result struct {
	Status  Status
	Product *Product
}

func Success(p *Product) Result {
	return Result{Status: StatusSuccess, Product: p}
}

func Failure(s Status) Result {
	return Result{Status: s}
}
