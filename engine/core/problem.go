package core

import "net/http"

// Problem captures the information returned in an error response body.
type Problem struct {
	Status int
	Title  string
	Detail string
	Code   string
	Extras map[string]any
}

// statusForCode maps stable error codes onto HTTP statuses. The mapping
// is conventional: overlap conflicts and state errors surface as 400s,
// matching the upstream API contract.
func statusForCode(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation, CodeConflict, CodeState, CodePrecondition:
		return http.StatusBadRequest
	case CodeDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ProblemFromError converts any error into a renderable problem.
func ProblemFromError(err error) *Problem {
	code := CodeOf(err)
	status := statusForCode(code)
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &Problem{
		Status: status,
		Title:  http.StatusText(status),
		Detail: detail,
		Code:   code,
		Extras: DetailsOf(err),
	}
}

// BuildProblemBody assembles the serialized representation of the problem.
// The "detail" key carries the human-readable message callers display.
func BuildProblemBody(p *Problem) map[string]any {
	body := map[string]any{
		"status": p.Status,
		"error":  p.Title,
		"detail": p.Detail,
	}
	if p.Code != "" {
		body["code"] = p.Code
	}
	for k, v := range p.Extras {
		if !isReservedProblemKey(k) {
			body[k] = v
		}
	}
	return body
}

func isReservedProblemKey(key string) bool {
	switch key {
	case "status", "error", "detail", "code":
		return true
	default:
		return false
	}
}
