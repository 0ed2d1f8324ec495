// Package response holds the JSON envelope every endpoint answers with.
package response

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Meta       interface{} `json:"meta,omitempty"` // paging info for list endpoints
	Error      string      `json:"error,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Page returns a success response for one page of a list.
func Page(statusCode int, data, meta interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
		Meta:       meta,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// ErrorWithData returns an error response that also carries structured details,
// such as the volumes behind a capacity error.
func ErrorWithData(statusCode int, err string, data interface{}) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Data:       data,
		Error:      err,
	}
}
