// Package model defines the data structures passed between the HTTP layer
// and the services. Nothing here is persisted; every value lives for the
// duration of a single request.
package model

// CodeRequest is the body of POST /code-interpreter.
type CodeRequest struct {
	Code string `json:"code"`
}

// ExecutionResult is the outcome of running one script.
//
// Output holds captured stdout when Success is true, and the full failure
// trace (a Python traceback) when it is false.
type ExecutionResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
}

// CodeResponse is the body returned by POST /code-interpreter.
//
// Error lists the 1-based source lines blamed for a failure. It is an
// empty slice, never nil, when the code ran cleanly, so it always encodes
// as a JSON array.
type CodeResponse struct {
	Error  []int  `json:"error"`
	Result string `json:"result"`
}
