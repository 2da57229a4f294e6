package model

// SentinelTimestamp means "no timestamp determined". It is returned on every
// failure of the /ask pipeline; the Error field tells it apart from a real
// match at time zero.
const SentinelTimestamp = "00:00:00"

// AskRequest is the body of POST /ask.
type AskRequest struct {
	VideoURL string `json:"video_url"`
	Topic    string `json:"topic"`
}

// TimestampResult is the body returned by POST /ask.
//
// VideoURL and Topic always echo the request exactly. Error is only set on
// failure, in the form "<stage>: <message>".
type TimestampResult struct {
	Timestamp string `json:"timestamp"`
	VideoURL  string `json:"video_url"`
	Topic     string `json:"topic"`
	Error     string `json:"error,omitempty"`
}

// Failed reports whether the result carries the failure annotation.
func (r TimestampResult) Failed() bool {
	return r.Error != ""
}
