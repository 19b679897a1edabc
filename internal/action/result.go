package action

import (
	"encoding/json"
	"io"

	"github.com/isometry/ldap-entry/internal/ldap"
	"github.com/isometry/ldap-entry/internal/reconcile"
)

// Document is the success payload reported to the invoking runtime: the
// changed verdict plus the ordered raw outcomes of every applied mutation.
type Document struct {
	InvocationID string          `json:"invocation_id"`
	Changed      bool            `json:"changed"`
	Results      []ldap.OpResult `json:"results,omitempty"`
}

// FailureDocument reports a fatal error. It carries the directory error
// text and a diagnostic trace, never a partial result payload and never
// credentials.
type FailureDocument struct {
	InvocationID string `json:"invocation_id"`
	Failed       bool   `json:"failed"`
	Msg          string `json:"msg"`
	Trace        string `json:"trace,omitempty"`
}

// WriteResult encodes a reconciliation result to w.
func WriteResult(w io.Writer, invocationID string, result *reconcile.Result) error {
	return writeJSON(w, Document{
		InvocationID: invocationID,
		Changed:      result.Changed,
		Results:      result.Results,
	})
}

// WriteFailure encodes a fatal-error report to w.
func WriteFailure(w io.Writer, invocationID string, cause error, trace string) error {
	return writeJSON(w, FailureDocument{
		InvocationID: invocationID,
		Failed:       true,
		Msg:          cause.Error(),
		Trace:        trace,
	})
}

func writeJSON(w io.Writer, doc any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
