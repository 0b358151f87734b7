// Package edge calls the hosted edge functions that own the scoring,
// validation and text generation logic.
//
// Each function is a JSON-over-HTTP POST to <base>/functions/v1/<name>
// authenticated with a bearer key. Network errors, 5xx and 429 responses are
// retried with exponential backoff; any other 4xx is returned immediately as
// a *StatusError.
//
// Client implements the pipeline collaborator interfaces. Function outputs
// are stored verbatim inside versioned payload envelopes so later readers
// see exactly what the function returned.
package edge
