package webd

import (
	"io"
	"math"
	"net/http"

	"github.com/halocircle/guardd/types/fix"
)

// handlePopulate is the fix ingestion endpoint. The companion apps post
// batches of tagged fixes, either as a JSON array or as NDJSON lines.
// Each fix runs through its user's session in posted order, so histories
// and rewards come out the same as they would from a live subscription.
func (s *WebDaemon) handlePopulate(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		s.logger.Error("No request body", "method", r.Method, "url", r.URL)
		http.Error(w, "Please send a request body", 500)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("Failed to read request body", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.logger.Debug("Decoding", "body.len", len(body),
		"peek", string(body)[:int(math.Min(80, float64(len(body))))])

	tagged, err := fix.DecodeTaggedShotgun(body)
	if err != nil {
		s.logger.Error("Failed to decode", "error", err)
		http.Error(w, "Failed to decode", http.StatusUnprocessableEntity)
		return
	}

	ctx := r.Context()
	n := 0
	for _, t := range tagged {
		if t.User == "" {
			continue
		}
		s.sessionFor(t.User).HandleFix(ctx, t.Fix)
		n++
	}
	if n == 0 {
		s.logger.Error("No usable fixes in batch", "decoded", len(tagged))
		http.Error(w, "No usable fixes", http.StatusUnprocessableEntity)
		return
	}
	s.logger.Info("Populated", "fixes", n)

	// The empty array satisfies the legacy clients.
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("[]")); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
