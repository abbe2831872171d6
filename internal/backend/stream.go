package backend

import "context"

// TokenCallback receives one generated token per call, in generation order.
// logProb is only meaningful when the executor populated one (hasLogProb on
// the wire); it is 0 otherwise. The callback must not block indefinitely or
// it stalls the drain loop; returning an error aborts draining.
type TokenCallback func(token uint32, logProb float32, isFinal bool) error

// Stream drains the response stream of a submitted request, invoking onToken
// for every generated token until the executor reports the final token or an
// error. It returns the number of tokens successfully emitted.
//
// Each poll blocks without a timeout; cancellation is layered on top by the
// caller. The context is only honored between polls: cancelling stops
// draining and abandons the request, leaving the executor to reclaim it on
// its own schedule.
func (b *Backend) Stream(ctx context.Context, id RequestID, onToken TokenCallback) (int, error) {
	if b.exec == nil {
		return 0, ErrDependencyUnavailable("backend is closed")
	}
	defer func() {
		b.release()
		inflightRequests.Dec()
	}()

	generated := 0
	for {
		if err := ctx.Err(); err != nil {
			return generated, err
		}
		final := false
		for _, resp := range b.exec.AwaitResponses(id) {
			if resp.Error != "" {
				// One request-level error ends the stream; tokens already
				// emitted remain valid.
				b.log.Warn().Uint64("request_id", uint64(id)).Str("error", resp.Error).
					Msg("generation error from executor")
				streamErrorsTotal.Inc()
				return generated, generationError{msg: resp.Error}
			}
			var score float32
			if resp.LogProb != nil {
				score = *resp.LogProb
			}
			generated++
			generatedTokensTotal.Inc()
			if err := onToken(resp.Token, score, resp.IsFinal); err != nil {
				return generated, err
			}
			if resp.IsFinal {
				final = true
			}
		}
		if final {
			return generated, nil
		}
	}
}
