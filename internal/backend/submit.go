package backend

import "trtd/pkg/types"

// Submit converts a decoding request into the executor-native schema and
// enqueues it. It returns the executor-assigned request id immediately,
// without waiting for any tokens; the caller must drain the id with Stream.
// Safe to call concurrently with other submissions and with draining of
// unrelated requests.
func (b *Backend) Submit(req types.GenerateRequest) (RequestID, error) {
	if b.exec == nil {
		return 0, ErrDependencyUnavailable("backend is closed")
	}
	if len(req.Tokens) == 0 {
		return 0, ErrInvalidRequest("tokens must not be empty")
	}
	if req.MaxNewTokens <= 0 {
		return 0, ErrInvalidRequest("max_new_tokens must be > 0")
	}
	if req.TopP < 0 || req.TopP > 1 {
		return 0, ErrInvalidRequest("top_p must be within [0, 1]")
	}
	if req.Temperature <= 0 {
		return 0, ErrInvalidRequest("temperature must be > 0")
	}

	if b.inflight != nil {
		select {
		case b.inflight <- struct{}{}:
		default:
			submissionsTotal.WithLabelValues("rejected").Inc()
			return 0, tooBusyError{}
		}
	}

	native := Request{
		InputTokens:  req.Tokens,
		MaxNewTokens: req.MaxNewTokens,
		// Stream partial results instead of a final aggregate.
		Streaming: true,
		Sampling: SamplingConfig{
			// No beam search for streaming decode.
			BeamWidth:         1,
			TopK:              req.TopK,
			TopP:              req.TopP,
			Temperature:       req.Temperature,
			MinLength:         req.MinLength,
			RepetitionPenalty: req.RepetitionPenalty,
			FrequencyPenalty:  req.FrequencyPenalty,
			Seed:              req.Seed,
		},
		Output: OutputConfig{
			// Log-probs cost compute; only ask when the caller wants more
			// than the sampled token.
			ReturnLogProbs: req.TopTokens > 1,
		},
	}

	b.log.Debug().
		Int("tokens", len(req.Tokens)).
		Int("in_flight", b.exec.LatestIterationStats().NumActiveRequests).
		Msg("submitting request to executor")

	id, err := b.exec.EnqueueRequest(native)
	if err != nil {
		b.release()
		submissionsTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	submissionsTotal.WithLabelValues("ok").Inc()
	inflightRequests.Inc()
	return id, nil
}

// release frees an in-flight slot reserved by Submit.
func (b *Backend) release() {
	if b.inflight != nil {
		<-b.inflight
	}
}
