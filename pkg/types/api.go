package types

// GenerateRequest represents a decoding request payload.
type GenerateRequest struct {
	// Prompt as a sequence of token ids. Tokenization happens upstream.
	// example: [1, 4093, 284]
	Tokens []uint32 `json:"tokens"`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxNewTokens int `json:"max_new_tokens" example:"128"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float32 `json:"top_p,omitempty" example:"0.9"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float32 `json:"temperature,omitempty" example:"0.7"`
	// Minimum number of tokens to generate before end-of-sequence is allowed.
	// example: 1
	MinLength int `json:"min_length,omitempty" example:"1"`
	// Repetition penalty. Omitted means executor default.
	// example: 1.1
	RepetitionPenalty *float32 `json:"repetition_penalty,omitempty"`
	// Frequency penalty. Omitted means executor default.
	// example: 0.2
	FrequencyPenalty *float32 `json:"frequency_penalty,omitempty"`
	// Random seed for reproducibility; omitted lets the executor choose.
	// example: 42
	Seed *uint64 `json:"seed,omitempty"`
	// Number of top tokens to consider for log-probabilities. Values above 1
	// request per-token log-probs from the executor.
	// example: 5
	TopTokens int `json:"top_n_tokens,omitempty" example:"5"`
}

// TokenLine is one NDJSON line of a generation stream.
type TokenLine struct {
	// Generated token id.
	// example: 1027
	Token uint32 `json:"token" example:"1027"`
	// Log-probability of the token, present only when the executor computed one.
	LogProb *float32 `json:"log_prob,omitempty"`
	// True on the last token of the stream.
	// example: false
	Final bool `json:"final"`
}

// StreamEnd is the last NDJSON line of a generation stream.
type StreamEnd struct {
	Done bool `json:"done"`
	// Total tokens emitted for this request.
	// example: 57
	GeneratedTokens int `json:"generated_tokens" example:"57"`
	// Error message when the executor aborted the stream. Tokens already
	// emitted remain valid.
	Error string `json:"error,omitempty"`
}

// InfoResponse is returned by GET /info.
type InfoResponse struct {
	// Engine version string declared by the artifacts.
	// example: 0.11.0
	Version string `json:"version" example:"0.11.0"`
	// Number of cooperating executor instances required by the model.
	// example: 1
	WorldSize int `json:"world_size" example:"1"`
	// Execution topology: leader or orchestrator.
	// example: leader
	ParallelismMode string `json:"parallelism_mode" example:"leader"`
	// Whether the attention KV cache is enabled.
	KVCacheEnabled bool `json:"kv_cache_enabled"`
	// Whether chunked context processing is enabled for this hardware.
	ChunkedContextEnabled bool `json:"chunked_context_enabled"`
	// Detected compute capability, e.g. sm_86, or "unknown".
	// example: sm_86
	ComputeCapability string `json:"compute_capability" example:"sm_86"`
	// Correlation id of this backend instance.
	InstanceID string `json:"instance_id"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
