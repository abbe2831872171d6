package backend

// RequestID identifies one in-flight generation on the executor. Ids are
// assigned by the executor at enqueue time and are unique among concurrently
// in-flight requests.
type RequestID uint64

// ModelType tags the architecture of the engine artifacts. Only decoder-only
// models are served here.
type ModelType string

const ModelTypeDecoderOnly ModelType = "decoder-only"

// SamplingConfig controls stochastic token selection during decoding.
// BeamWidth is fixed at 1 by the submitter (no beam search).
type SamplingConfig struct {
	BeamWidth         int      `json:"beam_width"`
	TopK              int      `json:"top_k"`
	TopP              float32  `json:"top_p"`
	Temperature       float32  `json:"temperature"`
	MinLength         int      `json:"min_length"`
	RepetitionPenalty *float32 `json:"repetition_penalty,omitempty"`
	FrequencyPenalty  *float32 `json:"frequency_penalty,omitempty"`
	Seed              *uint64  `json:"seed,omitempty"`
}

// OutputConfig selects what the executor attaches to each response.
type OutputConfig struct {
	ReturnLogProbs bool `json:"return_log_probs"`
}

// Request is the executor-native request schema.
type Request struct {
	InputTokens  []uint32       `json:"input_tokens"`
	MaxNewTokens int            `json:"max_new_tokens"`
	Streaming    bool           `json:"streaming"`
	Sampling     SamplingConfig `json:"sampling"`
	Output       OutputConfig   `json:"output"`
}

// Response is one completion event for a request. Either Error is non-empty
// (request-level failure) or the token fields are populated. Events for the
// same request arrive in generation order.
type Response struct {
	ID      RequestID `json:"request_id"`
	Token   uint32    `json:"token"`
	LogProb *float32  `json:"log_prob,omitempty"`
	IsFinal bool      `json:"final"`
	Error   string    `json:"error,omitempty"`
}

// IterationStats is a diagnostic snapshot of executor load. Non-authoritative;
// used only for logging.
type IterationStats struct {
	NumActiveRequests int `json:"num_active_requests"`
}

// Executor is the opaque inference engine this backend fronts. The executor
// is the serialization point: implementations must accept concurrent
// enqueues and concurrent polls for distinct requests without caller-side
// locking. AwaitResponses blocks until at least one event is available for
// the request; there is no timeout at this layer.
type Executor interface {
	EnqueueRequest(req Request) (RequestID, error)
	AwaitResponses(id RequestID) []Response
	LatestIterationStats() IterationStats
	Close() error
}
