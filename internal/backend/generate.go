package backend

import (
	"context"
	"io"

	json "github.com/goccy/go-json"

	"trtd/pkg/types"
)

// Generate runs the full request lifecycle: validate and submit, then drain
// the token stream as NDJSON lines into w. flush may be nil.
//
// Errors raised before any line is written are returned to the caller so the
// transport can map them to a status code. Once streaming has started,
// failures are reported in-band on the trailing end-of-stream line.
func (b *Backend) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error {
	applyDefaults(&req)

	id, err := b.Submit(req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	wrote := false
	writeLine := func(v any) error {
		if err := enc.Encode(v); err != nil {
			return err
		}
		wrote = true
		if flush != nil {
			flush()
		}
		return nil
	}

	n, err := b.Stream(ctx, id, func(token uint32, logProb float32, isFinal bool) error {
		line := types.TokenLine{Token: token, Final: isFinal}
		if logProb != 0 {
			lp := logProb
			line.LogProb = &lp
		}
		return writeLine(line)
	})
	if err != nil {
		if IsGenerationError(err) && wrote {
			// The response is already partially on the wire; the status
			// line is gone, so the error travels on the final frame.
			return writeLine(types.StreamEnd{GeneratedTokens: n, Error: err.Error()})
		}
		return err
	}
	return writeLine(types.StreamEnd{Done: true, GeneratedTokens: n})
}

// applyDefaults fills neutral sampling values for fields the client omitted.
func applyDefaults(req *types.GenerateRequest) {
	if req.Temperature == 0 {
		req.Temperature = 1
	}
	if req.TopP == 0 {
		req.TopP = 1
	}
}
