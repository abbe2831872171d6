package backend

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// procExecutor owns the executor runtime as a spawned subprocess and speaks
// NDJSON frames over its stdin/stdout. A single reader goroutine demuxes
// response events into per-request channels, which makes concurrent enqueues
// and concurrent polls for distinct requests safe without caller locking.

const (
	defaultStartupTimeout = 30 * time.Second
	stopGracePeriod       = 2 * time.Second
	streamBuffer          = 512
)

type procConfig struct {
	Bin            string
	EnginesDir     string
	ModelType      ModelType
	Executor       ExecutorConfig
	StartupTimeout time.Duration
	Log            zerolog.Logger
}

// commandFrame is one line written to the worker's stdin.
type commandFrame struct {
	Op        string          `json:"op"`
	Corr      string          `json:"corr,omitempty"`
	Configure *configureFrame `json:"configure,omitempty"`
	Request   *Request        `json:"request,omitempty"`
}

type configureFrame struct {
	EnginesDir     string          `json:"engines_dir"`
	ModelType      ModelType       `json:"model_type"`
	ParallelMode   ParallelismMode `json:"parallel_mode"`
	WorkerPath     string          `json:"worker_path,omitempty"`
	KVCache        bool            `json:"kv_cache"`
	ChunkedContext bool            `json:"chunked_context"`
}

// eventFrame is one line read from the worker's stdout. Exactly one of the
// three shapes is populated: a handshake event (Event set), an enqueue ack
// (Corr set), or a response event (RequestID set).
type eventFrame struct {
	Event     string   `json:"event,omitempty"`
	Corr      string   `json:"corr,omitempty"`
	RequestID *uint64  `json:"request_id,omitempty"`
	Token     uint32   `json:"token"`
	LogProb   *float32 `json:"log_prob,omitempty"`
	Final     bool     `json:"final"`
	Error     string   `json:"error,omitempty"`
}

type enqueueAck struct {
	id  RequestID
	err error
}

type procExecutor struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	log    zerolog.Logger

	wmu sync.Mutex // serializes stdin frame writes

	mu      sync.Mutex
	streams map[RequestID]*requestStream
	pending map[string]chan enqueueAck
	readyCh chan error
	done    chan struct{} // closed when the reader goroutine exits
	waitCh  chan error    // receives the single cmd.Wait result
	closing atomic.Bool
	active  atomic.Int64 // diagnostic in-flight count
}

// newProcExecutor spawns the executor runtime, performs the configure/ready
// handshake and returns a live executor. Any startup failure (missing binary,
// early exit, handshake error or timeout) is returned to the caller; backend
// construction treats it as fatal.
func newProcExecutor(cfg procConfig) (*procExecutor, error) {
	if fi, err := os.Stat(cfg.Bin); err != nil || fi.IsDir() {
		return nil, ErrDependencyUnavailable(fmt.Sprintf("executor runtime not found: %s", cfg.Bin))
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}

	cmd := exec.Command(cfg.Bin, "--engines-dir", cfg.EnginesDir)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("executor stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("executor stdout: %w", err)
	}
	// Capture stderr in memory; the tail is included in startup failures.
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start executor: %w", err)
	}

	p := &procExecutor{
		cmd:     cmd,
		stdin:   stdin,
		stderr:  &stderr,
		log:     cfg.Log,
		streams: make(map[RequestID]*requestStream),
		pending: make(map[string]chan enqueueAck),
		readyCh: make(chan error, 1),
		done:    make(chan struct{}),
		waitCh:  make(chan error, 1),
	}
	p.log.Info().Int("pid", cmd.Process.Pid).Str("bin", cfg.Bin).Msg("executor started")

	go func() { p.waitCh <- cmd.Wait() }()
	go p.readLoop(stdout)

	if err := p.writeFrame(commandFrame{Op: "configure", Configure: &configureFrame{
		EnginesDir:     cfg.EnginesDir,
		ModelType:      cfg.ModelType,
		ParallelMode:   cfg.Executor.Mode,
		WorkerPath:     cfg.Executor.OrchestratorWorkerPath,
		KVCache:        cfg.Executor.KVCacheEnabled,
		ChunkedContext: cfg.Executor.ChunkedContextEnabled,
	}}); err != nil {
		p.kill()
		return nil, fmt.Errorf("configure executor: %w", err)
	}

	timer := time.NewTimer(cfg.StartupTimeout)
	defer timer.Stop()
	select {
	case err := <-p.readyCh:
		if err != nil {
			p.kill()
			return nil, fmt.Errorf("executor rejected initialization: %w", err)
		}
	case werr := <-p.waitCh:
		return nil, fmt.Errorf("executor exited before ready: %v; stderr tail: %s", werr, p.stderrTail())
	case <-timer.C:
		p.kill()
		return nil, fmt.Errorf("executor not ready within %s", cfg.StartupTimeout)
	}
	p.log.Info().Int("pid", cmd.Process.Pid).Msg("executor ready")
	return p, nil
}

func (p *procExecutor) writeFrame(f commandFrame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	_, err = p.stdin.Write(append(b, '\n'))
	return err
}

// readLoop demuxes worker stdout lines for the life of the process.
func (p *procExecutor) readLoop(r io.Reader) {
	defer p.teardown()
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	for s.Scan() {
		line := s.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var ev eventFrame
		if err := json.Unmarshal(line, &ev); err != nil {
			p.log.Warn().Err(err).Msg("executor emitted undecodable frame")
			continue
		}
		switch {
		case ev.Event != "":
			var err error
			if ev.Event != "ready" {
				err = fmt.Errorf("%s: %s", ev.Event, ev.Error)
			}
			select {
			case p.readyCh <- err:
			default:
			}
		case ev.Corr != "":
			p.deliverAck(ev)
		case ev.RequestID != nil:
			p.deliverResponse(ev)
		default:
			p.log.Warn().Msg("executor emitted frame with no routing key")
		}
	}
}

func (p *procExecutor) deliverAck(ev eventFrame) {
	p.mu.Lock()
	ch := p.pending[ev.Corr]
	delete(p.pending, ev.Corr)
	p.mu.Unlock()
	if ch == nil {
		p.log.Warn().Str("corr", ev.Corr).Msg("ack for unknown enqueue")
		return
	}
	if ev.Error != "" {
		ch <- enqueueAck{err: fmt.Errorf("executor rejected request: %s", ev.Error)}
		return
	}
	if ev.RequestID == nil {
		ch <- enqueueAck{err: fmt.Errorf("executor ack missing request id")}
		return
	}
	ch <- enqueueAck{id: RequestID(*ev.RequestID)}
}

func (p *procExecutor) deliverResponse(ev eventFrame) {
	id := RequestID(*ev.RequestID)
	resp := Response{
		ID:      id,
		Token:   ev.Token,
		LogProb: ev.LogProb,
		IsFinal: ev.Final,
		Error:   ev.Error,
	}
	st := p.stream(id)
	st.ch <- resp
	if resp.Error != "" || resp.IsFinal {
		// Close but keep the channel registered so a poller can still drain
		// buffered events; the entry is removed once fully drained.
		p.mu.Lock()
		st.terminal = true
		p.mu.Unlock()
		close(st.ch)
		p.active.Add(-1)
	}
}

// requestStream carries the events of one in-flight request from the reader
// to the poller. terminal marks the channel closed after a final/error event.
type requestStream struct {
	ch       chan Response
	terminal bool
}

// stream returns the event stream for id, creating it if needed. Creation is
// lazy on both the enqueue and the reader path, so an event racing ahead of
// the enqueue ack is never dropped.
func (p *procExecutor) stream(id RequestID) *requestStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.streams[id]
	if !ok {
		st = &requestStream{ch: make(chan Response, streamBuffer)}
		p.streams[id] = st
	}
	return st
}

// teardown runs when the reader exits (worker stdout closed). Pending waiters
// are failed and open streams receive a terminal error unless this is an
// orderly Close.
func (p *procExecutor) teardown() {
	p.mu.Lock()
	pending := p.pending
	streams := p.streams
	p.pending = make(map[string]chan enqueueAck)
	p.streams = make(map[RequestID]*requestStream)
	p.mu.Unlock()

	orderly := p.closing.Load()
	for _, ch := range pending {
		ch <- enqueueAck{err: ErrDependencyUnavailable("executor terminated")}
	}
	for id, st := range streams {
		if st.terminal {
			continue // already closed by the reader
		}
		if !orderly {
			st.ch <- Response{ID: id, Error: "executor terminated unexpectedly"}
		}
		close(st.ch)
		p.active.Add(-1)
	}
	if !orderly {
		p.log.Error().Msg("executor stdout closed unexpectedly")
	}
	close(p.done)
}

// EnqueueRequest submits one request and blocks only for the executor's ack
// carrying the assigned request id, never for generated tokens.
func (p *procExecutor) EnqueueRequest(req Request) (RequestID, error) {
	if p.closing.Load() {
		return 0, ErrDependencyUnavailable("executor is shut down")
	}
	corr := uuid.NewString()
	ackCh := make(chan enqueueAck, 1)
	p.mu.Lock()
	p.pending[corr] = ackCh
	p.mu.Unlock()

	if err := p.writeFrame(commandFrame{Op: "enqueue", Corr: corr, Request: &req}); err != nil {
		p.mu.Lock()
		delete(p.pending, corr)
		p.mu.Unlock()
		return 0, ErrDependencyUnavailable(fmt.Sprintf("write to executor: %v", err))
	}

	select {
	case ack := <-ackCh:
		if ack.err != nil {
			return 0, ack.err
		}
		// Register the stream before returning so a poll issued right after
		// submission never misses the request.
		p.stream(ack.id)
		p.active.Add(1)
		return ack.id, nil
	case <-p.done:
		return 0, ErrDependencyUnavailable("executor terminated")
	}
}

// AwaitResponses blocks until at least one completion event is available for
// id, then returns it together with any further events already buffered.
func (p *procExecutor) AwaitResponses(id RequestID) []Response {
	p.mu.Lock()
	st := p.streams[id]
	p.mu.Unlock()
	if st == nil {
		return []Response{{ID: id, Error: "unknown or completed request id"}}
	}
	first, ok := <-st.ch
	if !ok {
		p.finish(id)
		return []Response{{ID: id, Error: "request stream already drained"}}
	}
	batch := []Response{first}
	for {
		select {
		case resp, ok := <-st.ch:
			if !ok {
				p.finish(id)
				return batch
			}
			batch = append(batch, resp)
		default:
			return batch
		}
	}
}

func (p *procExecutor) finish(id RequestID) {
	p.mu.Lock()
	delete(p.streams, id)
	p.mu.Unlock()
}

// LatestIterationStats reports the demuxer's in-flight count. Diagnostic
// only; the executor is authoritative about its own queue.
func (p *procExecutor) LatestIterationStats() IterationStats {
	n := p.active.Load()
	if n < 0 {
		n = 0
	}
	return IterationStats{NumActiveRequests: int(n)}
}

// Close terminates the worker: SIGTERM first, kill after a grace period.
func (p *procExecutor) Close() error {
	if p.closing.Swap(true) {
		return nil
	}
	_ = p.stdin.Close()
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	timer := time.NewTimer(stopGracePeriod)
	defer timer.Stop()
	select {
	case <-p.waitCh:
	case <-timer.C:
		_ = p.cmd.Process.Kill()
		<-p.waitCh
	}
	p.log.Info().Int("pid", p.cmd.Process.Pid).Msg("executor stopped")
	return nil
}

func (p *procExecutor) kill() {
	p.closing.Store(true)
	_ = p.stdin.Close()
	_ = p.cmd.Process.Kill()
	<-p.waitCh
}

func (p *procExecutor) stderrTail() string {
	tail := p.stderr.String()
	if len(tail) > 4096 {
		tail = tail[len(tail)-4096:]
	}
	return tail
}
