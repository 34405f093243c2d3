// Package turn runs one agent turn end to end: it streams the policy reply,
// cuts the token stream into sentences, synthesizes each sentence, and queues
// the audio for the per-call sender. A producer goroutine feeds sentences, a
// consumer goroutine synthesizes and publishes them, and a shared [Signal]
// interrupts the whole chain when the caller barges in.
package turn

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/AmaanP314/AI-Caller-Agent/internal/observe"
	"github.com/AmaanP314/AI-Caller-Agent/internal/policy"
	"github.com/AmaanP314/AI-Caller-Agent/internal/segment"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/audio"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/tts"
)

const (
	// sentenceBuffer bounds how far the LLM may run ahead of synthesis.
	sentenceBuffer = 10

	// defaultWorkers caps concurrent synthesis requests across a pipeline.
	defaultWorkers = 4

	// silencePerWord sizes the placeholder played when synthesis fails, so
	// the conversation keeps its rhythm instead of skipping a sentence.
	silencePerWord = 300 * time.Millisecond
)

// Outcome summarises one completed (or interrupted) turn.
type Outcome struct {
	// Text is the full reply text the policy produced, including any part
	// that was never spoken because of an interrupt.
	Text string

	// Interrupted reports whether the caller barged in during the turn.
	Interrupted bool

	// EndCall and Forward carry the policy's call-control decision, with
	// Reason as the disposition code.
	EndCall bool
	Forward bool
	Reason  string
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline)

// WithWorkers caps concurrent synthesis requests. Defaults to 4.
func WithWorkers(n int64) Option {
	return func(p *Pipeline) {
		p.workers = semaphore.NewWeighted(n)
	}
}

// WithMinWords sets the minimum sentence length for segmentation.
func WithMinWords(n int) Option {
	return func(p *Pipeline) {
		p.minWords = n
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// Pipeline turns transcripts into queued agent audio. One Pipeline serves one
// call; RunTurn must not be invoked concurrently.
type Pipeline struct {
	policy   policy.Policy
	tts      tts.Synthesizer
	workers  *semaphore.Weighted
	metrics  *observe.Metrics
	logger   *slog.Logger
	minWords int
}

// New creates a Pipeline over the given policy and synthesizer.
func New(pol policy.Policy, synth tts.Synthesizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		policy:   pol,
		tts:      synth,
		workers:  semaphore.NewWeighted(defaultWorkers),
		metrics:  observe.DefaultMetrics(),
		logger:   slog.Default(),
		minWords: segment.DefaultMinWords,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// produceResult is what the producer hands back when the policy stream ends.
type produceResult struct {
	text    string
	endCall bool
	forward bool
	reason  string
	err     error
}

// RunTurn executes one turn: transcript in, audio chunks out on audioCh. An
// empty transcript requests the opening greeting. Audio is published one
// synthesized sentence at a time, followed by a nil chunk marking the end of
// agent speech; no end marker is published when sig fires mid-turn. The
// caller owns audioCh and keeps it open across turns.
func (p *Pipeline) RunTurn(ctx context.Context, sig *Signal, audioCh chan<- []byte, transcript string) (Outcome, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := p.policy.Respond(ctx, transcript)
	if err != nil {
		return Outcome{}, err
	}

	sentences := make(chan string, sentenceBuffer)
	producerDone := make(chan produceResult, 1)
	go p.produce(ctx, events, sentences, producerDone, start)

	consumerDone := make(chan bool, 1)
	go func() {
		consumerDone <- p.consume(ctx, sig, sentences, audioCh)
	}()

	// The consumer observes sig at every step, but it can also sit blocked
	// waiting for the producer's next sentence; cancelling on sig tears the
	// producer down so the consumer unblocks promptly.
	var interrupted bool
	select {
	case interrupted = <-consumerDone:
	case <-sig.Done():
		cancel()
		<-consumerDone
		interrupted = true
	}
	res := <-producerDone

	outcome := Outcome{
		Text:        res.text,
		Interrupted: interrupted || sig.Raised(),
		EndCall:     res.endCall,
		Forward:     res.forward,
		Reason:      res.reason,
	}
	p.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())

	if res.err != nil && !(outcome.Interrupted && errors.Is(res.err, context.Canceled)) {
		return outcome, res.err
	}
	return outcome, nil
}

// produce reads policy events, accumulates the reply text and call-control
// flags, and emits completed sentences. Always closes sentences and always
// delivers exactly one produceResult.
func (p *Pipeline) produce(ctx context.Context, events <-chan policy.Event, sentences chan<- string, done chan<- produceResult, start time.Time) {
	defer close(sentences)

	seg := segment.New(p.minWords)
	var res produceResult
	var full strings.Builder
	firstSentence := true

	emit := func(s string) bool {
		if firstSentence {
			p.metrics.LLMFirstSentence.Record(ctx, time.Since(start).Seconds())
			firstSentence = false
		}
		select {
		case sentences <- s:
			return true
		case <-ctx.Done():
			return false
		}
	}

loop:
	for ev := range events {
		if ev.Err != nil {
			res.err = ev.Err
			break
		}
		if ev.EndCall {
			res.endCall = true
			res.reason = ev.Reason
		}
		if ev.Forward {
			res.forward = true
			res.reason = ev.Reason
		}
		if ev.Delta == "" {
			continue
		}
		full.WriteString(ev.Delta)
		for _, s := range seg.Push(ev.Delta) {
			if !emit(s) {
				break loop
			}
		}
	}

	// Trailing text without a terminator still gets spoken.
	if res.err == nil && ctx.Err() == nil {
		if tail := seg.Flush(); tail != "" {
			emit(tail)
		}
	}

	res.text = strings.TrimSpace(full.String())
	done <- res
}

// consume synthesizes sentences in arrival order and publishes the audio.
// Reports whether the turn was interrupted. On interrupt it drains the
// sentence channel so the producer never blocks.
func (p *Pipeline) consume(ctx context.Context, sig *Signal, sentences <-chan string, audioCh chan<- []byte) (interrupted bool) {
	defer func() {
		if interrupted {
			for range sentences {
			}
		}
	}()

	for sentence := range sentences {
		if sig.Raised() {
			return true
		}

		pcm, err := p.synthesize(ctx, sentence)
		if err != nil {
			if ctx.Err() != nil {
				return sig.Raised()
			}
			// Keep the turn's timing intact: substitute silence roughly the
			// length of the lost sentence.
			p.logger.Warn("synthesis failed, substituting silence",
				"sentence_words", len(strings.Fields(sentence)), "error", err)
			p.metrics.RecordProviderError(ctx, "tts", "synthesize")
			words := len(strings.Fields(sentence))
			pcm = audio.Silence(p.tts.SampleRate(), time.Duration(words)*silencePerWord)
		}
		if len(pcm) == 0 {
			continue
		}

		// Re-check right before publishing: a barge-in during synthesis must
		// not leak stale audio into the queue.
		select {
		case audioCh <- pcm:
		case <-sig.Done():
			return true
		case <-ctx.Done():
			return sig.Raised()
		}
	}

	if sig.Raised() {
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	// End-of-speech marker, published only after an uninterrupted turn.
	select {
	case audioCh <- nil:
	case <-sig.Done():
		return true
	case <-ctx.Done():
	}
	return false
}

// synthesize runs one TTS request under the worker cap.
func (p *Pipeline) synthesize(ctx context.Context, sentence string) ([]byte, error) {
	if err := p.workers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.workers.Release(1)

	start := time.Now()
	pcm, err := p.tts.Synthesize(ctx, sentence)
	p.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	return pcm, err
}
