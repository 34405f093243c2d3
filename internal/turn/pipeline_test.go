package turn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AmaanP314/AI-Caller-Agent/internal/policy"
	policymock "github.com/AmaanP314/AI-Caller-Agent/internal/policy/mock"
	ttsmock "github.com/AmaanP314/AI-Caller-Agent/pkg/provider/tts/mock"
)

// drainAudio reads chunks until the nil end-of-speech marker or a timeout.
func drainAudio(t *testing.T, audioCh <-chan []byte) [][]byte {
	t.Helper()
	var chunks [][]byte
	for {
		select {
		case pcm := <-audioCh:
			chunks = append(chunks, pcm)
			if pcm == nil {
				return chunks
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for audio")
		}
	}
}

func TestRunTurnSpeaksSentences(t *testing.T) {
	t.Parallel()

	pol := &policymock.Policy{
		Events: []policy.Event{
			{Delta: "This is the first sentence and it "},
			{Delta: "has more than ten words. Here is the second "},
			{Delta: "sentence which also has more than ten words."},
		},
	}
	synth := &ttsmock.Synthesizer{PCM: []byte{1, 2, 3, 4}}
	p := New(pol, synth)

	audioCh := make(chan []byte, 5)
	out, err := p.RunTurn(context.Background(), NewSignal(), audioCh, "hello")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	chunks := drainAudio(t, audioCh)
	if len(chunks) != 3 || chunks[2] != nil {
		t.Fatalf("chunks = %d (last nil: %v), want 2 audio + end marker", len(chunks), chunks[len(chunks)-1] == nil)
	}

	texts := synth.Texts()
	want := []string{
		"This is the first sentence and it has more than ten words.",
		"Here is the second sentence which also has more than ten words.",
	}
	if len(texts) != len(want) {
		t.Fatalf("synthesized %d sentences, want %d: %q", len(texts), len(want), texts)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("sentence %d = %q, want %q", i, texts[i], want[i])
		}
	}

	if out.Interrupted || out.EndCall || out.Forward {
		t.Errorf("outcome = %+v, want plain completion", out)
	}
	if out.Text == "" {
		t.Error("outcome text empty")
	}

	if got := pol.Transcripts(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("transcripts = %q", got)
	}
}

func TestRunTurnInterrupt(t *testing.T) {
	t.Parallel()

	pol := &policymock.Policy{
		Events: []policy.Event{{Delta: "Alpha. Bravo. Charlie."}},
	}
	synth := &ttsmock.Synthesizer{PCM: []byte{9, 9}}
	p := New(pol, synth, WithMinWords(1))

	sig := NewSignal()
	audioCh := make(chan []byte) // unbuffered: publishes rendezvous with us
	done := make(chan Outcome, 1)
	go func() {
		out, err := p.RunTurn(context.Background(), sig, audioCh, "")
		if err != nil {
			t.Errorf("RunTurn: %v", err)
		}
		done <- out
	}()

	// Accept the first chunk, then barge in.
	select {
	case <-audioCh:
	case <-time.After(2 * time.Second):
		t.Fatal("no first chunk")
	}
	sig.Raise()

	var out Outcome
	select {
	case out = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunTurn did not return after interrupt")
	}
	if !out.Interrupted {
		t.Error("outcome not marked interrupted")
	}
	if out.Text != "Alpha. Bravo. Charlie." {
		t.Errorf("text = %q", out.Text)
	}

	// No end-of-speech marker after an interrupt.
	select {
	case pcm := <-audioCh:
		t.Errorf("unexpected chunk after interrupt: %v", pcm)
	default:
	}
}

func TestRunTurnSynthesisFailureSubstitutesSilence(t *testing.T) {
	t.Parallel()

	pol := &policymock.Policy{
		Events: []policy.Event{{Delta: "One two three four five six seven eight nine ten."}},
	}
	synth := &ttsmock.Synthesizer{Err: errors.New("tts down")}
	p := New(pol, synth)

	audioCh := make(chan []byte, 5)
	out, err := p.RunTurn(context.Background(), NewSignal(), audioCh, "x")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if out.Interrupted {
		t.Error("marked interrupted")
	}

	chunks := drainAudio(t, audioCh)
	if len(chunks) != 2 || chunks[1] != nil {
		t.Fatalf("chunks = %d, want silence + end marker", len(chunks))
	}
	// 10 words at 300 ms each, 16 kHz, 2 bytes per sample.
	if want := 10 * 4800 * 2; len(chunks[0]) != want {
		t.Errorf("silence = %d bytes, want %d", len(chunks[0]), want)
	}
}

func TestRunTurnCallControl(t *testing.T) {
	t.Parallel()

	pol := &policymock.Policy{
		Events: []policy.Event{
			{Delta: "Goodbye!"},
			{EndCall: true, Reason: "not_interested"},
		},
	}
	synth := &ttsmock.Synthesizer{PCM: []byte{1}}
	p := New(pol, synth)

	audioCh := make(chan []byte, 5)
	out, err := p.RunTurn(context.Background(), NewSignal(), audioCh, "no thanks")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if !out.EndCall || out.Reason != "not_interested" {
		t.Errorf("outcome = %+v", out)
	}

	chunks := drainAudio(t, audioCh)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want farewell + end marker", len(chunks))
	}
	if texts := synth.Texts(); len(texts) != 1 || texts[0] != "Goodbye!" {
		t.Errorf("texts = %q", texts)
	}
}

func TestRunTurnPolicyError(t *testing.T) {
	t.Parallel()

	pol := &policymock.Policy{
		Events: []policy.Event{
			{Delta: "Hel"},
			{Err: errors.New("llm down")},
		},
	}
	p := New(pol, &ttsmock.Synthesizer{})

	audioCh := make(chan []byte, 5)
	out, err := p.RunTurn(context.Background(), NewSignal(), audioCh, "hi")
	if err == nil {
		t.Fatal("no error from failed policy stream")
	}
	if out.Text != "Hel" {
		t.Errorf("partial text = %q", out.Text)
	}
}

func TestRunTurnRespondError(t *testing.T) {
	t.Parallel()

	pol := &policymock.Policy{Err: errors.New("no backend")}
	p := New(pol, &ttsmock.Synthesizer{})

	if _, err := p.RunTurn(context.Background(), NewSignal(), make(chan []byte, 1), ""); err == nil {
		t.Fatal("no error from Respond failure")
	}
}
