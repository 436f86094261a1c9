package mock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SimulatedSegment is a canned segment reported back by the simulator.
type SimulatedSegment struct {
	Text  string
	Start float64
	End   float64
}

// DefaultSegments provides sample segments for simulation.
var DefaultSegments = []SimulatedSegment{
	{Text: " I want to cancel my subscription", Start: 0.48, End: 2.9},
	{Text: " Yes please go ahead", Start: 3.36, End: 4.72},
	{Text: " Can you help me with my account", Start: 5.5, End: 7.84},
	{Text: " I've been waiting for over an hour", Start: 8.2, End: 10.66},
	{Text: " Thank you very much", Start: 11.02, End: 12.1},
}

// Simulator plays the remote function: for each accepted invocation it
// delivers a completed callback to the URL named in the payload.
type Simulator struct {
	Delay    time.Duration
	Client   *http.Client
	Segments []SimulatedSegment
}

// NewSimulator creates a simulator replying after delay with DefaultSegments.
func NewSimulator(delay time.Duration) *Simulator {
	return &Simulator{
		Delay:    delay,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Segments: DefaultSegments,
	}
}

// invocationPayload is the subset of the outbound payload the simulator reads.
type invocationPayload struct {
	Name            string `json:"name"`
	CallbackMethod  string `json:"callback_method"`
	CallbackURL     string `json:"callback_url"`
	MaxSpeakerCount int    `json:"max_speaker_count"`
}

// Hook returns an OnInvoke hook delivering each callback in the background.
func (s *Simulator) Hook() func(Invocation) {
	return func(inv Invocation) {
		go func() {
			time.Sleep(s.Delay)
			if err := s.Deliver(context.Background(), inv); err != nil {
				log.Error().Err(err).Msg("Simulated callback delivery failed")
			}
		}()
	}
}

// Deliver sends the completed callback for inv synchronously.
func (s *Simulator) Deliver(ctx context.Context, inv Invocation) error {
	var p invocationPayload
	if err := json.Unmarshal(inv.Payload, &p); err != nil {
		return fmt.Errorf("decode invocation payload: %w", err)
	}
	if p.CallbackURL == "" {
		return fmt.Errorf("job %s has no callback url", p.Name)
	}

	body, err := json.Marshal(CompletedCallback(p.Name, s.Segments, p.MaxSpeakerCount))
	if err != nil {
		return err
	}

	method := p.CallbackMethod
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, p.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("callback for job %s rejected: %s", p.Name, resp.Status)
	}

	log.Debug().Str("jobId", p.Name).Int("segments", len(s.Segments)).Msg("Simulated callback delivered")
	return nil
}

// CompletedCallback builds a completed callback body for jobID. With
// speakers > 0, segments are attributed round-robin to speaker_1..speaker_N.
func CompletedCallback(jobID string, segments []SimulatedSegment, speakers int) map[string]any {
	list := make([]any, 0, len(segments))
	for i, seg := range segments {
		obj := map[string]any{
			"id":    i,
			"text":  seg.Text,
			"start": seg.Start,
			"end":   seg.End,
			"words": simulateWords(seg),
		}
		if speakers > 0 {
			obj["speaker_label"] = fmt.Sprintf("speaker_%d", i%speakers+1)
		}
		list = append(list, obj)
	}

	return map[string]any{
		"name":   jobID,
		"status": "completed",
		"transcript": map[string]any{
			"segments": list,
		},
	}
}

// FailedCallback builds a failed callback body for jobID.
func FailedCallback(jobID, errorType, errorMessage string) map[string]any {
	return map[string]any{
		"name":          jobID,
		"status":        "failed",
		"error_type":    errorType,
		"error_message": errorMessage,
	}
}

// simulateWords spreads the segment's words evenly over its time span.
func simulateWords(seg SimulatedSegment) []any {
	tokens := strings.Fields(seg.Text)
	if len(tokens) == 0 {
		return []any{}
	}

	step := (seg.End - seg.Start) / float64(len(tokens))
	words := make([]any, 0, len(tokens))
	for i, tok := range tokens {
		end := seg.Start + float64(i+1)*step
		if i == len(tokens)-1 {
			end = seg.End
		}
		words = append(words, map[string]any{
			"word":  " " + tok,
			"start": round2(seg.Start + float64(i)*step),
			"end":   round2(end),
		})
	}
	return words
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
