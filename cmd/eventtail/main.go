// Command eventtail follows the transcript outcome topics and prints each
// event as it arrives.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"ai-speech-transcription-service/internal/models"
)

// outcomeEvent holds the fields of both outcome event types.
type outcomeEvent struct {
	EventType    string `json:"eventType"`
	TranscriptID int64  `json:"transcriptId"`
	JobID        string `json:"jobId"`
	Provider     string `json:"provider"`
	SegmentCount int    `json:"segmentCount"`
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
	Timestamp    int64  `json:"timestamp"`
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// describe renders one event as a single line.
func describe(ev outcomeEvent) string {
	at := time.UnixMilli(ev.Timestamp).UTC().Format(time.RFC3339)
	switch ev.EventType {
	case models.EventTranscriptCompleted:
		return fmt.Sprintf("%s completed transcript=%d job=%s provider=%s segments=%d",
			at, ev.TranscriptID, ev.JobID, ev.Provider, ev.SegmentCount)
	case models.EventTranscriptFailed:
		return fmt.Sprintf("%s failed    transcript=%d job=%s provider=%s error=%s %q",
			at, ev.TranscriptID, ev.JobID, ev.Provider, ev.ErrorType, truncate(ev.ErrorMessage, 80))
	default:
		return fmt.Sprintf("%s %s transcript=%d job=%s", at, ev.EventType, ev.TranscriptID, ev.JobID)
	}
}

// printer serializes output from the per-topic consumers.
type printer struct {
	mu  sync.Mutex
	out io.Writer
	raw bool
}

func (p *printer) handle(msg kafka.Message) error {
	var ev outcomeEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("decode %s offset %d: %w", msg.Topic, msg.Offset, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.raw {
		_, err := fmt.Fprintf(p.out, "%s\n", msg.Value)
		return err
	}
	_, err := fmt.Fprintln(p.out, describe(ev))
	return err
}

func consumeKafka(ctx context.Context, logger zerolog.Logger, p *printer, brokers []string, topic string, since time.Duration) {
	// Partition reader without consumer group, so tailing never commits offsets.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		logger.Warn().Err(err).Str("topic", topic).Msg("Failed to seek, reading from the start")
	}

	logger.Info().Str("topic", topic).Dur("since", since).Msg("Consuming from Kafka topic")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}
		if err := p.handle(msg); err != nil {
			logger.Warn().Err(err).Msg("Skipping message")
		}
	}
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicCompleted := flag.String("topic-completed", "transcript.completed", "Completed transcript topic")
	topicFailed := flag.String("topic-failed", "transcript.failed", "Failed transcript topic")
	since := flag.Duration("since", time.Hour, "How far back to start reading")
	raw := flag.Bool("raw", false, "Print message payloads as received")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &printer{out: os.Stdout, raw: *raw}
	brokerList := strings.Split(*brokers, ",")

	var wg sync.WaitGroup
	for _, topic := range []string{*topicCompleted, *topicFailed} {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			consumeKafka(ctx, logger, p, brokerList, topic, *since)
		}(topic)
	}

	logger.Info().Strs("brokers", brokerList).Msg("Event tail started")
	wg.Wait()
}
