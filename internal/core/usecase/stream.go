package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
	"github.com/Turnstyle/ria-hunter-sub009/internal/core/ports"
)

const streamBuffer = 16

type StreamUseCase struct {
	search            *SearchUseCase
	generator         ports.AnswerGenerator
	heartbeatInterval time.Duration
	log               *slog.Logger
}

func NewStreamUseCase(search *SearchUseCase, generator ports.AnswerGenerator, heartbeatInterval time.Duration, log *slog.Logger) *StreamUseCase {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 3 * time.Second
	}
	return &StreamUseCase{
		search:            search,
		generator:         generator,
		heartbeatInterval: heartbeatInterval,
		log:               log,
	}
}

// Stream delivers the answer incrementally. Event order is fixed: connected
// first, then tokens (with heartbeats filling quiet stretches), then exactly
// one complete event. The producer closes the channel; it never blocks past
// ctx cancellation, so an abandoned consumer cannot leak the goroutine.
func (uc *StreamUseCase) Stream(ctx context.Context, question string, overrides *domain.StructuredFilters) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent, streamBuffer)

	go func() {
		defer close(events)

		emit := func(ev domain.StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(domain.StreamEvent{Type: domain.EventConnected}) {
			return
		}

		result, err := uc.search.Search(ctx, question, overrides)
		if err != nil {
			uc.log.Error("stream search failed", "error", err)
			emit(domain.StreamEvent{
				Type: domain.EventComplete,
				Answer: &domain.Answer{
					Text:     "Something went wrong while searching adviser records. Please try again.",
					Sources:  []domain.AggregatedFirm{},
					Degraded: true,
				},
			})
			return
		}

		if len(result.Firms) == 0 {
			text := noMatchText(result.ResolvedRegion)
			emit(domain.StreamEvent{Type: domain.EventToken, Content: text})
			emit(domain.StreamEvent{
				Type: domain.EventComplete,
				Answer: &domain.Answer{
					Text:    text,
					Sources: []domain.AggregatedFirm{},
					Search:  *result,
				},
			})
			return
		}

		heartbeats := uc.startHeartbeats(ctx, emit)
		defer heartbeats.stop()

		var assembled strings.Builder
		streamErr := uc.generator.StreamAnswer(ctx, question, result.Firms, func(token string) error {
			heartbeats.touch()
			assembled.WriteString(token)
			if !emit(domain.StreamEvent{Type: domain.EventToken, Content: token}) {
				return context.Cause(ctx)
			}
			return nil
		})

		heartbeats.stop()

		if streamErr != nil {
			if ctx.Err() != nil {
				return
			}
			uc.log.Warn("streaming generation failed, degrading", "error", streamErr)
			text := fallbackAnswer(result)
			emit(domain.StreamEvent{Type: domain.EventToken, Content: text})
			emit(domain.StreamEvent{
				Type: domain.EventComplete,
				Answer: &domain.Answer{
					Text:     text,
					Sources:  result.Firms,
					Search:   *result,
					Degraded: true,
				},
			})
			return
		}

		emit(domain.StreamEvent{
			Type: domain.EventComplete,
			Answer: &domain.Answer{
				Text:    assembled.String(),
				Sources: result.Firms,
				Search:  *result,
			},
		})
	}()

	return events
}

// heartbeatLoop sends keep-alive events while generation is quiet. touch()
// resets the idle window, stop() waits for the goroutine to exit so the
// producer can close the channel without racing a late heartbeat.
type heartbeatLoop struct {
	cancel   context.CancelFunc
	activity chan struct{}
	done     chan struct{}
	stopped  bool
}

func (uc *StreamUseCase) startHeartbeats(ctx context.Context, emit func(domain.StreamEvent) bool) *heartbeatLoop {
	hbCtx, cancel := context.WithCancel(ctx)
	hb := &heartbeatLoop{
		cancel:   cancel,
		activity: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(hb.done)
		timer := time.NewTimer(uc.heartbeatInterval)
		defer timer.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-hb.activity:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(uc.heartbeatInterval)
			case <-timer.C:
				if !emit(domain.StreamEvent{Type: domain.EventToken, Heartbeat: true}) {
					return
				}
				timer.Reset(uc.heartbeatInterval)
			}
		}
	}()
	return hb
}

func (hb *heartbeatLoop) touch() {
	select {
	case hb.activity <- struct{}{}:
	default:
	}
}

func (hb *heartbeatLoop) stop() {
	if hb.stopped {
		return
	}
	hb.stopped = true
	hb.cancel()
	<-hb.done
}
