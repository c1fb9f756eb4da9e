package services

import (
	"sync"
	"time"

	"quizarena-progression/models"
)

// EventType enumerates the in-process events the engine publishes.
type EventType string

const (
	EventQuizCompleted      EventType = "quiz_completed"
	EventChallengeCompleted EventType = "challenge_completed"
	EventLessonCompleted    EventType = "lesson_completed"
	EventCreditsEarned      EventType = "credits_earned"
	EventRewardClaimed      EventType = "reward_claimed"
	EventAnswerStreak       EventType = "answer_streak"
)

// Event is the typed message exchanged on the bus. One struct with typed
// variants keeps dispatch exhaustive at the subscriber switch instead of
// string-keyed maps.
type Event struct {
	Type        EventType
	UserID      string
	CourseID    string
	Scope       models.QuizScope
	ModuleIndex *int

	Score    int
	MaxScore int
	Amount   int64 // credits delta for EventCreditsEarned

	Won     bool // EventChallengeCompleted: whether UserID is the winner
	IsReset bool // EventAnswerStreak: reset progress instead of incrementing

	At time.Time
}

// Bus is a small in-process publish/subscribe hub. Publish is best-effort
// and never blocks the caller: side effects like quest progress must not
// abort the primary transaction.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a buffered channel of events plus a cancel function.
// The caller must invoke cancel to avoid leaks.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish fans the event out to all subscribers. When a subscriber's buffer
// is full the oldest event is dropped so a slow consumer cannot stall
// publishers.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
