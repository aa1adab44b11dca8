// Package notify posts operator-facing alerts to a webhook, deduplicating
// repeated identical error strings within a TTL window so a stuck
// borrower retried every scan doesn't spam the channel. Grounded on
// `go-resty/resty/v2` for the HTTP call (the same client library the full
// indexer client in internal/scanner uses) and the teacher's zerolog
// structured-logging idiom for the local log line that always accompanies
// a send.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Level distinguishes alert severity in the posted payload.
type Level string

const (
	LevelInfo  Level = "info"
	LevelAlert Level = "alert"
)

type payload struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// Notifier posts to a single webhook URL with TTL'd message dedup.
type Notifier struct {
	http       *resty.Client
	webhookURL string
	dedupTTL   time.Duration
	log        zerolog.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

// New builds a Notifier. webhookURL may be empty, in which case Send only
// logs locally (useful for local runs with no configured channel).
func New(webhookURL string, dedupTTL time.Duration, log zerolog.Logger) *Notifier {
	return &Notifier{
		http:       resty.New().SetTimeout(10 * time.Second),
		webhookURL: webhookURL,
		dedupTTL:   dedupTTL,
		log:        log,
		seen:       make(map[string]time.Time),
	}
}

// Send posts message at level, skipping the webhook call (but still
// logging) if an identical message was sent within the dedup window.
func (n *Notifier) Send(ctx context.Context, level Level, message string) error {
	now := time.Now()

	n.mu.Lock()
	last, dup := n.seen[message]
	isDup := dup && now.Sub(last) < n.dedupTTL
	if !isDup {
		n.seen[message] = now
	}
	n.mu.Unlock()

	event := n.log.Info()
	if level == LevelAlert {
		event = n.log.Warn()
	}
	event.Str("level", string(level)).Bool("deduped", isDup).Msg(message)

	if isDup || n.webhookURL == "" {
		return nil
	}

	_, err := n.http.R().
		SetContext(ctx).
		SetBody(payload{Level: level, Message: message, Time: now.Format(time.RFC3339)}).
		Post(n.webhookURL)
	return err
}

// SweepExpired drops dedup entries older than the TTL, bounding the map's
// growth across a long-running process.
func (n *Notifier) SweepExpired(now time.Time) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	evicted := 0
	for msg, t := range n.seen {
		if now.Sub(t) >= n.dedupTTL {
			delete(n.seen, msg)
			evicted++
		}
	}
	return evicted
}
