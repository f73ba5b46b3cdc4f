package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Alert Manager
//
// Fan-out point for high-conviction detections:
//   1. Broadcast to connected dashboards (websocket callback)
//   2. Telegram gem alert
//   3. Registered webhook endpoints (Slack/Discord-compatible payloads)
//   4. In-memory recent history, optional persistent store
//
// The same token re-alerting within the cooldown window is suppressed;
// there is no separate per-destination rate limit.

const (
	maxHistory    = 1000
	alertCooldown = 30 * time.Minute
)

// Alert is the structured record every destination receives.
type Alert struct {
	ID         string                  `json:"id"`
	Timestamp  time.Time               `json:"timestamp"`
	Conviction models.ConvictionLevel  `json:"conviction"`
	FinalScore float64                 `json:"finalScore"`
	Candidate  models.Candidate        `json:"candidate"`
	Breakdown  models.ScoringBreakdown `json:"breakdown"`
}

// WebhookEndpoint is a registered webhook receiver.
type WebhookEndpoint struct {
	Name          string            `json:"name"`
	URL           string            `json:"url"`
	Enabled       bool              `json:"enabled"`
	Headers       map[string]string `json:"headers,omitempty"`
	MinConviction models.ConvictionLevel `json:"minConviction"`
}

// AlertStore persists emitted alerts. Optional.
type AlertStore interface {
	SaveAlert(ctx context.Context, a Alert) error
}

type Manager struct {
	mu           sync.Mutex
	webhooks     []WebhookEndpoint
	recent       []Alert
	lastAlerted  map[string]time.Time
	telegram     *TelegramAlerter // optional
	store        AlertStore       // optional
	broadcast    func(Alert)      // optional websocket callback
	httpClient   *resty.Client
	log          zerolog.Logger
}

func NewManager(telegram *TelegramAlerter, store AlertStore, broadcast func(Alert), log zerolog.Logger) *Manager {
	return &Manager{
		lastAlerted: make(map[string]time.Time),
		telegram:    telegram,
		store:       store,
		broadcast:   broadcast,
		httpClient:  resty.New().SetTimeout(5 * time.Second),
		log:         log.With().Str("component", "alerter").Logger(),
	}
}

// RegisterWebhook adds a webhook endpoint.
func (m *Manager) RegisterWebhook(name, url string, minConviction models.ConvictionLevel, headers map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, WebhookEndpoint{
		Name:          name,
		URL:           url,
		Enabled:       true,
		Headers:       headers,
		MinConviction: minConviction,
	})
}

// Emit delivers one finalist to every destination. Implements the
// pipeline's alert sink.
func (m *Manager) Emit(ctx context.Context, f models.Finalist) {
	m.mu.Lock()
	if last, ok := m.lastAlerted[f.Candidate.Address]; ok && time.Since(last) < alertCooldown {
		m.mu.Unlock()
		m.log.Debug().Str("address", f.Candidate.Address).Msg("alert suppressed by cooldown")
		return
	}
	m.lastAlerted[f.Candidate.Address] = time.Now()
	m.mu.Unlock()

	alert := Alert{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Conviction: f.Conviction,
		FinalScore: f.FinalScore,
		Candidate:  f.Candidate,
		Breakdown:  f.Breakdown,
	}

	m.log.Info().
		Str("symbol", f.Candidate.Symbol).
		Str("address", f.Candidate.Address).
		Float64("score", f.FinalScore).
		Str("conviction", string(f.Conviction)).
		Msg("emitting gem alert")

	if m.broadcast != nil {
		m.broadcast(alert)
	}
	if m.telegram != nil {
		if err := m.telegram.SendGemAlert(ctx, alert); err != nil {
			m.log.Error().Err(err).Str("address", f.Candidate.Address).Msg("telegram alert failed")
		}
	}
	m.deliverWebhooks(ctx, alert)

	if m.store != nil {
		if err := m.store.SaveAlert(ctx, alert); err != nil {
			m.log.Warn().Err(err).Msg("alert persistence failed")
		}
	}

	m.mu.Lock()
	m.recent = append(m.recent, alert)
	if len(m.recent) > maxHistory {
		m.recent = m.recent[len(m.recent)-maxHistory:]
	}
	m.mu.Unlock()
}

// Recent returns up to n most recent alerts, newest first.
func (m *Manager) Recent(n int) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.recent) {
		n = len(m.recent)
	}
	out := make([]Alert, n)
	for i := 0; i < n; i++ {
		out[i] = m.recent[len(m.recent)-1-i]
	}
	return out
}

// convictionRank orders conviction levels for webhook filtering.
func convictionRank(c models.ConvictionLevel) int {
	switch c {
	case models.ConvictionVeryHigh:
		return 3
	case models.ConvictionHigh:
		return 2
	case models.ConvictionModerate:
		return 1
	default:
		return 0
	}
}

func (m *Manager) deliverWebhooks(ctx context.Context, alert Alert) {
	m.mu.Lock()
	endpoints := make([]WebhookEndpoint, len(m.webhooks))
	copy(endpoints, m.webhooks)
	m.mu.Unlock()

	for _, wh := range endpoints {
		if !wh.Enabled || convictionRank(alert.Conviction) < convictionRank(wh.MinConviction) {
			continue
		}
		resp, err := m.httpClient.R().
			SetContext(ctx).
			SetHeaders(wh.Headers).
			SetBody(alert).
			Post(wh.URL)
		if err != nil || resp.IsError() {
			m.log.Warn().Err(err).Str("webhook", wh.Name).Msg("webhook delivery failed")
		}
	}
}
