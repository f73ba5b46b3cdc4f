package alerting

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/fil0s/virtuoso-gem-finder/pkg/models"
)

// Telegram Alerter
//
// HTML-formatted gem alerts: header, core metrics, security/risk,
// scoring breakdown with interaction findings, and action links. Delivery
// gets up to three attempts with backoff; if the HTML send still fails
// (markup rejection or any other error), a plain-text rendition is sent
// with the same retry policy.

const telegramAPIBase = "https://api.telegram.org"

type TelegramAlerter struct {
	client   *resty.Client
	botToken string
	chatID   string
	log      zerolog.Logger
}

func NewTelegramAlerter(botToken, chatID string, log zerolog.Logger) *TelegramAlerter {
	return &TelegramAlerter{
		client:   resty.New().SetTimeout(15 * time.Second),
		botToken: botToken,
		chatID:   chatID,
		log:      log.With().Str("component", "telegram").Logger(),
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// SendGemAlert formats and delivers one alert.
func (t *TelegramAlerter) SendGemAlert(ctx context.Context, alert Alert) error {
	text := t.formatAlert(alert)
	if err := t.sendWithRetry(ctx, text, "HTML"); err != nil {
		// Any HTML failure: strip tags and resend as plain text (same retry policy)
		t.log.Warn().Err(err).Msg("HTML alert rejected, sending plain-text fallback")
		return t.sendWithRetry(ctx, stripTags(text), "")
	}
	return nil
}

// SendMessage delivers a raw message (test pings, graduation signals).
func (t *TelegramAlerter) SendMessage(ctx context.Context, text string) error {
	return t.sendWithRetry(ctx, text, "HTML")
}

func (t *TelegramAlerter) sendWithRetry(ctx context.Context, text, parseMode string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, t.botToken)

	attempt := func() error {
		var out telegramResponse
		body := map[string]string{
			"chat_id":                  t.chatID,
			"text":                     text,
			"disable_web_page_preview": "true",
		}
		if parseMode != "" {
			body["parse_mode"] = parseMode
		}
		resp, err := t.client.R().SetContext(ctx).SetBody(body).SetResult(&out).SetError(&out).Post(url)
		if err != nil {
			return err
		}
		if out.OK {
			return nil
		}
		// 400 means the message itself is bad; retrying will not help
		if resp.StatusCode() == 400 {
			return backoff.Permanent(fmt.Errorf("telegram rejected message: %s", out.Description))
		}
		return fmt.Errorf("telegram send failed (%d): %s", resp.StatusCode(), out.Description)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	return backoff.Retry(attempt, policy)
}

func (t *TelegramAlerter) formatAlert(alert Alert) string {
	c := alert.Candidate
	b := alert.Breakdown
	var sb strings.Builder

	// ─── Header ──────────────────────────────────────────────────────
	sb.WriteString(fmt.Sprintf("%s <b>EARLY GEM DETECTED</b>\n", convictionEmoji(alert.Conviction)))
	sb.WriteString(fmt.Sprintf("<b>%s</b> (%s)\n", esc(c.Name), esc(c.Symbol)))
	sb.WriteString(fmt.Sprintf("Score: <b>%.1f</b> | Conviction: <b>%s</b>\n", alert.FinalScore, alert.Conviction))
	sb.WriteString(fmt.Sprintf("Source: %s\n\n", c.Source))

	// ─── Core metrics ────────────────────────────────────────────────
	sb.WriteString("<b>Market</b>\n")
	sb.WriteString(fmt.Sprintf("Price: $%s | MCap: $%s\n", fmtNum(c.PriceUSD), fmtNum(c.MarketCapUSD)))
	sb.WriteString(fmt.Sprintf("Liquidity: $%s | Vol 24h: $%s\n", fmtNum(c.LiquidityUSD), fmtNum(c.Volume24h)))
	if c.HolderCount > 0 {
		sb.WriteString(fmt.Sprintf("Holders: %d | Traders 24h: %d\n", c.HolderCount, c.UniqueTraders24))
	}
	if c.IsFreshGraduate {
		sb.WriteString(fmt.Sprintf("🎓 Fresh graduate (%.0f min ago)\n", c.HoursSinceGraduation*60))
	} else if c.BondingCurveProgressPct > 0 && c.GraduatedAt == nil {
		sb.WriteString(fmt.Sprintf("📈 Bonding curve: %.1f%%\n", c.BondingCurveProgressPct))
		if cs := c.CurveStage; cs != nil {
			sb.WriteString(fmt.Sprintf("%s | %s potential | %s risk | %s\n",
				esc(cs.Stage), esc(cs.ProfitPotential), esc(cs.RiskLevel), esc(cs.Strategy)))
		}
	}
	sb.WriteString("\n")

	// ─── Security & risk ─────────────────────────────────────────────
	sb.WriteString("<b>Risk</b>\n")
	sb.WriteString(fmt.Sprintf("Level: %s | Confidence: %s\n", b.RiskAssessment.RiskLevel, b.RiskAssessment.ConfidenceLevel))
	for _, rf := range b.RiskAssessment.RiskFactors {
		sb.WriteString(fmt.Sprintf("  • %s\n", esc(rf)))
	}
	sb.WriteString("\n")

	// ─── Scoring breakdown ───────────────────────────────────────────
	if b.ScoringMode == "enhanced_ohlcv" {
		sb.WriteString("<b>Breakdown</b>\n")
		sb.WriteString(fmt.Sprintf("Platform: %.1f/%.0f | Momentum: %.1f/%.0f\n",
			b.EarlyPlatformAnalysis.Score, b.EarlyPlatformAnalysis.MaxScore,
			b.MomentumAnalysis.Score, b.MomentumAnalysis.MaxScore))
		sb.WriteString(fmt.Sprintf("Safety: %.1f/%.0f | Cross-platform: %.1f/%.0f\n",
			b.SafetyValidation.Score, b.SafetyValidation.MaxScore,
			b.CrossPlatformBonus.Score, b.CrossPlatformBonus.MaxScore))
		sb.WriteString(fmt.Sprintf("Linear %.1f → corrected %.1f (%+.1f)\n",
			b.ScoreComparison.LinearScoreFlawed,
			b.ScoreComparison.InteractionScoreCorrected,
			b.ScoreComparison.MathematicalImprovement))
		if b.MetadataAnalysis != nil {
			sb.WriteString(fmt.Sprintf("Metadata grade: %s\n", b.MetadataAnalysis.Grade))
		}
		sb.WriteString("\n")
	}

	// ─── Interaction findings ────────────────────────────────────────
	writeInteractions(&sb, "⚠️ Dangers", b.Interactions.Dangers)
	writeInteractions(&sb, "🚀 Amplifiers", b.Interactions.Amplifications)
	writeInteractions(&sb, "❓ Contradictions", b.Interactions.Contradictions)

	// ─── Actions ─────────────────────────────────────────────────────
	sb.WriteString(fmt.Sprintf("\n<a href=\"https://birdeye.so/token/%s\">Birdeye</a> | ", c.Address))
	sb.WriteString(fmt.Sprintf("<a href=\"https://dexscreener.com/solana/%s\">DexScreener</a>\n", c.Address))
	sb.WriteString(fmt.Sprintf("<code>%s</code>", c.Address))

	return sb.String()
}

func writeInteractions(sb *strings.Builder, title string, items []models.Interaction) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n", title))
	for _, it := range items {
		sb.WriteString(fmt.Sprintf("  %+.0f%% %s\n", it.ImpactPct, esc(it.Explanation)))
	}
}

func convictionEmoji(c models.ConvictionLevel) string {
	switch c {
	case models.ConvictionVeryHigh:
		return "💎"
	case models.ConvictionHigh:
		return "🔥"
	case models.ConvictionModerate:
		return "⭐"
	default:
		return "🔍"
	}
}

func esc(s string) string { return html.EscapeString(s) }

// fmtNum renders a value with k/M suffixes the way traders read them.
func fmtNum(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.2fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case v >= 1:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%.6f", v)
	}
}

// stripTags is the plain-text fallback renderer.
func stripTags(s string) string {
	replacer := strings.NewReplacer(
		"<b>", "", "</b>", "",
		"<code>", "", "</code>", "",
		"<i>", "", "</i>", "",
	)
	out := replacer.Replace(s)
	// Links: keep the URL, drop the markup
	for {
		start := strings.Index(out, "<a href=\"")
		if start < 0 {
			break
		}
		end := strings.Index(out[start:], "</a>")
		if end < 0 {
			break
		}
		urlStart := start + len("<a href=\"")
		urlEnd := strings.Index(out[urlStart:], "\"")
		url := out[urlStart : urlStart+urlEnd]
		out = out[:start] + url + out[start+end+len("</a>"):]
	}
	return out
}
