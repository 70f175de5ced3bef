package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/tonkeeper/tongo/ton"

	"github.com/suspectuso/tariff-ledger/internal/catalog"
	"github.com/suspectuso/tariff-ledger/internal/ledger"
	"github.com/suspectuso/tariff-ledger/internal/token"
)

// Sender delivers a message to a Telegram chat
type Sender interface {
	SendNotification(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) error
}

// TariffLookup resolves tariff ids for message formatting
type TariffLookup interface {
	Get(id int) (catalog.Tariff, error)
}

// Notifier turns ledger events into owner notifications.
// Events are queued and delivered by Start, so the ledger never waits on Telegram.
type Notifier struct {
	tariffs TariffLookup
	chatID  int64
	log     *slog.Logger

	queue chan string
}

// New creates a new Notifier delivering to chatID.
// With chatID 0 events are ignored.
func New(tariffs TariffLookup, chatID int64, queueSize int, log *slog.Logger) *Notifier {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Notifier{
		tariffs: tariffs,
		chatID:  chatID,
		log:     log,
		queue:   make(chan string, queueSize),
	}
}

// HandlePayment queues a notification about a received payment
func (n *Notifier) HandlePayment(_ context.Context, ev ledger.PaymentReceived) {
	n.enqueue(n.formatPaymentMessage(ev))
}

// HandleWithdrawal queues a notification about a withdrawal
func (n *Notifier) HandleWithdrawal(_ context.Context, ev ledger.Withdrawn) {
	n.enqueue(n.formatWithdrawalMessage(ev))
}

func (n *Notifier) enqueue(text string) {
	if n.chatID == 0 {
		return
	}

	select {
	case n.queue <- text:
	default:
		n.log.Warn("notification queue full, dropping message")
	}
}

// Start delivers queued notifications through sender until ctx is cancelled
func (n *Notifier) Start(ctx context.Context, sender Sender) {
	if n.chatID == 0 {
		n.log.Info("notifier disabled: OWNER_CHAT_ID not set")
		return
	}

	n.log.Info("notifier started", "chat_id", n.chatID)

	for {
		select {
		case <-ctx.Done():
			return
		case text := <-n.queue:
			if err := sender.SendNotification(ctx, n.chatID, text, nil); err != nil {
				n.log.Error("send notification", "error", err)
			}
		}
	}
}

func (n *Notifier) formatPaymentMessage(ev ledger.PaymentReceived) string {
	lines := []string{
		"<b>💰 Новая оплата</b>",
		"",
		fmt.Sprintf("+%s", token.FormatUSDT(ev.Amount)),
		"",
		fmt.Sprintf("Клиент: %s", accountLink(ev.Client)),
	}

	if t, err := n.tariffs.Get(ev.TariffID); err == nil {
		lines = append(lines, fmt.Sprintf("Тариф #%d: %d пар, %d нед.", t.ID, t.TradingPairs, t.DurationWeeks))
	} else {
		lines = append(lines, fmt.Sprintf("Тариф #%d", ev.TariffID))
	}

	lines = append(lines, fmt.Sprintf("Данные: %d байт", len(ev.EncryptedData)))

	return strings.Join(lines, "\n")
}

func (n *Notifier) formatWithdrawalMessage(ev ledger.Withdrawn) string {
	return fmt.Sprintf(
		"<b>🏦 Вывод средств</b>\n\n-%s → %s",
		token.FormatUSDT(ev.Amount), accountLink(ev.Owner),
	)
}

func accountLink(acc ton.AccountID) string {
	friendly := acc.ToHuman(true, false)
	return fmt.Sprintf("<a href='https://tonviewer.com/%s'>%s</a>", friendly, ShortAddr(friendly, 4))
}

// ShortAddr returns a shortened address for display
func ShortAddr(addr string, n int) string {
	if addr == "" {
		return "unknown"
	}
	if len(addr) < n*2+3 {
		return addr
	}
	return addr[:n] + "..." + addr[len(addr)-n:]
}
