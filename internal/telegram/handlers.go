package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/tonkeeper/tongo/ton"

	"github.com/suspectuso/tariff-ledger/internal/catalog"
	"github.com/suspectuso/tariff-ledger/internal/config"
	"github.com/suspectuso/tariff-ledger/internal/ledger"
	"github.com/suspectuso/tariff-ledger/internal/storage"
	"github.com/suspectuso/tariff-ledger/internal/token"
)

var addrRegex = regexp.MustCompile(`(-?\d:[0-9A-Fa-f]{64}|[UEk0]Q[0-9A-Za-z_-]{46})`)

// Bot is the owner's control panel for the ledger
type Bot struct {
	bot    *bot.Bot
	cfg    *config.Config
	ledger *ledger.Ledger
	states *StateManager
	log    *slog.Logger
}

// New creates a new telegram bot
func New(cfg *config.Config, l *ledger.Ledger, log *slog.Logger) (*Bot, error) {
	b := &Bot{
		cfg:    cfg,
		ledger: l,
		states: NewStateManager(),
		log:    log,
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
		bot.WithCallbackQueryDataHandler("", bot.MatchTypePrefix, b.callbackHandler),
	}

	tgBot, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	b.bot = tgBot

	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, b.startHandler)
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/tariffs", bot.MatchTypeExact, b.tariffsHandler)

	return b, nil
}

// Start starts the bot polling
func (b *Bot) Start(ctx context.Context) {
	b.bot.Start(ctx)
}

// --- Handlers ---

func (b *Bot) isOwner(userID int64) bool {
	return b.cfg.OwnerChatID != 0 && userID == b.cfg.OwnerChatID
}

func (b *Bot) startHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	if !b.isOwner(update.Message.From.ID) {
		b.sendMessage(ctx, update.Message.Chat.ID, "⛔️ Бот доступен только владельцу.", nil)
		return
	}

	b.sendMessage(ctx, update.Message.Chat.ID, b.menuText(), MainKeyboard())
}

func (b *Bot) tariffsHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	// the catalog is public
	b.sendMessage(ctx, update.Message.Chat.ID, formatTariffs(b.ledger.Tariffs()), nil)
}

func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	userID := update.Message.From.ID
	if !b.isOwner(userID) {
		return
	}

	text := strings.TrimSpace(update.Message.Text)

	state := b.states.Get(userID)
	if state == nil {
		return
	}

	switch state.State {
	case StateWaitClientAddress:
		b.handleWaitClientAddress(ctx, update.Message, text)
	case StateWaitWithdrawAmount:
		b.handleWaitWithdrawAmount(ctx, update.Message, text)
	}
}

func (b *Bot) handleWaitClientAddress(ctx context.Context, msg *models.Message, text string) {
	client, ok := extractAddress(text)
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID, "❌ Адрес не похож на TON. Попробуй ещё раз.", nil)
		return
	}
	b.states.Clear(msg.From.ID)

	records, err := b.ledger.ClientRecords(ctx, client)
	if err != nil {
		b.log.Error("list client records", "error", err)
		b.sendMessage(ctx, msg.Chat.ID, "❌ Не удалось получить историю клиента.", MainKeyboard())
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, formatClient(client, records), ClientKeyboard(client))
}

func (b *Bot) handleWaitWithdrawAmount(ctx context.Context, msg *models.Message, text string) {
	amount, err := token.ParseUSDT(strings.Replace(text, ",", ".", 1))
	if err != nil || amount == 0 {
		b.sendMessage(ctx, msg.Chat.ID,
			"❌ Введи положительную сумму в USDT. Например: <code>552</code> или <code>10.5</code>",
			nil,
		)
		return
	}

	b.askWithdrawConfirmation(ctx, msg.Chat.ID, msg.From.ID, amount)
}

func (b *Bot) askWithdrawConfirmation(ctx context.Context, chatID, userID int64, amount uint64) {
	b.states.Set(userID, StateConfirmWithdraw, map[string]interface{}{
		"amount": amount,
	})

	b.sendMessage(ctx, chatID,
		fmt.Sprintf("🏦 Вывести <b>%s</b> на адрес владельца?", token.FormatUSDT(amount)),
		ConfirmWithdrawKeyboard(),
	)
}

func (b *Bot) callbackHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}

	cb := update.CallbackQuery
	userID := cb.From.ID
	data := cb.Data

	// Answer callback to remove loading state
	tgBot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cb.ID,
	})

	if !b.isOwner(userID) {
		b.log.Warn("callback from non-owner", "user_id", userID)
		return
	}

	switch data {
	case "back":
		b.states.Clear(userID)
		b.editMessage(ctx, cb.Message, b.menuText(), MainKeyboard())
	case "tariffs":
		b.editMessage(ctx, cb.Message, formatTariffs(b.ledger.Tariffs()), BackKeyboard())
	case "balance":
		b.showBalance(ctx, cb)
	case "history":
		b.showWithdrawals(ctx, cb)
	case "client":
		b.states.Set(userID, StateWaitClientAddress, nil)
		b.editMessage(ctx, cb.Message, "🔹 Отправь адрес клиента:", BackKeyboard())
	case "withdraw":
		b.handleWithdraw(ctx, cb)
	case "withdraw_all":
		b.handleWithdrawAll(ctx, cb)
	case "withdraw_confirm":
		b.handleWithdrawConfirm(ctx, cb)
	default:
		b.log.Warn("unknown callback", "data", data, "user_id", userID)
	}
}

func (b *Bot) menuText() string {
	return fmt.Sprintf(
		"<b>Tariff Ledger</b> 🚀\n\n"+
			"Адрес: <code>%s</code>\n"+
			"Тарифов: <b>%d</b>\n\n"+
			"Выбери действие 👇",
		b.ledger.Address().ToHuman(true, false), len(b.ledger.Tariffs()),
	)
}

func (b *Bot) showBalance(ctx context.Context, cb *models.CallbackQuery) {
	balance, err := b.ledger.CustodialBalance(ctx)
	if err != nil {
		b.log.Error("custodial balance", "error", err)
		b.editMessage(ctx, cb.Message, "❌ Не удалось получить баланс.", BackKeyboard())
		return
	}

	b.editMessage(ctx, cb.Message,
		fmt.Sprintf("💼 Баланс контракта: <b>%s</b>", token.FormatUSDT(balance)),
		BackKeyboard(),
	)
}

func (b *Bot) showWithdrawals(ctx context.Context, cb *models.CallbackQuery) {
	withdrawals, err := b.ledger.Withdrawals(ctx)
	if err != nil {
		b.log.Error("list withdrawals", "error", err)
		return
	}

	b.editMessage(ctx, cb.Message, formatWithdrawals(withdrawals), BackKeyboard())
}

func (b *Bot) handleWithdraw(ctx context.Context, cb *models.CallbackQuery) {
	balance, err := b.ledger.CustodialBalance(ctx)
	if err != nil {
		b.log.Error("custodial balance", "error", err)
		b.editMessage(ctx, cb.Message, "❌ Не удалось получить баланс.", BackKeyboard())
		return
	}

	b.states.Set(cb.From.ID, StateWaitWithdrawAmount, nil)
	b.editMessage(ctx, cb.Message,
		fmt.Sprintf("💼 Доступно: <b>%s</b>\n\n🔢 Введи сумму для вывода в USDT:", token.FormatUSDT(balance)),
		WithdrawKeyboard(),
	)
}

func (b *Bot) handleWithdrawAll(ctx context.Context, cb *models.CallbackQuery) {
	balance, err := b.ledger.CustodialBalance(ctx)
	if err != nil {
		b.log.Error("custodial balance", "error", err)
		return
	}

	if cb.Message.Message == nil {
		return
	}
	b.askWithdrawConfirmation(ctx, cb.Message.Message.Chat.ID, cb.From.ID, balance)
}

func (b *Bot) handleWithdrawConfirm(ctx context.Context, cb *models.CallbackQuery) {
	state := b.states.Get(cb.From.ID)
	if state == nil || state.State != StateConfirmWithdraw {
		b.editMessage(ctx, cb.Message, b.menuText(), MainKeyboard())
		return
	}
	amount := state.Data["amount"].(uint64)
	b.states.Clear(cb.From.ID)

	// the bot acts with the owner's authority
	w, err := b.ledger.WithdrawUSDT(ctx, b.ledger.Owner(), amount)
	if err != nil {
		b.log.Error("withdraw", "error", err, "amount", amount)
		b.editMessage(ctx, cb.Message, withdrawErrorText(err), MainKeyboard())
		return
	}

	b.editMessage(ctx, cb.Message,
		fmt.Sprintf("✅ Выведено <b>%s</b>", token.FormatUSDT(w.Amount)),
		MainKeyboard(),
	)
}

// --- Helpers ---

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := b.bot.SendMessage(ctx, params)
	if err != nil {
		b.log.Error("send message", "error", err)
	}
}

func (b *Bot) editMessage(ctx context.Context, msg models.MaybeInaccessibleMessage, text string, keyboard *models.InlineKeyboardMarkup) {
	if msg.Message == nil {
		return
	}

	params := &bot.EditMessageTextParams{
		ChatID:    msg.Message.Chat.ID,
		MessageID: msg.Message.ID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := b.bot.EditMessageText(ctx, params)
	if err != nil {
		b.log.Error("edit message", "error", err)
	}
}

// SendNotification sends a notification message to a chat
func (b *Bot) SendNotification(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) error {
	disablePreview := true
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &disablePreview,
		},
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := b.bot.SendMessage(ctx, params)
	return err
}

func extractAddress(text string) (ton.AccountID, bool) {
	match := addrRegex.FindString(text)
	if match == "" {
		return ton.AccountID{}, false
	}
	acc, err := ton.ParseAccountID(match)
	if err != nil {
		return ton.AccountID{}, false
	}
	return acc, true
}

func formatTariffs(tariffs []catalog.Tariff) string {
	lines := []string{"📋 <b>Тарифы</b>", ""}
	for _, t := range tariffs {
		lines = append(lines, fmt.Sprintf("#%d — <b>%s</b> · %d пар · %d нед.",
			t.ID, token.FormatUSDT(t.Price), t.TradingPairs, t.DurationWeeks))
	}
	return strings.Join(lines, "\n")
}

func formatClient(client ton.AccountID, records []storage.PaymentRecord) string {
	lines := []string{
		fmt.Sprintf("👤 <code>%s</code>", client.ToHuman(true, false)),
		"",
		fmt.Sprintf("Оплат: <b>%d</b>", len(records)),
	}

	if len(records) > 0 {
		last := records[len(records)-1]
		lines = append(lines,
			fmt.Sprintf("Последняя: тариф #%d, %s, %s",
				last.TariffID, token.FormatUSDT(last.Amount), last.Timestamp.UTC().Format(time.DateTime)),
			fmt.Sprintf("Данные: %d байт", len(last.EncryptedData)),
		)
	}

	return strings.Join(lines, "\n")
}

func formatWithdrawals(withdrawals []storage.Withdrawal) string {
	if len(withdrawals) == 0 {
		return "🧾 Выводов ещё не было."
	}

	lines := []string{"🧾 <b>Выводы</b>", ""}
	for i, w := range withdrawals {
		if i == 10 {
			lines = append(lines, fmt.Sprintf("… и ещё %d", len(withdrawals)-i))
			break
		}
		lines = append(lines, fmt.Sprintf("%s — %s", w.Timestamp.UTC().Format(time.DateTime), token.FormatUSDT(w.Amount)))
	}
	return strings.Join(lines, "\n")
}

func withdrawErrorText(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientContractBalance):
		return "❌ Недостаточно средств на контракте."
	case errors.Is(err, ledger.ErrZeroAmount):
		return "❌ Сумма должна быть больше нуля."
	case errors.Is(err, ledger.ErrTransferFailed):
		return "❌ Перевод не прошёл. Попробуй позже."
	case errors.Is(err, ledger.ErrUnauthorized):
		return "⛔️ Вывод доступен только владельцу."
	default:
		return "❌ Ошибка при выводе средств."
	}
}
