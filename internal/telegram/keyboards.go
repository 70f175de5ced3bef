package telegram

import (
	"fmt"

	"github.com/go-telegram/bot/models"
	"github.com/tonkeeper/tongo/ton"
)

// MainKeyboard returns the owner menu keyboard
func MainKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "📋 Тарифы", CallbackData: "tariffs"},
				{Text: "💼 Баланс", CallbackData: "balance"},
			},
			{
				{Text: "🔍 Клиент", CallbackData: "client"},
				{Text: "🧾 Выводы", CallbackData: "history"},
			},
			{
				{Text: "🏦 Вывести средства", CallbackData: "withdraw"},
			},
		},
	}
}

// ClientKeyboard returns a keyboard linking to a client account
func ClientKeyboard(client ton.AccountID) *models.InlineKeyboardMarkup {
	url := fmt.Sprintf("https://tonviewer.com/%s", client.ToHuman(true, false))
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "🌐 Tonviewer", URL: url},
			},
			{
				{Text: "⬅️ Назад", CallbackData: "back"},
			},
		},
	}
}

// WithdrawKeyboard returns withdrawal options keyboard
func WithdrawKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "💯 Вывести всё", CallbackData: "withdraw_all"},
			},
			{
				{Text: "⬅️ Назад", CallbackData: "back"},
			},
		},
	}
}

// ConfirmWithdrawKeyboard asks the owner to confirm a withdrawal
func ConfirmWithdrawKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "✅ Подтвердить", CallbackData: "withdraw_confirm"},
				{Text: "❌ Отмена", CallbackData: "back"},
			},
		},
	}
}

// BackKeyboard returns a simple back button
func BackKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "⬅️ Назад", CallbackData: "back"},
			},
		},
	}
}
