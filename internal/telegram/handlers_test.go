package telegram

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tonkeeper/tongo/ton"

	"github.com/suspectuso/tariff-ledger/internal/catalog"
	"github.com/suspectuso/tariff-ledger/internal/ledger"
	"github.com/suspectuso/tariff-ledger/internal/storage"
)

var testClient = ton.MustParseAccountID("0:0a95e1d4ebe7860d051f8b861730dbdee1440fd11180211914e0089146580351")

func TestExtractAddress(t *testing.T) {
	acc, ok := extractAddress("look at " + testClient.ToRaw() + " please")
	require.True(t, ok)
	require.Equal(t, testClient, acc)

	acc, ok = extractAddress("https://tonviewer.com/" + testClient.ToHuman(true, false))
	require.True(t, ok)
	require.Equal(t, testClient, acc)

	_, ok = extractAddress("not an address")
	require.False(t, ok)
}

func TestFormatTariffs(t *testing.T) {
	text := formatTariffs(catalog.Default().All())
	require.Contains(t, text, "#1 — <b>552 USDT</b> · 1 пар · 2 нед.")
	require.Contains(t, text, "#13 — <b>11990 USDT</b>")
}

func TestFormatClient(t *testing.T) {
	text := formatClient(testClient, nil)
	require.Contains(t, text, "Оплат: <b>0</b>")
	require.NotContains(t, text, "Последняя")

	text = formatClient(testClient, []storage.PaymentRecord{
		{TariffID: 1, Amount: 552 * catalog.UnitsPerUSDT, Timestamp: time.Unix(0, 0)},
		{TariffID: 3, Amount: 1600 * catalog.UnitsPerUSDT, EncryptedData: []byte("abcd"), Timestamp: time.Unix(60, 0)},
	})
	require.Contains(t, text, "Оплат: <b>2</b>")
	require.Contains(t, text, "тариф #3, 1600 USDT, 1970-01-01 00:01:00")
	require.Contains(t, text, "Данные: 4 байт")
}

func TestFormatWithdrawals(t *testing.T) {
	require.Contains(t, formatWithdrawals(nil), "не было")

	var list []storage.Withdrawal
	for i := 0; i < 12; i++ {
		list = append(list, storage.Withdrawal{Amount: uint64(i+1) * catalog.UnitsPerUSDT, Timestamp: time.Unix(0, 0)})
	}
	text := formatWithdrawals(list)
	require.Contains(t, text, "1 USDT")
	require.Contains(t, text, "… и ещё 2")
}

func TestWithdrawErrorText(t *testing.T) {
	wrapped := fmt.Errorf("withdraw: %w", ledger.ErrInsufficientContractBalance)
	require.Equal(t, "❌ Недостаточно средств на контракте.", withdrawErrorText(wrapped))
	require.Equal(t, "❌ Ошибка при выводе средств.", withdrawErrorText(fmt.Errorf("boom")))
}

func TestStateManager(t *testing.T) {
	sm := NewStateManager()
	require.Nil(t, sm.Get(1))

	sm.Set(1, StateConfirmWithdraw, map[string]interface{}{"amount": uint64(5)})
	state := sm.Get(1)
	require.Equal(t, StateConfirmWithdraw, state.State)
	require.Equal(t, uint64(5), state.Data["amount"])

	sm.Set(2, StateWaitClientAddress, nil)
	require.NotNil(t, sm.Get(2).Data)

	sm.Clear(1)
	require.Nil(t, sm.Get(1))
}
