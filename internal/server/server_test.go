package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tonkeeper/tongo/ton"

	"github.com/suspectuso/tariff-ledger/internal/catalog"
	"github.com/suspectuso/tariff-ledger/internal/ledger"
	"github.com/suspectuso/tariff-ledger/internal/storage"
	"github.com/suspectuso/tariff-ledger/internal/token"
)

var (
	ownerAccount  = ton.MustParseAccountID("0:1000000000000000000000000000000000000000000000000000000000000001")
	ledgerAccount = ton.MustParseAccountID("0:2000000000000000000000000000000000000000000000000000000000000002")
	tokenAccount  = ton.MustParseAccountID("0:3000000000000000000000000000000000000000000000000000000000000003")
	clientAccount = ton.MustParseAccountID("0:4000000000000000000000000000000000000000000000000000000000000004")
)

func newTestServer(t *testing.T) (*httptest.Server, *token.Memory) {
	store, err := storage.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := token.NewMemory()
	l, err := ledger.New(catalog.Default(), mem.Bind(ledgerAccount), store, ledger.Identity{
		Owner:          ownerAccount,
		Self:           ledgerAccount,
		Token:          tokenAccount,
		OwnerPublicKey: []byte{0x02, 0xab},
	}, log)
	require.NoError(t, err)

	srv := httptest.NewServer(New(l, log).Handler())
	t.Cleanup(srv.Close)
	return srv, mem
}

func getJSON(t *testing.T, url string, out interface{}) int {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postPayment(t *testing.T, srv *httptest.Server, req PaymentRequest, out interface{}) int {
	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/payments", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "OK", string(body))
}

func TestTariffs(t *testing.T) {
	srv, _ := newTestServer(t)

	var tariffs []Tariff
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/tariffs", &tariffs))
	require.Len(t, tariffs, 13)

	var tariff Tariff
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/tariffs/2", &tariff))
	require.Equal(t, Tariff{ID: 2, Price: 1040 * catalog.UnitsPerUSDT, TradingPairs: 1, DurationWeeks: 4}, tariff)

	var errResp ErrorResponse
	require.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/tariffs/14", &errResp))
	require.Contains(t, errResp.Error, "invalid tariff")
	require.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/tariffs/abc", nil))
}

func TestLedgerInfo(t *testing.T) {
	srv, mem := newTestServer(t)
	mem.Mint(ledgerAccount, 42)

	var info LedgerInfo
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/ledger", &info))
	require.Equal(t, ownerAccount.ToRaw(), info.Owner)
	require.Equal(t, ledgerAccount.ToRaw(), info.Address)
	require.Equal(t, tokenAccount.ToRaw(), info.Token)
	require.Equal(t, "02ab", info.OwnerPublicKey)
	require.Equal(t, uint64(42), info.Balance)
}

func TestPaymentFlow(t *testing.T) {
	srv, mem := newTestServer(t)
	mem.Mint(clientAccount, 10000*catalog.UnitsPerUSDT)

	req := PaymentRequest{Client: clientAccount.ToRaw(), TariffID: 1, EncryptedData: []byte("testEncryptedData")}

	var errResp ErrorResponse
	require.Equal(t, http.StatusPaymentRequired, postPayment(t, srv, req, &errResp))
	require.Contains(t, errResp.Error, "allowance")

	mem.Approve(clientAccount, ledgerAccount, 552*catalog.UnitsPerUSDT)

	var rec PaymentRecord
	require.Equal(t, http.StatusCreated, postPayment(t, srv, req, &rec))
	require.Equal(t, 0, rec.Index)
	require.Equal(t, 1, rec.TariffID)
	require.Equal(t, uint64(552*catalog.UnitsPerUSDT), rec.Amount)
	require.True(t, rec.Paid)

	var count PaymentCount
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/clients/"+clientAccount.ToRaw()+"/payments", &count))
	require.Equal(t, 1, count.Count)

	var stored PaymentRecord
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/clients/"+clientAccount.ToRaw()+"/payments/0", &stored))
	require.Equal(t, []byte("testEncryptedData"), stored.EncryptedData)

	require.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/clients/"+clientAccount.ToRaw()+"/payments/1", nil))
	require.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/clients/nope/payments", nil))
}

func TestPaymentErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		req    PaymentRequest
		status int
	}{
		{"invalid tariff", PaymentRequest{Client: clientAccount.ToRaw(), TariffID: 99}, http.StatusNotFound},
		{"payload too large", PaymentRequest{Client: clientAccount.ToRaw(), TariffID: 1, EncryptedData: bytes.Repeat([]byte("a"), ledger.MaxPayloadSize+1)}, http.StatusRequestEntityTooLarge},
		{"bad client", PaymentRequest{Client: "nope", TariffID: 1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.status, postPayment(t, srv, tt.req, nil))
		})
	}

	// ledger order holds inside the body limit: tariff before payload size
	req := PaymentRequest{Client: clientAccount.ToRaw(), TariffID: 99, EncryptedData: bytes.Repeat([]byte("a"), ledger.MaxPayloadSize+1)}
	require.Equal(t, http.StatusNotFound, postPayment(t, srv, req, nil))

	// the transport limit is not a ledger error
	big := `{"client":"` + clientAccount.ToRaw() + `","tariff_id":99,"encrypted_data":"` + strings.Repeat("A", maxBodySize) + `"}`
	var errResp ErrorResponse
	resp, err := http.Post(srv.URL+"/payments", "application/json", strings.NewReader(big))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	resp.Body.Close()
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	require.Equal(t, "request body too large", errResp.Error)

	resp, err = http.Post(srv.URL+"/payments", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusBadGateway, statusFor(ledger.ErrTransferFailed))
	require.Equal(t, http.StatusForbidden, statusFor(ledger.ErrUnauthorized))
	require.Equal(t, http.StatusConflict, statusFor(ledger.ErrInsufficientContractBalance))
	require.Equal(t, http.StatusBadRequest, statusFor(ledger.ErrZeroAmount))
	require.Equal(t, http.StatusPaymentRequired, statusFor(ledger.ErrInsufficientBalance))
	require.Equal(t, http.StatusInternalServerError, statusFor(io.EOF))
	require.Equal(t, http.StatusBadRequest, statusFor(badRequest("bad")))
}
