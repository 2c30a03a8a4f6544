package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
	"github.com/ebosacco/ussd-gateway/pkg/ports"
)

func testApp() AppIdentity {
	return AppIdentity{
		Name:     "EBOSACCO",
		Version:  "2.0.0",
		Codebase: "EBOSACCOUSSD",
		BankID:   "057",
		Country:  "UGANDA",
	}
}

func testPin(t *testing.T) *PinCipher {
	t.Helper()
	cipher, err := NewPinCipher("test-pin-key", "0123456789abcdef")
	require.NoError(t, err)
	return cipher
}

// fakeBackend opens each request envelope, hands the decrypted payload to
// inspect, and replies with the given wire body encrypted under the request's
// own key/iv, exactly like the real backend.
func fakeBackend(t *testing.T, reply string, inspect func(payload map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Len(t, env.Key, 64)
		assert.Len(t, env.IV, 16)

		decrypted, err := DecryptCBC(env.Payload, env.Key, env.IV)
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(decrypted, &payload))
		if inspect != nil {
			inspect(payload)
		}

		encrypted, err := EncryptCBC([]byte(reply), env.Key, env.IV)
		require.NoError(t, err)
		w.Write([]byte(encrypted))
	}))
}

func TestCallAuthenticatePayloadShape(t *testing.T) {
	var seen map[string]any
	srv := fakeBackend(t, `{"Status":"000","Message":"SUCCESS","CustomerDetails":[{"CustomerID":"C1","FirstName":"Jane","LastName":"Doe"}]}`, func(p map[string]any) {
		seen = p
	})
	defer srv.Close()

	g := New(Endpoints{Authenticate: srv.URL}, testApp(), testPin(t))
	out, err := g.Call(context.Background(), domain.OpAuthenticate, ports.CallParams{
		Msisdn:    "256700000001",
		SessionID: "S1",
		Shortcode: "*284#",
		PIN:       "1234",
	})
	require.NoError(t, err)

	assert.True(t, out.OK())
	require.NotNil(t, out.Customer)
	assert.Equal(t, "Jane Doe", out.Customer.CustomerName)

	assert.Equal(t, "USSD", seen["TRXSOURCE"])
	assert.Equal(t, "GETCUSTOMER", seen["FORMID"])
	assert.Equal(t, "256700000001", seen["MOBILENUMBER"])
	assert.Equal(t, "EBOSACCOUSSD", seen["CODEBASE"])
	assert.Len(t, seen["UNIQUEID"], 8)

	enc, ok := seen["ENCRYPTEDFIELDS"].(map[string]any)
	require.True(t, ok)
	pin, ok := enc["PIN"].(string)
	require.True(t, ok)
	assert.NotEqual(t, "1234", pin, "pin must never travel in clear")
}

func TestCallBalanceSerializesExplicitNulls(t *testing.T) {
	var seen map[string]any
	srv := fakeBackend(t, `{"Status":"000","ResultsData":[{"controlId":"BALANCE","controlValue":"5000"}]}`, func(p map[string]any) {
		seen = p
	})
	defer srv.Close()

	g := New(Endpoints{Bank: srv.URL}, testApp(), testPin(t))
	out, err := g.Call(context.Background(), domain.OpBalance, ports.CallParams{
		Msisdn:        "256700000001",
		SessionID:     "S1",
		Shortcode:     "*284#",
		CustomerID:    "C1",
		SourceAccount: "A1",
	})
	require.NoError(t, err)
	assert.True(t, out.OK())
	require.Len(t, out.Rows, 1)

	form, ok := seen["PAYBILL"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A1", form["BANKACCOUNTID"])
	assert.Equal(t, "BALANCE", form["MERCHANTID"])

	// Absent fields are explicit nulls on the wire, not omitted keys.
	amount, present := form["AMOUNT"]
	assert.True(t, present)
	assert.Nil(t, amount)
}

func TestCallAirtimeMapsNetworkMerchant(t *testing.T) {
	var seen map[string]any
	srv := fakeBackend(t, `{"Status":"000","TransactionID":"T1"}`, func(p map[string]any) {
		seen = p
	})
	defer srv.Close()

	g := New(Endpoints{Purchase: srv.URL}, testApp(), testPin(t))
	out, err := g.Call(context.Background(), domain.OpAirtime, ports.CallParams{
		Msisdn:      "256700000001",
		SessionID:   "S1",
		Shortcode:   "*284#",
		CustomerID:  "C1",
		PIN:         "1234",
		PhoneNumber: "256700000002",
		Amount:      "1000",
		Network:     "mtn",
	})
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Equal(t, "T1", out.TransactionID)
	assert.Equal(t, "MTNUGAIRTIME", seen["MERCHANTID"])
}

func TestCallUnknownAirtimeNetworkIsAnError(t *testing.T) {
	g := New(Endpoints{Purchase: "http://unused"}, testApp(), testPin(t))
	_, err := g.Call(context.Background(), domain.OpAirtime, ports.CallParams{Network: "vodafone"})
	assert.Error(t, err)
}

func TestCallTransportFailures(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		g := New(Endpoints{Bank: srv.URL}, testApp(), testPin(t))
		out, err := g.Call(context.Background(), domain.OpBalance, ports.CallParams{CustomerID: "C1"})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeTransportFailure, out.Status)
	})

	t.Run("undecryptable reply", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("garbage that is not an encrypted body"))
		}))
		defer srv.Close()

		g := New(Endpoints{Bank: srv.URL}, testApp(), testPin(t))
		out, err := g.Call(context.Background(), domain.OpBalance, ports.CallParams{CustomerID: "C1"})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeTransportFailure, out.Status)
	})

	t.Run("unreachable host", func(t *testing.T) {
		g := New(Endpoints{Bank: "http://127.0.0.1:1"}, testApp(), testPin(t))
		out, err := g.Call(context.Background(), domain.OpBalance, ports.CallParams{CustomerID: "C1"})
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeTransportFailure, out.Status)
	})
}

func TestCallUnknownOperation(t *testing.T) {
	g := New(Endpoints{}, testApp(), testPin(t))
	_, err := g.Call(context.Background(), domain.Operation("bogus"), ports.CallParams{})
	assert.ErrorIs(t, err, domain.ErrUnknownOperation)
}
