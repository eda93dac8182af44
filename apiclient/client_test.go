package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-giftcard-verifier/models"

	"github.com/stretchr/testify/require"
)

func TestRequestVerification_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, VerifyRequestPath, r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]string{"brand": "Visa", "code": "VSA-1111", "email": "a@b.com"}, body)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(models.APIResponse{Ok: true})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL + "/")
	err := client.RequestVerification(context.Background(), models.VerifyRequest{Brand: "Visa", Code: "VSA-1111", Email: "a@b.com"})
	require.NoError(t, err)
}

func TestUploadScan_SendsMode(t *testing.T) {
	var got models.ScanUploadRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, ScanUploadPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	err := client.UploadScan(context.Background(), models.ScanUploadRequest{
		Brand: "Amazon", Email: "a@b.com", Front: "data:image/jpeg;base64,AA", Back: "data:image/jpeg;base64,BB", Mode: "balance",
	})
	require.NoError(t, err)
	require.Equal(t, "balance", got.Mode)
	require.Equal(t, "data:image/jpeg;base64,BB", got.Back)
}

func TestRemoteErrorCarriesMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"json message", http.StatusBadGateway, `{"ok":false,"message":"Email send failed: SMTPException"}`, "Email send failed: SMTPException"},
		{"no message field", http.StatusBadRequest, `{"ok":false}`, ""},
		{"not json", http.StatusInternalServerError, "error:internal", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := NewHTTPClient(server.URL).RequestVerification(context.Background(), models.VerifyRequest{Brand: "b", Code: "c", Email: "e"})

			var rerr *RemoteError
			require.True(t, errors.As(err, &rerr))
			require.Equal(t, tt.status, rerr.StatusCode)
			require.Equal(t, tt.message, rerr.Message)
			require.False(t, errors.Is(err, ErrNetwork))
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := NewHTTPClient(url).UploadScan(context.Background(), models.ScanUploadRequest{})
	require.ErrorIs(t, err, ErrNetwork)
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != HealthPath {
			t.Errorf("Expected path %s, got %s", HealthPath, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer server.Close()

	require.NoError(t, NewHTTPClient(server.URL).HealthCheck(context.Background()))
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient("http://localhost:5000/")
	require.Equal(t, "http://localhost:5000", client.baseURL)
	require.NotNil(t, client.httpClient)
}

func TestCheckBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, CheckPath, r.URL.Path)
		var req models.CheckRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		switch req.CardType {
		case "DemoCard":
			_ = json.NewEncoder(w).Encode(models.CheckResponse{Ok: true, Status: "valid", Balance: 6598, Currency: "NGN"})
		case "Slow":
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(models.CheckResponse{Status: "rate_limited", Message: "Rate limit: max 10 checks per 30s."})
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"ok":false,"message":"Internal server error."}`))
		}
	}))
	defer server.Close()
	client := NewHTTPClient(server.URL)

	out, err := client.CheckBalance(context.Background(), "DemoCard", "DEMO-1234-5678-9010")
	require.NoError(t, err)
	require.Equal(t, 6598, out.Balance)

	out, err = client.CheckBalance(context.Background(), "Slow", "x")
	require.NoError(t, err)
	require.Equal(t, "rate_limited", out.Status)

	_, err = client.CheckBalance(context.Background(), "Other", "x")
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, "Internal server error.", rerr.Message)
}
