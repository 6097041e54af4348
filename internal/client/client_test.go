package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tableside/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(ts.URL)
}

func writeBody(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	io.WriteString(w, body)
}

func TestEnvelope_ErrorStatusWithHTTP200(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"status":"error","message":"Order already confirmed"}`)
	})

	_, err := c.UpdateOrderStatus(context.Background(), 3, models.OrderStatusConfirmed)

	require.Error(t, err)
	assert.True(t, IsKind(err, KindBackend))
	assert.Equal(t, "Order already confirmed", err.Error())
}

func TestEnvelope_SuccessStatusWithHTTP500(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusInternalServerError, `{"status":"success","data":[{"id":1,"name":"Table 1","seats":2}]}`)
	})

	tables, err := c.ListTables(context.Background())

	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "Table 1", tables[0].Name)
}

func TestEnvelope_ErrorWithoutMessage(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusBadGateway, `{"status":"error"}`)
	})

	err := c.Health(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindBackend, apiErr.Kind)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Request failed (HTTP 502)", apiErr.Message)
}

func TestEnvelope_Undecodable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "html", body: "<html>Bad Gateway</html>"},
		{name: "no status", body: `{"data":[]}`},
		{name: "wrong data shape", body: `{"status":"success","data":{"id":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := serve(t, func(w http.ResponseWriter, r *http.Request) {
				writeBody(w, http.StatusOK, tt.body)
			})

			_, err := c.ListMenuItems(context.Background())
			assert.True(t, IsKind(err, KindProtocol), "got %v", err)
		})
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	c := New(ts.URL, WithTimeout(50*time.Millisecond))
	_, err := c.ListCategories(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindTransport, apiErr.Kind)
	assert.Equal(t, "The server did not respond in time", apiErr.Message)
}

func TestConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(url).ListTables(context.Background())

	assert.True(t, IsKind(err, KindTransport))
	assert.Equal(t, "Could not reach the server", err.Error())
}

func TestAddPayment_SendsKeyTokenAndBody(t *testing.T) {
	var got models.PaymentRequest
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments/add", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get(IdempotencyHeader))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeBody(w, http.StatusCreated, `{"status":"success","message":"Payment recorded","data":{"payment_id":5,"order_id":7,"payment_method":"bank_transfer","amount_paid":"6000","payment_status":"partial"}}`)
	})
	c.token = "tok"

	payment, err := c.AddPayment(context.Background(), models.PaymentRequest{
		OrderID:       7,
		Method:        models.PaymentMethodBankTransfer,
		AmountPaid:    6000,
		Status:        models.PaymentStatusPartial,
		PartialReason: "Rest tomorrow",
	}, "key-123")

	require.NoError(t, err)
	assert.Equal(t, uint(5), payment.ID)
	assert.Equal(t, models.Amount(6000), payment.AmountPaid)
	assert.Equal(t, models.PaymentMethodBankTransfer, got.Method)
	assert.Equal(t, models.PaymentStatusPartial, got.Status)
	assert.Equal(t, "Rest tomorrow", got.PartialReason)
}

func TestListOrders_StatusQuery(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		writeBody(w, http.StatusOK, `{"status":"success","data":[{"order_id":1,"order_code":"ORD-1","table_id":2,"items":[{"name":"Primus","qty":2,"price":1500}],"status":"pending"}]}`)
	})

	orders, err := c.ListOrders(context.Background(), models.OrderStatusPending)

	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD-1", orders[0].Code)
	total, err := orders[0].ComputeTotal()
	require.NoError(t, err)
	assert.Equal(t, models.Amount(3000), total)
}

func TestDo(t *testing.T) {
	ok := Do(context.Background(), func(ctx context.Context) (int, error) { return 42, nil })
	assert.True(t, ok.OK())
	assert.Equal(t, 42, ok.Data)
	assert.Empty(t, ok.Message())

	failed := Do(context.Background(), func(ctx context.Context) ([]models.Table, error) {
		return nil, &APIError{Kind: KindBackend, Message: "Table not found"}
	})
	assert.False(t, failed.OK())
	assert.Equal(t, "Table not found", failed.Message())
}

func TestSubscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(models.Event{Type: models.EventCatalogChanged, At: time.Now()})
		conn.WriteJSON(models.Event{Type: models.EventOrderConfirmed, OrderID: 4, At: time.Now()})
		conn.ReadMessage()
	})

	ctx, cancel := context.WithCancel(context.Background())
	events, err := c.Subscribe(ctx)
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, models.EventCatalogChanged, first.Type)
	second := <-events
	assert.Equal(t, uint(4), second.OrderID)

	cancel()
	select {
	case _, open := <-events:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed after cancel")
	}
}
