package notify_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/glowmart/backend-glow/internal/common"
	"github.com/glowmart/backend-glow/internal/lock"
	"github.com/glowmart/backend-glow/internal/notify"
	"github.com/glowmart/backend-glow/internal/tasks"
)

func TestWebhookSignatureVerifies(t *testing.T) {
	var gotBody []byte
	var gotSig, gotTS, gotEvent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature")
		gotTS = r.Header.Get("X-Timestamp")
		gotEvent = r.Header.Get("X-Event-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := notify.NewWebhookClient(server.URL, "shhh", time.Second)
	require.NoError(t, err)

	err = client.Deliver(context.Background(), "order:created", "evt-1", map[string]string{"orderId": "o-1"})
	require.NoError(t, err)

	ts, err := strconv.ParseInt(gotTS, 10, 64)
	require.NoError(t, err)
	require.Equal(t, "evt-1", gotEvent)

	mac := hmac.New(sha256.New, []byte("shhh"))
	mac.Write([]byte(gotTS))
	mac.Write([]byte("."))
	mac.Write([]byte("evt-1"))
	mac.Write([]byte("."))
	mac.Write(gotBody)
	require.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSig)
	require.Equal(t, notify.ComputeSignature("shhh", ts, "evt-1", gotBody), gotSig)
}

func TestWebhookRejectedStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := notify.NewWebhookClient(server.URL, "shhh", time.Second)
	require.NoError(t, err)

	err = client.Deliver(context.Background(), "order:created", "evt-2", nil)
	require.ErrorIs(t, err, notify.ErrWebhookRejected)
}

func TestWebhookURLValidation(t *testing.T) {
	_, err := notify.NewWebhookClient("ftp://example.com/hook", "s", time.Second)
	require.Error(t, err)

	_, err = notify.NewWebhookClient("http://example.com/hook", "s", time.Second)
	require.Error(t, err)

	_, err = notify.NewWebhookClient("http://localhost:9000/hook", "s", time.Second)
	require.NoError(t, err)
}

func TestHandleOrderCreatedSendsEmailAndWebhook(t *testing.T) {
	received := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := notify.NewWebhookClient(server.URL, "shhh", time.Second)
	require.NoError(t, err)

	outbox := &common.MemoryEmail{}
	worker := &notify.Worker{
		Webhook:  client,
		Email:    notify.EmailNotifier{Mail: outbox, Enabled: true},
		Currency: "BDT",
	}

	task, err := tasks.NewOrderCreated(tasks.OrderCreatedPayload{
		OrderID: "o-1", UserID: "u-1", Email: "buyer@example.com", Total: "220.00",
	})
	require.NoError(t, err)

	require.NoError(t, worker.HandleOrderCreated(context.Background(), task))
	require.Equal(t, 1, received)
	require.Len(t, outbox.Outbox, 1)
	require.Equal(t, "buyer@example.com", outbox.Outbox[0].To)
	require.Contains(t, outbox.Outbox[0].HTML, "220.00")
}

func TestHandleLowStockAlertEmailsOps(t *testing.T) {
	mini := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	defer rdb.Close()

	outbox := &common.MemoryEmail{}
	worker := &notify.Worker{
		Email:    notify.EmailNotifier{Mail: outbox, Enabled: true},
		OpsEmail: "ops@glowmart.example",
		Locker:   lock.Locker{R: rdb},
	}

	task, err := tasks.NewLowStockAlert(tasks.LowStockPayload{
		ProductID: "p-1", Title: "Rose Serum", Stock: 2, Threshold: 5, Status: "active",
	})
	require.NoError(t, err)

	require.NoError(t, worker.HandleLowStockAlert(context.Background(), task))
	require.Len(t, outbox.Outbox, 1)
	require.Contains(t, outbox.Outbox[0].Subject, "Rose Serum")
}

func TestHandleOrderCreatedBadPayloadSkipsRetry(t *testing.T) {
	worker := &notify.Worker{}
	task := asynq.NewTask(tasks.TypeOrderCreated, []byte("{not json"))
	err := worker.HandleOrderCreated(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
