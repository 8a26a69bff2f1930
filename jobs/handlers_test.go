package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-procure/meridian-procure/internal/pricelists"
	"github.com/meridian-procure/meridian-procure/internal/procurement"
)

type fakeRequests struct {
	detail procurement.RequestDetail
	err    error
	calls  int
}

func (f *fakeRequests) GetRequest(ctx context.Context, id int64) (procurement.RequestDetail, error) {
	f.calls++
	return f.detail, f.err
}

type fakeWarmer struct {
	warmed []int64
}

func (f *fakeWarmer) Get(ctx context.Context, id int64) (pricelists.Pricelist, []pricelists.Line, error) {
	f.warmed = append(f.warmed, id)
	return pricelists.Pricelist{ID: id}, nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReindexWarmsReferencedPricelists(t *testing.T) {
	plA := int64(7)
	plB := int64(9)
	requests := &fakeRequests{detail: procurement.RequestDetail{
		Request: procurement.PurchaseRequest{ID: 1, Number: "PR-001"},
		Items: []procurement.PurchaseRequestItem{
			{ID: 1, PricelistID: &plA},
			{ID: 2, PricelistID: &plA},
			{ID: 3, PricelistID: &plB},
			{ID: 4},
		},
	}}
	warmer := &fakeWarmer{}
	handler := NewReindexHandler(requests, warmer, discardLogger())

	task, err := NewRequestReindexTask(1)
	require.NoError(t, err)
	require.NoError(t, handler.Handle(context.Background(), task))
	require.Equal(t, 1, requests.calls)
	require.ElementsMatch(t, []int64{7, 9}, warmer.warmed)
}

func TestReindexPropagatesLoadError(t *testing.T) {
	requests := &fakeRequests{err: errors.New("boom")}
	handler := NewReindexHandler(requests, &fakeWarmer{}, discardLogger())

	task, err := NewRequestReindexTask(42)
	require.NoError(t, err)
	require.Error(t, handler.Handle(context.Background(), task))
}

func TestMailHandlerSends(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	handler := NewMailHandler(MailConfig{Host: "127.0.0.1", Port: 1025, From: "no-reply@meridian.local"}, discardLogger())
	handler.send = func(addr, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo = addr, from, to
		return nil
	}

	task, err := NewSendMailTask(SendMailPayload{To: "buyer@example.com", Subject: "Approved", Body: "PR-001 approved"})
	require.NoError(t, err)
	require.NoError(t, handler.Handle(context.Background(), task))
	require.Equal(t, "127.0.0.1:1025", gotAddr)
	require.Equal(t, "no-reply@meridian.local", gotFrom)
	require.Equal(t, []string{"buyer@example.com"}, gotTo)
}

func TestMailHandlerSkipsEmptyRecipient(t *testing.T) {
	handler := NewMailHandler(MailConfig{Host: "127.0.0.1", Port: 1025}, discardLogger())
	handler.send = func(addr, from string, to []string, msg []byte) error {
		t.Fatal("send should not be called")
		return nil
	}

	task, err := NewSendMailTask(SendMailPayload{Subject: "no recipient"})
	require.NoError(t, err)
	require.Error(t, handler.Handle(context.Background(), task))
}
