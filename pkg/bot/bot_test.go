package bot

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/numbergroup/aptmon/pkg/config"
	"github.com/numbergroup/aptmon/pkg/rpc"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

type fakeRPC struct {
	statuses map[string]*rpc.NodeStatus
	calls    int
}

func (f *fakeRPC) Fetch(_ context.Context, url string) (*rpc.NodeStatus, error) {
	f.calls++
	if s, ok := f.statuses[url]; ok {
		return s, nil
	}
	return nil, &rpc.FetchError{URL: url, Attempts: rpc.MaxAttempts}
}

func command(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 11,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: 99},
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func newTestHandler() (*Handler, *fakeSender, *fakeRPC) {
	conf := &config.Config{Log: logrus.New(), LocalURL: "http://local/", RemoteURL: "http://remote/"}
	sender := &fakeSender{}
	fetcher := &fakeRPC{statuses: map[string]*rpc.NodeStatus{
		"http://local/": {BlockHeight: 10, Epoch: 2, Fields: map[string]any{"block_height": "10", "epoch": "2"}},
	}}
	return NewHandler(conf, sender, fetcher), sender, fetcher
}

func TestHandle_Greeting(t *testing.T) {
	for _, cmd := range []string{"/help", "/start"} {
		h, sender, fetcher := newTestHandler()
		h.Handle(t.Context(), command(cmd))

		require.Len(t, sender.sent, 1)
		require.Equal(t, Greeting, sender.sent[0].Text)
		require.Equal(t, int64(99), sender.sent[0].ChatID)
		require.Equal(t, 11, sender.sent[0].ReplyToMessageID)
		require.Zero(t, fetcher.calls)
	}
}

func TestHandle_Status(t *testing.T) {
	h, sender, fetcher := newTestHandler()
	h.Handle(t.Context(), command("/status"))

	require.Equal(t, 1, fetcher.calls)
	require.Equal(t, "Validator Status: \nblock_height: 10\nepoch: 2", sender.sent[0].Text)
}

func TestHandle_RemoteStatusFailure(t *testing.T) {
	h, sender, _ := newTestHandler()
	h.Handle(t.Context(), command("/rstatus"))

	require.Len(t, sender.sent, 1)
	require.Contains(t, sender.sent[0].Text, "Remote Node Status: \nRPC Failure")
	require.Contains(t, sender.sent[0].Text, "http://remote/")
}

func TestHandle_FreshFetchPerCommand(t *testing.T) {
	h, _, fetcher := newTestHandler()
	h.Handle(t.Context(), command("/status"))
	h.Handle(t.Context(), command("/status"))

	require.Equal(t, 2, fetcher.calls)
}

func TestHandle_IgnoresOtherMessages(t *testing.T) {
	h, sender, _ := newTestHandler()
	h.Handle(t.Context(), command("/unknown"))
	h.Handle(t.Context(), tgbotapi.Update{Message: &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 1}}})
	h.Handle(t.Context(), tgbotapi.Update{})

	require.Empty(t, sender.sent)
}

func TestServe_ClosedChannel(t *testing.T) {
	h, sender, _ := newTestHandler()
	updates := make(chan tgbotapi.Update, 1)
	updates <- command("/help")
	close(updates)

	err := h.Serve(t.Context(), updates)
	require.ErrorIs(t, err, ErrUpdatesClosed)
	require.Len(t, sender.sent, 1)
}

func TestServe_StopsOnCancel(t *testing.T) {
	h, _, _ := newTestHandler()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	require.NoError(t, h.Serve(ctx, make(chan tgbotapi.Update)))
}

type fakeGetter struct {
	err   error
	calls []tgbotapi.UpdateConfig
}

func (f *fakeGetter) GetUpdates(c tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.calls = append(f.calls, c)
	return nil, f.err
}

func TestCheckUpdates(t *testing.T) {
	getter := &fakeGetter{}
	require.NoError(t, CheckUpdates(getter))
	require.Len(t, getter.calls, 1)
	require.Zero(t, getter.calls[0].Timeout)
}

func TestCheckUpdates_Failure(t *testing.T) {
	getter := &fakeGetter{err: errors.New("conflict: terminated by other getUpdates request")}
	require.ErrorContains(t, CheckUpdates(getter), "failed to poll telegram updates")
}
