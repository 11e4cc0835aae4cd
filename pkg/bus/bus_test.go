package bus_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Josephrp/creditnexus-sub000/pkg/bus"
	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

type fakeChannel struct {
	mu        sync.Mutex
	available bool
	err       error
	sent      []core.Context
}

func (f *fakeChannel) Available() bool { return f.available }

func (f *fakeChannel) Broadcast(ctx context.Context, c core.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return f.err
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func loanContext(id string) core.Context {
	return core.Context{
		Type: core.ContextLoan,
		ID:   &core.ContextID{AgreementID: id},
		Loan: &core.LoanPayload{
			Agreement: &core.CreditAgreementData{
				GoverningLaw: "NY",
				Parties:      []core.Party{{Name: "ACME Corp", Role: "Borrower", LEI: "ABC123"}},
			},
		},
	}
}

func TestPublish_LocalOnlyNotifiesEverySubscriber(t *testing.T) {
	b := bus.New()
	assert.Equal(t, bus.ModeLocalOnly, b.Mode())

	var got1, got2 core.Context
	b.Subscribe(func(c core.Context) { got1 = c })
	b.Subscribe(func(c core.Context) { got2 = c })

	published := loanContext("A1")
	require.NoError(t, b.Publish(context.Background(), published))

	assert.Equal(t, published, got1)
	assert.Equal(t, published, got2)

	current, ok := b.Current()
	require.True(t, ok)
	assert.Equal(t, published, current)
}

func TestPublish_SubscriptionOrder(t *testing.T) {
	b := bus.New()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		b.Subscribe(func(core.Context) { order = append(order, i) })
	}

	require.NoError(t, b.Publish(context.Background(), loanContext("A1")))
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestPublish_PanickingListenerDoesNotStopDelivery(t *testing.T) {
	b := bus.New()
	delivered := 0
	b.Subscribe(func(core.Context) { delivered++ })
	b.Subscribe(func(core.Context) { panic("boom") })
	b.Subscribe(func(core.Context) { delivered++ })

	assert.NotPanics(t, func() {
		require.NoError(t, b.Publish(context.Background(), loanContext("A1")))
	})
	assert.Equal(t, 2, delivered)
}

func TestPublish_ChannelFailureIsSwallowed(t *testing.T) {
	ch := &fakeChannel{available: true, err: errors.New("agent gone")}
	b := bus.New(bus.WithChannel(ch))
	assert.Equal(t, bus.ModeConnected, b.Mode())

	notified := false
	b.Subscribe(func(core.Context) { notified = true })

	require.NoError(t, b.Publish(context.Background(), loanContext("A1")))
	b.Wait()

	assert.True(t, notified)
	assert.Equal(t, 1, ch.count())
}

func TestPublish_UnavailableChannelIsNotCalled(t *testing.T) {
	ch := &fakeChannel{available: false}
	b := bus.New(bus.WithChannel(ch))

	var got core.Context
	b.Subscribe(func(c core.Context) { got = c })

	published := loanContext("A2")
	require.NoError(t, b.Publish(context.Background(), published))
	b.Wait()

	assert.Equal(t, published, got)
	assert.Zero(t, ch.count())
	assert.Equal(t, bus.ModeLocalOnly, b.Mode())
}

func TestPublish_InvalidContextRejected(t *testing.T) {
	b := bus.New()
	called := false
	b.Subscribe(func(core.Context) { called = true })

	err := b.Publish(context.Background(), core.Context{Type: core.ContextLoan, Chatbot: &core.ChatbotPayload{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.False(t, called)

	_, ok := b.Current()
	assert.False(t, ok)
}

func TestPublish_SubscriberCannotMutateCurrent(t *testing.T) {
	b := bus.New()
	b.Subscribe(func(c core.Context) {
		c.ID.AgreementID = "tampered"
		c.Loan.Agreement.Parties[0].LEI = "tampered"
	})

	require.NoError(t, b.Publish(context.Background(), loanContext("A1")))

	current, _ := b.Current()
	assert.Equal(t, "A1", current.ID.AgreementID)
	assert.Equal(t, "ABC123", current.Loan.Agreement.Parties[0].LEI)
}

func TestSubscribe_UnsubscribeIsIdempotent(t *testing.T) {
	b := bus.New()
	calls := 0
	unsubscribe := b.Subscribe(func(core.Context) { calls++ })
	other := 0
	b.Subscribe(func(core.Context) { other++ })

	unsubscribe()
	unsubscribe()

	require.NoError(t, b.Publish(context.Background(), loanContext("A1")))
	assert.Zero(t, calls)
	assert.Equal(t, 1, other)

	state := b.State().(bus.BusState)
	assert.Equal(t, 1, state.Subscribers)
}

func TestClear_DoesNotNotify(t *testing.T) {
	b := bus.New()
	calls := 0
	b.Subscribe(func(core.Context) { calls++ })

	require.NoError(t, b.Publish(context.Background(), loanContext("A1")))
	b.Clear()

	assert.Equal(t, 1, calls)
	_, ok := b.Current()
	assert.False(t, ok)
}
