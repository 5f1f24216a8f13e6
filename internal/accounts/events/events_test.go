package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/clipshare/internal/accounts/events"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type recorder struct {
	got []events.Event
	err error
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.got = append(r.got, e)
	return r.err
}

func TestMulti(t *testing.T) {
	ok := &recorder{}
	broken := &recorder{err: errors.New("down")}
	m := events.Multi{ok, broken, events.Nop{}}

	err := m.Publish(context.Background(), events.New(events.SessionCreated, "user-1"))
	require.ErrorIs(t, err, broken.err)
	require.Len(t, ok.got, 1)
	require.Len(t, broken.got, 1, "a failing publisher does not stop the fan out")
	require.Equal(t, "user-1", ok.got[0].UserID)
}

func TestEventJSON(t *testing.T) {
	raw, err := json.Marshal(events.New(events.PasswordChanged, "user-1"))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Equal(t, "password.changed", fields["type"])
	require.Equal(t, "user-1", fields["userId"])
	require.Contains(t, fields, "occurredAt")
}

func TestMetricsPublisher(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := events.NewMetricsPublisher(reg)

	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, events.New(events.SessionCreated, "a")))
	require.NoError(t, p.Publish(ctx, events.New(events.SessionCreated, "b")))
	require.NoError(t, p.Publish(ctx, events.New(events.SessionEnded, "a")))

	count, err := testutil.GatherAndCount(reg, "clipshare_accounts_events_total")
	require.NoError(t, err)
	require.Equal(t, 2, count, "one series per event type")
}

func TestNATSPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("nats publisher test needs docker")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2",
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForListeningPort("4222/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)
	url := fmt.Sprintf("nats://%s:%s", host, port.Port())

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()
	inbox, err := sub.SubscribeSync(events.SubjectPrefix + ">")
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	pub, err := events.NewNATSPublisher(url)
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.Publish(ctx, events.New(events.UserRegistered, "user-1")))

	msg, err := inbox.NextMsg(5 * time.Second)
	require.NoError(t, err)
	require.Equal(t, "clipshare.accounts.user.registered", msg.Subject)

	var e events.Event
	require.NoError(t, json.Unmarshal(msg.Data, &e))
	require.Equal(t, events.UserRegistered, e.Type)
	require.Equal(t, "user-1", e.UserID)
}
