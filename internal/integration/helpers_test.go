//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"

	"github.com/couchcryptid/storm-outage-risk/internal/config"
	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"github.com/couchcryptid/storm-outage-risk/internal/engine"
	"github.com/couchcryptid/storm-outage-risk/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const networkJSON = `{
	"id": "feeder-it",
	"nodes": [
		{"num": 0, "name": "substation", "features": {"elevation": 320, "vegetation": 1.5}},
		{"num": 1, "name": "pole-001", "features": {"elevation": 210, "vegetation": 4}},
		{"num": 2, "name": "pole-002", "features": {"elevation": 140, "vegetation": 6.5}},
		{"num": 3, "name": "pole-003", "features": {"elevation": 180, "vegetation": 3}}
	],
	"edges": [
		{"num": 0, "source": 0, "target": 1, "features": {"length": 1.2}},
		{"num": 1, "source": 1, "target": 2, "features": {"length": 3.4}},
		{"num": 2, "source": 1, "target": 3, "features": {"length": 0.8}}
	]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-broker Kafka container for the test and returns
// its bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("outage-risk-it"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// newAssessor builds an assessor for the test network and the shipped model.
func newAssessor(t *testing.T) *engine.Assessor {
	t.Helper()

	network, err := domain.ParseNetwork([]byte(networkJSON))
	require.NoError(t, err)

	model, err := config.LoadModel("../../configs/model.yaml")
	require.NoError(t, err)

	assessor, err := engine.NewAssessor(network, model, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	return assessor
}

// weatherEvent returns a valid event payload for the test network whose
// intensity scales with the given factor in (0, 1].
func weatherEvent(id string, factor float64) []byte {
	row := func(peak float64) string {
		return "[" + strconv.FormatFloat(peak*0.2*factor, 'f', 2, 64) + "," +
			strconv.FormatFloat(peak*factor, 'f', 2, 64) + ",null," +
			strconv.FormatFloat(peak*0.5*factor, 'f', 2, 64) + "]"
	}
	return []byte(`{
		"id": "` + id + `",
		"begin_time": "2024-04-26T00:00:00Z",
		"end_time": "2024-04-26T03:00:00Z",
		"node_series": {
			"wspd": [` + row(20) + `,` + row(28) + `,` + row(36) + `,` + row(30) + `],
			"prcp": [` + row(10) + `,` + row(25) + `,` + row(45) + `,` + row(30) + `]
		}
	}`)
}
