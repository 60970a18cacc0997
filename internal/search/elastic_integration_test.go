//go:build integration

package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

func startElasticsearch(t *testing.T) *ElasticIndex {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.elastic.co/elasticsearch/elasticsearch:8.15.0",
			ExposedPorts: []string{"9200/tcp"},
			Env: map[string]string{
				"discovery.type":         "single-node",
				"xpack.security.enabled": "false",
				"ES_JAVA_OPTS":           "-Xms512m -Xmx512m",
			},
			WaitingFor: wait.ForHTTP("/").WithPort("9200/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "9200/tcp")
	require.NoError(t, err)

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{fmt.Sprintf("http://%s:%s", host, port.Port())},
	})
	require.NoError(t, err)
	return NewElasticIndex(es, "events", zap.NewNop())
}

func TestElasticFuzzySpanNear(t *testing.T) {
	idx := startElasticsearch(t)
	ctx := context.Background()

	require.NoError(t, idx.Rebuild(ctx, []model.Event{
		{ID: 1, Name: "Tech Talk 2024"},
		{ID: 2, Name: "Technology Fair"},
		{ID: 3, Name: "Cooking Class"},
	}))

	hits, err := idx.Search(ctx, "tech talk", FullSearchLimit)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, int64(1), hits[0].EventID)
	for _, h := range hits {
		assert.NotEqual(t, int64(3), h.EventID, "unrelated event must not match")
	}

	hits, err = idx.Search(ctx, "talk tech", FullSearchLimit)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, int64(1), hits[0].EventID, "token order must not matter")

	hits, err = idx.Search(ctx, "cookng", AutocompleteLimit)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Cooking Class", hits[0].Name)

	require.NoError(t, idx.Upsert(ctx, model.Event{ID: 4, Name: "Cooking Fair"}))
	hits, err = idx.Search(ctx, "cooking fair", AutocompleteLimit)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, int64(4), hits[0].EventID)
}
