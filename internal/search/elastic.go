package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventhub/internal/config"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

// ElasticIndex is an Index backed by Elasticsearch.
type ElasticIndex struct {
	es    *elasticsearch.Client
	index string
	log   *zap.Logger
}

// NewElasticClient builds a client from cfg. It does not contact the cluster.
func NewElasticClient(cfg config.SearchConfig) (*elasticsearch.Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return es, nil
}

// NewElasticIndex wraps es for the named index.
func NewElasticIndex(es *elasticsearch.Client, index string, log *zap.Logger) *ElasticIndex {
	return &ElasticIndex{es: es, index: index, log: log}
}

type searchRequest struct {
	Query map[string]any `json:"query"`
	Size  int            `json:"size"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source model.EventDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs the fuzzy span-near query and returns hits in the order the
// index ranked them.
func (x *ElasticIndex) Search(ctx context.Context, text string, limit int) ([]model.SearchHit, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrEmptyQuery
	}

	body, err := json.Marshal(searchRequest{Query: BuildQuery(NameField, tokens), Size: limit})
	if err != nil {
		return nil, fmt.Errorf("encode search query: %w", err)
	}

	res, err := x.es.Search(
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	defer res.Body.Close()
	if err := responseError("search", res); err != nil {
		return nil, err
	}

	var decoded searchResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]model.SearchHit, 0, len(decoded.Hits.Hits))
	for _, h := range decoded.Hits.Hits {
		id, err := strconv.ParseInt(h.Source.ID, 10, 64)
		if err != nil {
			x.log.Warn("skipping search hit with bad id", zap.String("id", h.Source.ID))
			continue
		}
		hits = append(hits, model.SearchHit{EventID: id, Name: h.Source.Name})
	}
	return hits, nil
}

// Upsert indexes a single event document keyed by its id.
func (x *ElasticIndex) Upsert(ctx context.Context, e model.Event) error {
	body, err := json.Marshal(model.NewEventDocument(e))
	if err != nil {
		return fmt.Errorf("encode event document: %w", err)
	}
	res, err := x.es.Index(x.index, bytes.NewReader(body),
		x.es.Index.WithContext(ctx),
		x.es.Index.WithDocumentID(strconv.FormatInt(e.ID, 10)),
		x.es.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	defer res.Body.Close()
	return responseError("index event", res)
}

type bulkResponse struct {
	Errors bool `json:"errors"`
}

// Rebuild deletes the index (a missing index is fine), recreates it,
// bulk-indexes every event and refreshes.
func (x *ElasticIndex) Rebuild(ctx context.Context, events []model.Event) error {
	res, err := x.es.Indices.Delete([]string{x.index},
		x.es.Indices.Delete.WithContext(ctx),
		x.es.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	if res.StatusCode != http.StatusNotFound {
		err = responseError("delete index", res)
	}
	res.Body.Close()
	if err != nil {
		return err
	}

	// Recreate the index so an empty catalog still leaves a searchable index.
	res, err = x.es.Indices.Create(x.index, x.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	err = responseError("create index", res)
	res.Body.Close()
	if err != nil {
		return err
	}

	if len(events) > 0 {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for _, e := range events {
			meta := map[string]any{"index": map[string]any{"_id": strconv.FormatInt(e.ID, 10)}}
			if err := enc.Encode(meta); err != nil {
				return fmt.Errorf("encode bulk meta: %w", err)
			}
			if err := enc.Encode(model.NewEventDocument(e)); err != nil {
				return fmt.Errorf("encode bulk document: %w", err)
			}
		}

		res, err = x.es.Bulk(&buf,
			x.es.Bulk.WithContext(ctx),
			x.es.Bulk.WithIndex(x.index),
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
		}
		defer res.Body.Close()
		if err := responseError("bulk index", res); err != nil {
			return err
		}
		var br bulkResponse
		if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
			return fmt.Errorf("decode bulk response: %w", err)
		}
		if br.Errors {
			return fmt.Errorf("bulk index: some documents failed")
		}
	}

	res, err = x.es.Indices.Refresh(
		x.es.Indices.Refresh.WithContext(ctx),
		x.es.Indices.Refresh.WithIndex(x.index),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	defer res.Body.Close()
	if err := responseError("refresh index", res); err != nil {
		return err
	}

	x.log.Info("search index rebuilt", zap.String("index", x.index), zap.Int("documents", len(events)))
	return nil
}

// responseError turns an error response into an error. Server errors and a
// missing index mean the backend is not usable right now.
func responseError(op string, res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	if res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w: status %d: %s", op, ErrIndexUnavailable, res.StatusCode, msg)
	}
	return fmt.Errorf("%s: status %d: %s", op, res.StatusCode, msg)
}
