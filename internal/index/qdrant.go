package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dgallion1/ragest/internal/document"
	"github.com/dgallion1/ragest/internal/embed"
)

// QdrantStore keeps records as points in a Qdrant collection over gRPC.
// The collection is created on the first Add, sized to that embedding.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	query       embed.Embedder

	mu     sync.Mutex
	exists bool
}

// OpenQdrant dials addr and checks whether the collection already exists.
func OpenQdrant(ctx context.Context, addr, collection string, query embed.Embedder) (*QdrantStore, error) {
	if addr == "" {
		return nil, errors.New("qdrant index: address is required")
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	s := &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		query:       query,
	}

	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == collection {
			s.exists = true
		}
	}
	return s, nil
}

func (s *QdrantStore) Nearest(ctx context.Context, text string, k int) ([]Record, error) {
	return nearest(ctx, s, s.query, text, k)
}

func (s *QdrantStore) RetrieveTopK(ctx context.Context, query string, k int) ([]Record, error) {
	return retrieve(ctx, s, s.query, query, k)
}

func (s *QdrantStore) Add(ctx context.Context, rec Record) error {
	rec, err := prepare(rec)
	if err != nil {
		return err
	}
	if err := s.ensureCollection(ctx, len(rec.Embedding)); err != nil {
		return err
	}

	wait := true
	_, err = s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: rec.ID}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: rec.Embedding}},
			},
			Payload: recordPayload(rec),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert point: %w", err)
	}
	return nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists {
		return nil
	}

	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", s.collection, err)
	}

	wait := true
	fieldType := pb.FieldType_FieldTypeKeyword
	_, err = s.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: s.collection,
		Wait:           &wait,
		FieldName:      "content_hash",
		FieldType:      &fieldType,
	})
	if err != nil {
		return fmt.Errorf("qdrant: index content_hash: %w", err)
	}
	s.exists = true
	return nil
}

func (s *QdrantStore) Persist(context.Context) error { return nil }

func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	if !s.hasCollection() {
		return 0, nil
	}
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count points: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

func (s *QdrantStore) hasCollection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists
}

func (s *QdrantStore) empty(ctx context.Context) (bool, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (s *QdrantStore) findExact(ctx context.Context, content string) (*Record, error) {
	limit := uint32(16)
	resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: s.collection,
		Filter: &pb.Filter{
			Must: []*pb.Condition{fieldMatch("content_hash", ContentHash(content))},
		},
		Limit:       &limit,
		WithPayload: &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: scroll by hash: %w", err)
	}
	for _, p := range resp.GetResult() {
		rec := payloadRecord(p.GetId().GetUuid(), p.GetPayload())
		if rec.Content == content {
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *QdrantStore) search(ctx context.Context, vec []float32, k int) ([]Record, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vec,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	out := make([]Record, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		out[i] = payloadRecord(r.GetId().GetUuid(), r.GetPayload())
		out[i].Score = r.GetScore()
	}
	return out, nil
}

func recordPayload(rec Record) map[string]*pb.Value {
	str := func(s string) *pb.Value {
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
	}
	return map[string]*pb.Value{
		"content":      str(rec.Content),
		"content_hash": str(ContentHash(rec.Content)),
		"page":         {Kind: &pb.Value_IntegerValue{IntegerValue: int64(rec.Metadata.Page)}},
		"source":       str(rec.Metadata.Source),
		"title":        str(rec.Metadata.Title),
		"author":       str(rec.Metadata.Author),
	}
}

func payloadRecord(id string, payload map[string]*pb.Value) Record {
	return Record{
		ID:      id,
		Content: payload["content"].GetStringValue(),
		Metadata: document.Metadata{
			Page:   int(payload["page"].GetIntegerValue()),
			Source: payload["source"].GetStringValue(),
			Title:  payload["title"].GetStringValue(),
			Author: payload["author"].GetStringValue(),
		},
	}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
