package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/WessleyAI/faqbot/engine/domain"
)

type pointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// QdrantBackend keeps FAQ points in a Qdrant server over gRPC.
type QdrantBackend struct {
	conn        *grpc.ClientConn
	points      pointsClient
	collections collectionsClient
}

var _ Backend = (*QdrantBackend)(nil)

// NewQdrantBackend connects to Qdrant at the given gRPC address.
func NewQdrantBackend(addr string) (*QdrantBackend, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &QdrantBackend{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

// NewQdrantBackendWithClients builds a backend over pre-made gRPC clients.
func NewQdrantBackendWithClients(points pointsClient, collections collectionsClient) *QdrantBackend {
	return &QdrantBackend{points: points, collections: collections}
}

func (q *QdrantBackend) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// CreateCollection (re)creates name with cosine distance. A stale
// collection of the same name is dropped first.
func (q *QdrantBackend) CreateCollection(ctx context.Context, name string, dims int) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == name {
			if err := q.DeleteCollection(ctx, name); err != nil {
				return err
			}
			break
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
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
		return fmt.Errorf("semantic: create collection %s: %w", name, err)
	}
	return nil
}

func (q *QdrantBackend) DeleteCollection(ctx context.Context, name string) error {
	_, err := q.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", name, err)
	}
	return nil
}

func (q *QdrantBackend) Upsert(ctx context.Context, name string, pts []Point) error {
	if len(pts) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(pts))
	for i, p := range pts {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: p.Vector},
				},
			},
			Payload: payload(map[string]any{
				"question": p.Entry.Question,
				"answer":   p.Entry.Answer,
				"index":    p.Entry.Position,
			}),
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: name,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(pts), err)
	}
	return nil
}

func (q *QdrantBackend) Search(ctx context.Context, name string, vector []float32, k int) ([]domain.Hit, error) {
	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: name,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search %s: %w", name, err)
	}

	hits := make([]domain.Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		h := domain.Hit{ID: r.GetId().GetUuid(), Score: r.GetScore()}
		for key, val := range r.GetPayload() {
			switch key {
			case "question":
				h.Question = val.GetStringValue()
			case "answer":
				h.Answer = val.GetStringValue()
			case "index":
				h.Position = int(val.GetIntegerValue())
			}
		}
		hits[i] = h
	}
	return hits, nil
}

func payload(fields map[string]any) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(fields))
	for k, val := range fields {
		switch tv := val.(type) {
		case string:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		default:
			out[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return out
}
