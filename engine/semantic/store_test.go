package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/WessleyAI/faqbot/engine/domain"
)

// --- Mocks ---

type mockPoints struct {
	upsertResp *pb.PointsOperationResponse
	upsertErr  error
	searchResp *pb.SearchResponse
	searchErr  error

	lastUpsert *pb.UpsertPoints
	lastSearch *pb.SearchPoints
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.lastUpsert = in
	return m.upsertResp, m.upsertErr
}
func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.lastSearch = in
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	listResp   *pb.ListCollectionsResponse
	listErr    error
	createResp *pb.CollectionOperationResponse
	createErr  error
	deleteResp *pb.CollectionOperationResponse
	deleteErr  error

	created []string
	deleted []string
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = append(m.created, in.GetCollectionName())
	return m.createResp, m.createErr
}
func (m *mockCollections) Delete(_ context.Context, in *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.deleted = append(m.deleted, in.GetCollectionName())
	return m.deleteResp, m.deleteErr
}

// --- Tests ---

func TestNewQdrantBackendWithClients(t *testing.T) {
	q := NewQdrantBackendWithClients(&mockPoints{}, &mockCollections{})
	if q == nil {
		t.Fatal("expected non-nil")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCreateCollection_Creates(t *testing.T) {
	cols := &mockCollections{
		listResp:   &pb.ListCollectionsResponse{Collections: []*pb.CollectionDescription{{Name: "other"}}},
		createResp: &pb.CollectionOperationResponse{Result: true},
	}
	q := NewQdrantBackendWithClients(&mockPoints{}, cols)
	if err := q.CreateCollection(context.Background(), "faq_g1", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cols.deleted) != 0 {
		t.Errorf("deleted %v, want nothing", cols.deleted)
	}
	if len(cols.created) != 1 || cols.created[0] != "faq_g1" {
		t.Errorf("created %v", cols.created)
	}
}

func TestCreateCollection_RecreatesExisting(t *testing.T) {
	cols := &mockCollections{
		listResp:   &pb.ListCollectionsResponse{Collections: []*pb.CollectionDescription{{Name: "faq_g1"}}},
		createResp: &pb.CollectionOperationResponse{Result: true},
		deleteResp: &pb.CollectionOperationResponse{Result: true},
	}
	q := NewQdrantBackendWithClients(&mockPoints{}, cols)
	if err := q.CreateCollection(context.Background(), "faq_g1", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cols.deleted) != 1 || cols.deleted[0] != "faq_g1" {
		t.Errorf("deleted %v, want [faq_g1]", cols.deleted)
	}
}

func TestCreateCollection_ListError(t *testing.T) {
	cols := &mockCollections{listErr: errors.New("rpc fail")}
	q := NewQdrantBackendWithClients(&mockPoints{}, cols)
	if err := q.CreateCollection(context.Background(), "faq_g1", 4); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateCollection_CreateError(t *testing.T) {
	cols := &mockCollections{
		listResp:  &pb.ListCollectionsResponse{},
		createErr: errors.New("create fail"),
	}
	q := NewQdrantBackendWithClients(&mockPoints{}, cols)
	if err := q.CreateCollection(context.Background(), "faq_g1", 4); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeleteCollection_Error(t *testing.T) {
	cols := &mockCollections{deleteErr: errors.New("fail")}
	q := NewQdrantBackendWithClients(&mockPoints{}, cols)
	if err := q.DeleteCollection(context.Background(), "faq_g1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsert_Empty(t *testing.T) {
	pts := &mockPoints{}
	q := NewQdrantBackendWithClients(pts, &mockCollections{})
	if err := q.Upsert(context.Background(), "faq_g1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts.lastUpsert != nil {
		t.Error("empty upsert should not reach qdrant")
	}
}

func TestUpsert_Payload(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}}
	q := NewQdrantBackendWithClients(pts, &mockCollections{})

	points := []Point{{
		ID:     "0b8f1c1e-4a7e-4c1b-9b7e-0d1f2a3b4c5d",
		Vector: []float32{1, 0, 0, 0},
		Entry:  domain.Entry{Question: "q", Answer: "a", Position: 7},
	}}
	if err := q.Upsert(context.Background(), "faq_g1", points); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := pts.lastUpsert.GetPoints()[0]
	if got.GetId().GetUuid() != points[0].ID {
		t.Errorf("id = %s", got.GetId().GetUuid())
	}
	p := got.GetPayload()
	if p["question"].GetStringValue() != "q" || p["answer"].GetStringValue() != "a" {
		t.Errorf("payload = %v", p)
	}
	if p["index"].GetIntegerValue() != 7 {
		t.Errorf("index = %d", p["index"].GetIntegerValue())
	}
	if !pts.lastUpsert.GetWait() {
		t.Error("upsert should wait")
	}
}

func TestUpsert_Error(t *testing.T) {
	pts := &mockPoints{upsertErr: errors.New("fail")}
	q := NewQdrantBackendWithClients(pts, &mockCollections{})

	points := []Point{{ID: "id1", Vector: []float32{1, 0}}}
	if err := q.Upsert(context.Background(), "faq_g1", points); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch_Success(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{
					Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}},
					Score: 0.95,
					Payload: map[string]*pb.Value{
						"question": {Kind: &pb.Value_StringValue{StringValue: "Perso.ai는 어떤 서비스인가요?"}},
						"answer":   {Kind: &pb.Value_StringValue{StringValue: "AI 영상 서비스입니다."}},
						"index":    {Kind: &pb.Value_IntegerValue{IntegerValue: 2}},
						"extra":    {Kind: &pb.Value_StringValue{StringValue: "ignored"}},
					},
				},
			},
		},
	}
	q := NewQdrantBackendWithClients(pts, &mockCollections{})
	hits, err := q.Search(context.Background(), "faq_g1", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1, got %d", len(hits))
	}
	h := hits[0]
	if h.ID != "p1" || h.Score != 0.95 || h.Position != 2 {
		t.Errorf("wrong hit: %+v", h)
	}
	if h.Question != "Perso.ai는 어떤 서비스인가요?" || h.Answer != "AI 영상 서비스입니다." {
		t.Errorf("wrong payload: %+v", h)
	}
	if pts.lastSearch.GetLimit() != 3 || pts.lastSearch.GetCollectionName() != "faq_g1" {
		t.Errorf("wrong request: %v", pts.lastSearch)
	}
}

func TestSearch_Error(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("fail")}
	q := NewQdrantBackendWithClients(pts, &mockCollections{})
	if _, err := q.Search(context.Background(), "faq_g1", []float32{1}, 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch_Empty(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{}}
	q := NewQdrantBackendWithClients(pts, &mockCollections{})
	hits, err := q.Search(context.Background(), "faq_g1", []float32{1}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected 0, got %d", len(hits))
	}
}
