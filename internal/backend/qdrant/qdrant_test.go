package qdrant

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/govreposcrape/govsearch/internal/domain"
)

type MockPointsAPI struct {
	mock.Mock
}

func (m *MockPointsAPI) Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*qdrant.ScoredPoint), args.Error(1)
}

func (m *MockPointsAPI) Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*qdrant.UpdateResult), args.Error(1)
}

func (m *MockPointsAPI) ListCollections(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockPointsAPI) CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockPointsAPI) HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*qdrant.HealthCheckReply), args.Error(1)
}

func (m *MockPointsAPI) Close() error {
	return m.Called().Error(0)
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) Dimensions() int { return 3 }

func TestBackend_Query(t *testing.T) {
	api := new(MockPointsAPI)
	emb := new(MockEmbedder)
	b := newBackend(api, emb, "")

	ctx := context.Background()
	emb.On("GenerateEmbedding", ctx, "tax calculator").Return([]float32{0.1, 0.2, 0.3}, nil)
	api.On("Query", ctx, mock.MatchedBy(func(req *qdrant.QueryPoints) bool {
		return req.CollectionName == DefaultCollection && req.GetLimit() == 4 && req.GetUsing() == "content"
	})).Return([]*qdrant.ScoredPoint{
		{
			Score: 0.91,
			Payload: qdrant.NewValueMap(map[string]any{
				"content": "HMRC tax calculator",
				"path":    "gitingest/hmrc/tax-calc/summary.txt",
			}),
		},
		{
			Score:   1.2,
			Payload: qdrant.NewValueMap(map[string]any{"content": "over one", "path": "p/a/b/summary.txt"}),
		},
	}, nil)

	res, err := b.Query(ctx, domain.BackendQuery{Query: "tax calculator", TopK: 4})

	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "HMRC tax calculator", res.Results[0].Content)
	assert.Equal(t, "gitingest/hmrc/tax-calc/summary.txt", res.Results[0].Path)
	assert.InDelta(t, 0.91, res.Results[0].Score, 1e-6)
	assert.Equal(t, 1.0, res.Results[1].Score)
	api.AssertExpectations(t)
}

func TestBackend_Query_EmbeddingFailure(t *testing.T) {
	api := new(MockPointsAPI)
	emb := new(MockEmbedder)
	b := newBackend(api, emb, "")

	emb.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("quota"))

	_, err := b.Query(context.Background(), domain.BackendQuery{Query: "x", TopK: 1})

	assert.ErrorContains(t, err, "failed to embed query")
	api.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

func TestBackend_Index_UsesStablePointID(t *testing.T) {
	api := new(MockPointsAPI)
	emb := new(MockEmbedder)
	b := newBackend(api, emb, "summaries")

	doc := domain.SummaryDocument{
		StoragePath: "gitingest/dwp/benefits/summary.txt",
		Repository:  "dwp/benefits",
		Content:     "Repository: dwp/benefits",
	}
	emb.On("GenerateEmbedding", mock.Anything, doc.Content).Return([]float32{1, 0, 0}, nil)
	api.On("Upsert", mock.Anything, mock.MatchedBy(func(req *qdrant.UpsertPoints) bool {
		if req.CollectionName != "summaries" || len(req.Points) != 1 {
			return false
		}
		p := req.Points[0]
		return p.GetId().GetUuid() == PointID(doc.StoragePath) &&
			p.GetPayload()["repository"].GetStringValue() == "dwp/benefits"
	})).Return(&qdrant.UpdateResult{}, nil)

	require.NoError(t, b.Index(context.Background(), doc))
	api.AssertExpectations(t)

	assert.Equal(t, PointID(doc.StoragePath), PointID(doc.StoragePath))
	assert.NotEqual(t, PointID(doc.StoragePath), PointID("gitingest/dwp/other/summary.txt"))
}

func TestBackend_EnsureCollection(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		api := new(MockPointsAPI)
		b := newBackend(api, new(MockEmbedder), "")
		api.On("ListCollections", mock.Anything).Return([]string{"other", DefaultCollection}, nil)

		require.NoError(t, b.EnsureCollection(context.Background()))
		api.AssertNotCalled(t, "CreateCollection", mock.Anything, mock.Anything)
	})

	t.Run("creates", func(t *testing.T) {
		api := new(MockPointsAPI)
		b := newBackend(api, new(MockEmbedder), "")
		api.On("ListCollections", mock.Anything).Return([]string{}, nil)
		api.On("CreateCollection", mock.Anything, mock.MatchedBy(func(req *qdrant.CreateCollection) bool {
			return req.CollectionName == DefaultCollection
		})).Return(nil)

		require.NoError(t, b.EnsureCollection(context.Background()))
		api.AssertExpectations(t)
	})
}

func TestBackend_Health(t *testing.T) {
	api := new(MockPointsAPI)
	b := newBackend(api, new(MockEmbedder), "")

	api.On("HealthCheck", mock.Anything).Return(&qdrant.HealthCheckReply{}, nil).Once()
	assert.ErrorIs(t, b.Health(context.Background()), ErrUnhealthy)

	api.On("HealthCheck", mock.Anything).Return(&qdrant.HealthCheckReply{Title: "qdrant"}, nil).Once()
	assert.NoError(t, b.Health(context.Background()))
}
