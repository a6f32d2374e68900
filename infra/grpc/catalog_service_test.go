package grpc

import (
	"catalog/domain"
	"catalog/infra/memory"
	"context"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startServer(t *testing.T, repo *memory.Repository) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := NewServerWithListener(lis)
	server.RegisterCatalog(NewCatalogService(repo))

	go func() {
		_ = server.Start()
	}()
	t.Cleanup(server.GracefulStop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func seed(t *testing.T) (*memory.Repository, domain.Category, domain.Product) {
	t.Helper()
	ctx := context.Background()
	repo := memory.NewRepository()

	category, err := repo.CreateCategory(ctx, domain.Fields{"name": "Vegan", "slug": "vegan"})
	require.NoError(t, err)
	product, err := repo.CreateProduct(ctx, domain.Fields{
		"title":       "Tofu",
		"price":       decimal.RequireFromString("3.50"),
		"category_id": category.ID,
	})
	require.NoError(t, err)
	_, err = repo.CreateProduct(ctx, domain.Fields{
		"title":     "Retired",
		"price":     decimal.NewFromInt(1),
		"is_active": false,
	})
	require.NoError(t, err)

	return repo, category, product
}

func TestCatalogService_GetProduct(t *testing.T) {
	repo, category, product := seed(t)
	client := NewCatalogClient(startServer(t, repo))

	got, err := client.GetProduct(context.Background(), product.ID)

	require.NoError(t, err)
	assert.Equal(t, "Tofu", got.Fields["title"].GetStringValue())
	assert.Equal(t, "3.5", got.Fields["price"].GetStringValue())
	assert.Equal(t, category.ID, got.Fields["category"].GetStructValue().Fields["id"].GetStringValue())
}

func TestCatalogService_Errors(t *testing.T) {
	repo, _, _ := seed(t)
	client := NewCatalogClient(startServer(t, repo))

	_, err := client.GetProduct(context.Background(), "not-a-uuid")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.GetCategory(context.Background(), "6f1c2a52-1d8e-4c33-9a54-0a3bb1f0c2de")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestCatalogService_ListCategories(t *testing.T) {
	repo, category, _ := seed(t)
	client := NewCatalogClient(startServer(t, repo))

	list, err := client.ListCategories(context.Background())

	require.NoError(t, err)
	require.Len(t, list.Values, 1)
	assert.Equal(t, category.ID, list.Values[0].GetStructValue().Fields["id"].GetStringValue())
}

func TestCatalogService_ListProductsOnlyActive(t *testing.T) {
	repo, _, _ := seed(t)
	client := NewCatalogClient(startServer(t, repo))

	query, err := structpb.NewStruct(map[string]any{"category_slug": "vegan", "per_page": 5})
	require.NoError(t, err)

	page, err := client.ListProducts(context.Background(), query)

	require.NoError(t, err)
	items := page.Fields["items"].GetListValue().GetValues()
	require.Len(t, items, 1)
	assert.Equal(t, "Tofu", items[0].GetStructValue().Fields["title"].GetStringValue())
	assert.Equal(t, float64(5), page.Fields["meta"].GetStructValue().Fields["per_page"].GetNumberValue())
}

func TestCatalogService_ReportsServing(t *testing.T) {
	repo, _, _ := seed(t)
	conn := startServer(t, repo)

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{
		Service: CatalogServiceName,
	})

	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}
