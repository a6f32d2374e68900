package grpc

import (
	"catalog/app"
	"catalog/domain"
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const CatalogServiceName = "catalog.v1.CatalogService"

// CatalogServiceServer is the read-only catalog API other services use. Records
// travel as structpb values carrying the same JSON shape the admin API returns.
type CatalogServiceServer interface {
	GetProduct(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error)
	GetCategory(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error)
	ListCategories(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error)
	ListProducts(ctx context.Context, query *structpb.Struct) (*structpb.Struct, error)
}

func RegisterCatalogServiceServer(s grpc.ServiceRegistrar, srv CatalogServiceServer) {
	s.RegisterService(&catalogServiceDesc, srv)
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*CatalogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProduct", Handler: unaryHandler("GetProduct", CatalogServiceServer.GetProduct)},
		{MethodName: "GetCategory", Handler: unaryHandler("GetCategory", CatalogServiceServer.GetCategory)},
		{MethodName: "ListCategories", Handler: unaryHandler("ListCategories", CatalogServiceServer.ListCategories)},
		{MethodName: "ListProducts", Handler: unaryHandler("ListProducts", CatalogServiceServer.ListProducts)},
	},
	Streams: []grpc.StreamDesc{},
}

// unaryHandler adapts a service method to the generated-code handler shape.
func unaryHandler[Req any, Res any](method string, call func(CatalogServiceServer, context.Context, *Req) (Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + CatalogServiceName + "/" + method,
		}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServiceServer), ctx, req.(*Req))
		})
	}
}

type CatalogService struct {
	repository app.Repository
}

func NewCatalogService(repository app.Repository) *CatalogService {
	return &CatalogService{
		repository: repository,
	}
}

func (s *CatalogService) GetProduct(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error) {
	if err := uuid.Validate(id.GetValue()); err != nil {
		return nil, status.Error(codes.InvalidArgument, "product id must be a uuid")
	}

	product, err := s.repository.GetProduct(ctx, id.GetValue())
	if err != nil {
		return nil, mapError("product", err)
	}
	return toStruct(product)
}

func (s *CatalogService) GetCategory(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error) {
	if err := uuid.Validate(id.GetValue()); err != nil {
		return nil, status.Error(codes.InvalidArgument, "category id must be a uuid")
	}

	category, err := s.repository.GetCategory(ctx, id.GetValue())
	if err != nil {
		return nil, mapError("category", err)
	}
	return toStruct(category)
}

func (s *CatalogService) ListCategories(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	categories, err := s.repository.ListAllCategories(ctx)
	if err != nil {
		return nil, mapError("category", err)
	}

	values := make([]any, 0, len(categories))
	for _, c := range categories {
		v, err := toMap(c)
		if err != nil {
			return nil, status.Error(codes.Internal, "encode category")
		}
		values = append(values, v)
	}

	list, err := structpb.NewList(values)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode categories")
	}
	return list, nil
}

// ListProducts reads the active catalog. query carries page, per_page, search
// and category_slug.
func (s *CatalogService) ListProducts(ctx context.Context, query *structpb.Struct) (*structpb.Struct, error) {
	fields := query.GetFields()
	page := app.ParsePage(fields["page"].GetStringValue())
	if n := fields["page"].GetNumberValue(); n > 0 {
		page = max(1, int(n))
	}
	perPage := app.DefaultPerPage
	if n := fields["per_page"].GetNumberValue(); n > 0 {
		perPage = min(int(n), app.MaxPerPage)
	}

	active := true
	filter := domain.ProductFilter{IsActive: &active}
	if search := fields["search"].GetStringValue(); search != "" {
		filter.Search = &search
	}

	if slug := fields["category_slug"].GetStringValue(); slug != "" {
		ids, err := s.repository.ResolveCategoryIDs(ctx, slug)
		if err != nil {
			return nil, mapError("product", err)
		}
		if len(ids) == 0 {
			return toStruct(domain.EmptyPage[domain.Product](perPage))
		}
		filter.CategoryIDs = ids
	}

	result, err := s.repository.ListProducts(ctx, page, perPage, filter)
	if err != nil {
		return nil, mapError("product", err)
	}
	return toStruct(result)
}

func mapError(noun string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return status.Error(codes.NotFound, noun+" not found")
	}
	zap.L().Error("Catalog read failed", zap.String("entity", noun), zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	m, err := toMap(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

// CatalogClient calls CatalogServiceServer over conn.
type CatalogClient struct {
	conn grpc.ClientConnInterface
}

func NewCatalogClient(conn grpc.ClientConnInterface) *CatalogClient {
	return &CatalogClient{conn: conn}
}

func (c *CatalogClient) GetProduct(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.conn.Invoke(ctx, "/"+CatalogServiceName+"/GetProduct", wrapperspb.String(id), out, opts...)
	return out, err
}

func (c *CatalogClient) GetCategory(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.conn.Invoke(ctx, "/"+CatalogServiceName+"/GetCategory", wrapperspb.String(id), out, opts...)
	return out, err
}

func (c *CatalogClient) ListCategories(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	err := c.conn.Invoke(ctx, "/"+CatalogServiceName+"/ListCategories", &emptypb.Empty{}, out, opts...)
	return out, err
}

func (c *CatalogClient) ListProducts(ctx context.Context, query *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.conn.Invoke(ctx, "/"+CatalogServiceName+"/ListProducts", query, out, opts...)
	return out, err
}
