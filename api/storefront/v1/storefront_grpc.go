package storefrontv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	StorefrontService_GetBasket_FullMethodName             = "/storefront.v1.StorefrontService/GetBasket"
	StorefrontService_AddBasketLine_FullMethodName         = "/storefront.v1.StorefrontService/AddBasketLine"
	StorefrontService_SetBasketLineQuantity_FullMethodName = "/storefront.v1.StorefrontService/SetBasketLineQuantity"
	StorefrontService_RemoveBasketLine_FullMethodName      = "/storefront.v1.StorefrontService/RemoveBasketLine"
	StorefrontService_ClearBasket_FullMethodName           = "/storefront.v1.StorefrontService/ClearBasket"
	StorefrontService_Checkout_FullMethodName              = "/storefront.v1.StorefrontService/Checkout"
	StorefrontService_GetOrder_FullMethodName              = "/storefront.v1.StorefrontService/GetOrder"
	StorefrontService_ListOrders_FullMethodName            = "/storefront.v1.StorefrontService/ListOrders"
	StorefrontService_EditOrder_FullMethodName             = "/storefront.v1.StorefrontService/EditOrder"
	StorefrontService_TransitionOrder_FullMethodName       = "/storefront.v1.StorefrontService/TransitionOrder"
	StorefrontService_DeleteOrder_FullMethodName           = "/storefront.v1.StorefrontService/DeleteOrder"
)

// StorefrontServiceClient is the client API for StorefrontService.
type StorefrontServiceClient interface {
	GetBasket(ctx context.Context, in *GetBasketRequest, opts ...grpc.CallOption) (*BasketResponse, error)
	AddBasketLine(ctx context.Context, in *AddBasketLineRequest, opts ...grpc.CallOption) (*BasketResponse, error)
	SetBasketLineQuantity(ctx context.Context, in *SetBasketLineQuantityRequest, opts ...grpc.CallOption) (*BasketResponse, error)
	RemoveBasketLine(ctx context.Context, in *RemoveBasketLineRequest, opts ...grpc.CallOption) (*BasketResponse, error)
	ClearBasket(ctx context.Context, in *ClearBasketRequest, opts ...grpc.CallOption) (*BasketResponse, error)
	Checkout(ctx context.Context, in *CheckoutRequest, opts ...grpc.CallOption) (*CheckoutResponse, error)
	GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error)
	ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error)
	EditOrder(ctx context.Context, in *EditOrderRequest, opts ...grpc.CallOption) (*EditOrderResponse, error)
	TransitionOrder(ctx context.Context, in *TransitionOrderRequest, opts ...grpc.CallOption) (*TransitionOrderResponse, error)
	DeleteOrder(ctx context.Context, in *DeleteOrderRequest, opts ...grpc.CallOption) (*DeleteOrderResponse, error)
}

type storefrontServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewStorefrontServiceClient создаёт клиента; все вызовы идут через JSON-кодек.
func NewStorefrontServiceClient(cc grpc.ClientConnInterface) StorefrontServiceClient {
	return &storefrontServiceClient{cc: cc}
}

func (c *storefrontServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	callOpts := append([]grpc.CallOption{WithJSONCodec()}, opts...)
	return c.cc.Invoke(ctx, method, in, out, callOpts...)
}

func (c *storefrontServiceClient) GetBasket(ctx context.Context, in *GetBasketRequest, opts ...grpc.CallOption) (*BasketResponse, error) {
	out := new(BasketResponse)
	if err := c.invoke(ctx, StorefrontService_GetBasket_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storefrontServiceClient) AddBasketLine(ctx context.Context, in *AddBasketLineRequest, opts ...grpc.CallOption) (*BasketResponse, error) {
	out := new(BasketResponse)
	if err := c.invoke(ctx, StorefrontService_AddBasketLine_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storefrontServiceClient) SetBasketLineQuantity(ctx context.Context, in *SetBasketLineQuantityRequest, opts ...grpc.CallOption) (*BasketResponse, error) {
	out := new(BasketResponse)
	if err := c.invoke(ctx, StorefrontService_SetBasketLineQuantity_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storefrontServiceClient) RemoveBasketLine(ctx context.Context, in *RemoveBasketLineRequest, opts ...grpc.CallOption) (*BasketResponse, error) {
	out := new(BasketResponse)
	if err := c.invoke(ctx, StorefrontService_RemoveBasketLine_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storefrontServiceClient) ClearBasket(ctx context.Context, in *ClearBasketRequest, opts ...grpc.CallOption) (*BasketResponse, error) {
	out := new(BasketResponse)
	if err := c.invoke(ctx, StorefrontService_ClearBasket_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storefrontServiceClient) Checkout(ctx context.Context, in *CheckoutRequest, opts ...grpc.CallOption) (*CheckoutResponse, error) {
	out := new(CheckoutResponse)
	if err := c.invoke(ctx, StorefrontService_Checkout_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storefrontServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error) {
	out := new(GetOrderResponse)
	if err := c.invoke(ctx, StorefrontService_GetOrder_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storefrontServiceClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.invoke(ctx, StorefrontService_ListOrders_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storefrontServiceClient) EditOrder(ctx context.Context, in *EditOrderRequest, opts ...grpc.CallOption) (*EditOrderResponse, error) {
	out := new(EditOrderResponse)
	if err := c.invoke(ctx, StorefrontService_EditOrder_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storefrontServiceClient) TransitionOrder(ctx context.Context, in *TransitionOrderRequest, opts ...grpc.CallOption) (*TransitionOrderResponse, error) {
	out := new(TransitionOrderResponse)
	if err := c.invoke(ctx, StorefrontService_TransitionOrder_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storefrontServiceClient) DeleteOrder(ctx context.Context, in *DeleteOrderRequest, opts ...grpc.CallOption) (*DeleteOrderResponse, error) {
	out := new(DeleteOrderResponse)
	if err := c.invoke(ctx, StorefrontService_DeleteOrder_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// StorefrontServiceServer is the server API for StorefrontService.
// Реализации должны встраивать UnimplementedStorefrontServiceServer.
type StorefrontServiceServer interface {
	GetBasket(context.Context, *GetBasketRequest) (*BasketResponse, error)
	AddBasketLine(context.Context, *AddBasketLineRequest) (*BasketResponse, error)
	SetBasketLineQuantity(context.Context, *SetBasketLineQuantityRequest) (*BasketResponse, error)
	RemoveBasketLine(context.Context, *RemoveBasketLineRequest) (*BasketResponse, error)
	ClearBasket(context.Context, *ClearBasketRequest) (*BasketResponse, error)
	Checkout(context.Context, *CheckoutRequest) (*CheckoutResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	EditOrder(context.Context, *EditOrderRequest) (*EditOrderResponse, error)
	TransitionOrder(context.Context, *TransitionOrderRequest) (*TransitionOrderResponse, error)
	DeleteOrder(context.Context, *DeleteOrderRequest) (*DeleteOrderResponse, error)
	mustEmbedUnimplementedStorefrontServiceServer()
}

// UnimplementedStorefrontServiceServer отвечает Unimplemented на все методы.
type UnimplementedStorefrontServiceServer struct{}

func (UnimplementedStorefrontServiceServer) GetBasket(context.Context, *GetBasketRequest) (*BasketResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBasket not implemented")
}
func (UnimplementedStorefrontServiceServer) AddBasketLine(context.Context, *AddBasketLineRequest) (*BasketResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AddBasketLine not implemented")
}
func (UnimplementedStorefrontServiceServer) SetBasketLineQuantity(context.Context, *SetBasketLineQuantityRequest) (*BasketResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SetBasketLineQuantity not implemented")
}
func (UnimplementedStorefrontServiceServer) RemoveBasketLine(context.Context, *RemoveBasketLineRequest) (*BasketResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RemoveBasketLine not implemented")
}
func (UnimplementedStorefrontServiceServer) ClearBasket(context.Context, *ClearBasketRequest) (*BasketResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ClearBasket not implemented")
}
func (UnimplementedStorefrontServiceServer) Checkout(context.Context, *CheckoutRequest) (*CheckoutResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Checkout not implemented")
}
func (UnimplementedStorefrontServiceServer) GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetOrder not implemented")
}
func (UnimplementedStorefrontServiceServer) ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListOrders not implemented")
}
func (UnimplementedStorefrontServiceServer) EditOrder(context.Context, *EditOrderRequest) (*EditOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method EditOrder not implemented")
}
func (UnimplementedStorefrontServiceServer) TransitionOrder(context.Context, *TransitionOrderRequest) (*TransitionOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method TransitionOrder not implemented")
}
func (UnimplementedStorefrontServiceServer) DeleteOrder(context.Context, *DeleteOrderRequest) (*DeleteOrderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteOrder not implemented")
}
func (UnimplementedStorefrontServiceServer) mustEmbedUnimplementedStorefrontServiceServer() {}

// RegisterStorefrontServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterStorefrontServiceServer(s grpc.ServiceRegistrar, srv StorefrontServiceServer) {
	s.RegisterService(&StorefrontService_ServiceDesc, srv)
}

// unaryHandler собирает обработчик метода: декодирование запроса, вызов
// реализации и цепочку interceptor'ов.
func unaryHandler[Req any, Resp any](
	fullMethod string,
	call func(StorefrontServiceServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StorefrontServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StorefrontServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	_StorefrontService_GetBasket_Handler = unaryHandler(StorefrontService_GetBasket_FullMethodName,
		StorefrontServiceServer.GetBasket)
	_StorefrontService_AddBasketLine_Handler = unaryHandler(StorefrontService_AddBasketLine_FullMethodName,
		StorefrontServiceServer.AddBasketLine)
	_StorefrontService_SetBasketLineQuantity_Handler = unaryHandler(StorefrontService_SetBasketLineQuantity_FullMethodName,
		StorefrontServiceServer.SetBasketLineQuantity)
	_StorefrontService_RemoveBasketLine_Handler = unaryHandler(StorefrontService_RemoveBasketLine_FullMethodName,
		StorefrontServiceServer.RemoveBasketLine)
	_StorefrontService_ClearBasket_Handler = unaryHandler(StorefrontService_ClearBasket_FullMethodName,
		StorefrontServiceServer.ClearBasket)
	_StorefrontService_Checkout_Handler = unaryHandler(StorefrontService_Checkout_FullMethodName,
		StorefrontServiceServer.Checkout)
	_StorefrontService_GetOrder_Handler = unaryHandler(StorefrontService_GetOrder_FullMethodName,
		StorefrontServiceServer.GetOrder)
	_StorefrontService_ListOrders_Handler = unaryHandler(StorefrontService_ListOrders_FullMethodName,
		StorefrontServiceServer.ListOrders)
	_StorefrontService_EditOrder_Handler = unaryHandler(StorefrontService_EditOrder_FullMethodName,
		StorefrontServiceServer.EditOrder)
	_StorefrontService_TransitionOrder_Handler = unaryHandler(StorefrontService_TransitionOrder_FullMethodName,
		StorefrontServiceServer.TransitionOrder)
	_StorefrontService_DeleteOrder_Handler = unaryHandler(StorefrontService_DeleteOrder_FullMethodName,
		StorefrontServiceServer.DeleteOrder)
)

// StorefrontService_ServiceDesc is the grpc.ServiceDesc for StorefrontService service.
var StorefrontService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "storefront.v1.StorefrontService",
	HandlerType: (*StorefrontServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetBasket", Handler: _StorefrontService_GetBasket_Handler},
		{MethodName: "AddBasketLine", Handler: _StorefrontService_AddBasketLine_Handler},
		{MethodName: "SetBasketLineQuantity", Handler: _StorefrontService_SetBasketLineQuantity_Handler},
		{MethodName: "RemoveBasketLine", Handler: _StorefrontService_RemoveBasketLine_Handler},
		{MethodName: "ClearBasket", Handler: _StorefrontService_ClearBasket_Handler},
		{MethodName: "Checkout", Handler: _StorefrontService_Checkout_Handler},
		{MethodName: "GetOrder", Handler: _StorefrontService_GetOrder_Handler},
		{MethodName: "ListOrders", Handler: _StorefrontService_ListOrders_Handler},
		{MethodName: "EditOrder", Handler: _StorefrontService_EditOrder_Handler},
		{MethodName: "TransitionOrder", Handler: _StorefrontService_TransitionOrder_Handler},
		{MethodName: "DeleteOrder", Handler: _StorefrontService_DeleteOrder_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/storefront.json",
}
