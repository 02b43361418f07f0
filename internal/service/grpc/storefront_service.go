package grpcsvc

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/basket"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

const defaultListOrdersLimit = 100

// StorefrontService реализует gRPC API поверх корзины и жизненного цикла заказов.
type StorefrontService struct {
	storefrontv1.UnimplementedStorefrontServiceServer

	baskets  *basket.Manager
	orders   *order.Lifecycle
	idemRepo domain.IdempotencyRepository
	clock    domain.Clock
	logger   *log.Entry
}

// NewStorefrontService конструирует сервис. idemRepo может быть nil: тогда
// заголовок idempotency-key игнорируется.
func NewStorefrontService(
	baskets *basket.Manager,
	orders *order.Lifecycle,
	idemRepo domain.IdempotencyRepository,
	logger *log.Entry,
) *StorefrontService {
	if logger == nil {
		logger = log.New().WithField("component", "storefront-service")
	}
	return &StorefrontService{
		baskets:  baskets,
		orders:   orders,
		idemRepo: idemRepo,
		clock:    domain.SystemClock{},
		logger:   logger,
	}
}

// GetBasket возвращает активную корзину пользователя, создавая пустую при отсутствии.
func (s *StorefrontService) GetBasket(ctx context.Context, req *storefrontv1.GetBasketRequest) (*storefrontv1.BasketResponse, error) {
	if req == nil || req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	b, err := s.baskets.GetOrCreateActiveBasket(ctx, req.UserID)
	if err != nil {
		return nil, s.toStatus(err, "GetBasket", log.Fields{"user_id": req.UserID})
	}
	return &storefrontv1.BasketResponse{Basket: toAPIBasket(b)}, nil
}

// AddBasketLine добавляет товар в корзину и резервирует его.
func (s *StorefrontService) AddBasketLine(ctx context.Context, req *storefrontv1.AddBasketLineRequest) (*storefrontv1.BasketResponse, error) {
	if req == nil || req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	if req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}
	return withIdempotency(s, ctx, storefrontv1.StorefrontService_AddBasketLine_FullMethodName, req,
		func(ctx context.Context) (*storefrontv1.BasketResponse, error) {
			b, err := s.baskets.AddLine(ctx, req.UserID, req.ProductID, req.Quantity)
			if err != nil {
				return nil, s.toStatus(err, "AddBasketLine", log.Fields{"user_id": req.UserID, "product_id": req.ProductID})
			}
			return &storefrontv1.BasketResponse{Basket: toAPIBasket(b)}, nil
		})
}

// SetBasketLineQuantity меняет количество товара в корзине.
func (s *StorefrontService) SetBasketLineQuantity(ctx context.Context, req *storefrontv1.SetBasketLineQuantityRequest) (*storefrontv1.BasketResponse, error) {
	if req == nil || req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	if req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}
	return withIdempotency(s, ctx, storefrontv1.StorefrontService_SetBasketLineQuantity_FullMethodName, req,
		func(ctx context.Context) (*storefrontv1.BasketResponse, error) {
			b, err := s.baskets.SetLineQuantity(ctx, req.UserID, req.ProductID, req.Quantity)
			if err != nil {
				return nil, s.toStatus(err, "SetBasketLineQuantity", log.Fields{"user_id": req.UserID, "product_id": req.ProductID})
			}
			return &storefrontv1.BasketResponse{Basket: toAPIBasket(b)}, nil
		})
}

// RemoveBasketLine удаляет позицию и возвращает товар на склад.
func (s *StorefrontService) RemoveBasketLine(ctx context.Context, req *storefrontv1.RemoveBasketLineRequest) (*storefrontv1.BasketResponse, error) {
	if req == nil || req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	if req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}
	return withIdempotency(s, ctx, storefrontv1.StorefrontService_RemoveBasketLine_FullMethodName, req,
		func(ctx context.Context) (*storefrontv1.BasketResponse, error) {
			b, err := s.baskets.RemoveLine(ctx, req.UserID, req.ProductID)
			if err != nil {
				return nil, s.toStatus(err, "RemoveBasketLine", log.Fields{"user_id": req.UserID, "product_id": req.ProductID})
			}
			return &storefrontv1.BasketResponse{Basket: toAPIBasket(b)}, nil
		})
}

// ClearBasket освобождает все позиции корзины.
func (s *StorefrontService) ClearBasket(ctx context.Context, req *storefrontv1.ClearBasketRequest) (*storefrontv1.BasketResponse, error) {
	if req == nil || req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	return withIdempotency(s, ctx, storefrontv1.StorefrontService_ClearBasket_FullMethodName, req,
		func(ctx context.Context) (*storefrontv1.BasketResponse, error) {
			b, err := s.baskets.Clear(ctx, req.UserID)
			if err != nil {
				return nil, s.toStatus(err, "ClearBasket", log.Fields{"user_id": req.UserID})
			}
			return &storefrontv1.BasketResponse{Basket: toAPIBasket(b)}, nil
		})
}

// Checkout оформляет заказ из активной корзины.
func (s *StorefrontService) Checkout(ctx context.Context, req *storefrontv1.CheckoutRequest) (*storefrontv1.CheckoutResponse, error) {
	if req == nil || req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	return withIdempotency(s, ctx, storefrontv1.StorefrontService_Checkout_FullMethodName, req,
		func(ctx context.Context) (*storefrontv1.CheckoutResponse, error) {
			o, err := s.orders.CreateFromBasket(ctx, order.CheckoutInput{
				UserID:       req.UserID,
				DiscountCode: strings.TrimSpace(req.DiscountCode),
			})
			if err != nil {
				return nil, s.toStatus(err, "Checkout", log.Fields{"user_id": req.UserID})
			}
			return &storefrontv1.CheckoutResponse{Order: toAPIOrder(o)}, nil
		})
}

// GetOrder возвращает заказ и его таймлайн.
func (s *StorefrontService) GetOrder(ctx context.Context, req *storefrontv1.GetOrderRequest) (*storefrontv1.GetOrderResponse, error) {
	if req == nil || req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	o, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err, "GetOrder", log.Fields{"order_id": req.OrderID})
	}

	return &storefrontv1.GetOrderResponse{
		Order:    toAPIOrder(o),
		Timeline: s.buildTimeline(ctx, o.ID),
	}, nil
}

// ListOrders возвращает заказы пользователя, новые первыми.
func (s *StorefrontService) ListOrders(ctx context.Context, req *storefrontv1.ListOrdersRequest) (*storefrontv1.ListOrdersResponse, error) {
	if req == nil || req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}

	limit := int(req.PageSize)
	if limit <= 0 {
		limit = defaultListOrdersLimit
	}

	orders, err := s.orders.ListByUser(ctx, req.UserID, limit)
	if err != nil {
		return nil, s.toStatus(err, "ListOrders", log.Fields{"user_id": req.UserID})
	}

	result := make([]*storefrontv1.Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, toAPIOrder(o))
	}
	return &storefrontv1.ListOrdersResponse{Orders: result}, nil
}

// EditOrder правит количества и адрес заказа.
func (s *StorefrontService) EditOrder(ctx context.Context, req *storefrontv1.EditOrderRequest) (*storefrontv1.EditOrderResponse, error) {
	if req == nil || req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	lines := make(map[string]int32, len(req.Lines))
	for idx, line := range req.Lines {
		if line == nil || line.ProductID == "" {
			return nil, status.Errorf(codes.InvalidArgument, "lines[%d].product_id is required", idx)
		}
		if _, dup := lines[line.ProductID]; dup {
			return nil, status.Errorf(codes.InvalidArgument, "lines[%d]: duplicate product %s", idx, line.ProductID)
		}
		lines[line.ProductID] = line.Quantity
	}

	return withIdempotency(s, ctx, storefrontv1.StorefrontService_EditOrder_FullMethodName, req,
		func(ctx context.Context) (*storefrontv1.EditOrderResponse, error) {
			o, err := s.orders.Edit(ctx, order.EditInput{
				OrderID: req.OrderID,
				Lines:   lines,
				Address: fromAPIAddressChanges(req.Address),
			})
			if err != nil {
				return nil, s.toStatus(err, "EditOrder", log.Fields{"order_id": req.OrderID})
			}
			return &storefrontv1.EditOrderResponse{Order: toAPIOrder(o)}, nil
		})
}

// TransitionOrder переводит заказ в новый статус.
func (s *StorefrontService) TransitionOrder(ctx context.Context, req *storefrontv1.TransitionOrderRequest) (*storefrontv1.TransitionOrderResponse, error) {
	if req == nil || req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	to := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !to.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "unknown order status %q", req.Status)
	}

	return withIdempotency(s, ctx, storefrontv1.StorefrontService_TransitionOrder_FullMethodName, req,
		func(ctx context.Context) (*storefrontv1.TransitionOrderResponse, error) {
			o, err := s.orders.Transition(ctx, req.OrderID, to)
			if err != nil {
				return nil, s.toStatus(err, "TransitionOrder", log.Fields{"order_id": req.OrderID, "status": to})
			}
			return &storefrontv1.TransitionOrderResponse{Order: toAPIOrder(o)}, nil
		})
}

// DeleteOrder мягко удаляет заказ.
func (s *StorefrontService) DeleteOrder(ctx context.Context, req *storefrontv1.DeleteOrderRequest) (*storefrontv1.DeleteOrderResponse, error) {
	if req == nil || req.OrderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	return withIdempotency(s, ctx, storefrontv1.StorefrontService_DeleteOrder_FullMethodName, req,
		func(ctx context.Context) (*storefrontv1.DeleteOrderResponse, error) {
			if err := s.orders.SoftDelete(ctx, req.OrderID); err != nil {
				return nil, s.toStatus(err, "DeleteOrder", log.Fields{"order_id": req.OrderID})
			}
			return &storefrontv1.DeleteOrderResponse{OrderID: req.OrderID}, nil
		})
}

func (s *StorefrontService) buildTimeline(ctx context.Context, orderID string) []*storefrontv1.TimelineEvent {
	events, err := s.orders.Timeline(ctx, orderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to list timeline events")
		return nil
	}
	result := make([]*storefrontv1.TimelineEvent, 0, len(events))
	for _, event := range events {
		result = append(result, &storefrontv1.TimelineEvent{
			Type:     event.Type,
			Reason:   event.Reason,
			UnixTime: event.Occurred.Unix(),
		})
	}
	return result
}

var _ storefrontv1.StorefrontServiceServer = (*StorefrontService)(nil)
