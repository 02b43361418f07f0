package grpcsvc

import (
	"context"
	"errors"
	"strconv"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	errorDomain             = "storefront.v1"
	reasonInsufficientStock = "INSUFFICIENT_STOCK"
)

// toStatus переводит доменную ошибку в gRPC-статус. Доменные отказы
// логируются на уровне warn, инфраструктурные на уровне error.
func (s *StorefrontService) toStatus(err error, operation string, fields log.Fields) error {
	entry := s.logger.WithError(err).WithField("operation", operation).WithFields(fields)

	code, msg := classify(err)
	if code == codes.Internal {
		entry.Error("storefront operation failed")
	} else {
		entry.Warn("storefront operation rejected")
	}

	st := status.New(code, msg)
	if details, ok := domain.AsInsufficientStock(err); ok {
		withDetails, detailErr := st.WithDetails(&errdetails.ErrorInfo{
			Reason: reasonInsufficientStock,
			Domain: errorDomain,
			Metadata: map[string]string{
				"product_id": details.ProductID,
				"requested":  strconv.Itoa(int(details.Requested)),
				"available":  strconv.Itoa(int(details.Available)),
			},
		})
		if detailErr == nil {
			st = withDetails
		}
	}
	return st.Err()
}

// classify сопоставляет вид ошибки с кодом gRPC.
func classify(err error) (codes.Code, string) {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound, err.Error()
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrEmptyBasket),
		errors.Is(err, domain.ErrOrderNotEditable),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrDiscountCodeExpired):
		return codes.FailedPrecondition, err.Error()
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrUserRequired),
		errors.Is(err, domain.ErrProductIDRequired),
		errors.Is(err, domain.ErrAddressInvalid):
		return codes.InvalidArgument, err.Error()
	case domain.IsVersionConflict(err), errors.Is(err, domain.ErrActiveBasketExists):
		return codes.Aborted, err.Error()
	default:
		return codes.Internal, "internal error"
	}
}

// InsufficientStockFromStatus извлекает детали нехватки остатка из ошибки вызова.
func InsufficientStockFromStatus(err error) (*domain.InsufficientStockError, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetReason() != reasonInsufficientStock {
			continue
		}
		requested, err1 := strconv.ParseInt(info.GetMetadata()["requested"], 10, 32)
		available, err2 := strconv.ParseInt(info.GetMetadata()["available"], 10, 32)
		if err1 != nil || err2 != nil {
			return nil, false
		}
		return &domain.InsufficientStockError{
			ProductID: info.GetMetadata()["product_id"],
			Requested: int32(requested),
			Available: int32(available),
		}, true
	}
	return nil, false
}
