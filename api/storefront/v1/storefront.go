// Package storefrontv1 описывает gRPC API витрины: корзина, оформление и
// правка заказов. Сообщения передаются JSON-кодеком (content-subtype "json").
package storefrontv1

// Статусы заказа в API совпадают с доменными.
const (
	OrderStatusNew        = "new"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// Address описывает адрес доставки.
type Address struct {
	Recipient  string `json:"recipient"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// AddressChanges задаёт частичную правку адреса заказа; отсутствующее поле не меняется.
type AddressChanges struct {
	Recipient  *string `json:"recipient,omitempty"`
	Street     *string `json:"street,omitempty"`
	City       *string `json:"city,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Country    *string `json:"country,omitempty"`
	Phone      *string `json:"phone,omitempty"`
}

type BasketLine struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	AddedAt   int64  `json:"added_at_unix"`
}

type Basket struct {
	ID      string        `json:"id"`
	UserID  string        `json:"user_id"`
	Status  string        `json:"status"`
	Lines   []*BasketLine `json:"lines"`
	Version int64         `json:"version"`
}

// OrderLine описывает позицию заказа. Денежные суммы передаются десятичными строками с двумя знаками.
type OrderLine struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	Quantity     int32  `json:"quantity"`
	PricePerUnit string `json:"price_per_unit"`
	Subtotal     string `json:"subtotal"`
}

type Order struct {
	ID                 string       `json:"id"`
	UserID             string       `json:"user_id"`
	Status             string       `json:"status"`
	OrderDate          int64        `json:"order_date_unix"`
	TotalAmount        string       `json:"total_amount"`
	PayableAmount      string       `json:"payable_amount"`
	DiscountCode       string       `json:"discount_code,omitempty"`
	DiscountPercentOff int32        `json:"discount_percent_off,omitempty"`
	Address            *Address     `json:"address"`
	Lines              []*OrderLine `json:"lines"`
	Version            int64        `json:"version"`
}

type TimelineEvent struct {
	Type     string `json:"type"`
	Reason   string `json:"reason,omitempty"`
	UnixTime int64  `json:"unix_time"`
}

// LineQuantity задаёт новое количество товара в правке заказа; 0 удаляет позицию.
type LineQuantity struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type GetBasketRequest struct {
	UserID string `json:"user_id"`
}

type AddBasketLineRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type SetBasketLineQuantityRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type RemoveBasketLineRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}

type ClearBasketRequest struct {
	UserID string `json:"user_id"`
}

// BasketResponse возвращается всеми операциями над корзиной.
type BasketResponse struct {
	Basket *Basket `json:"basket"`
}

type CheckoutRequest struct {
	UserID       string `json:"user_id"`
	DiscountCode string `json:"discount_code,omitempty"`
}

type CheckoutResponse struct {
	Order *Order `json:"order"`
}

type GetOrderRequest struct {
	OrderID string `json:"order_id"`
}

type GetOrderResponse struct {
	Order    *Order           `json:"order"`
	Timeline []*TimelineEvent `json:"timeline"`
}

type ListOrdersRequest struct {
	UserID   string `json:"user_id"`
	PageSize int32  `json:"page_size,omitempty"`
}

type ListOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

type EditOrderRequest struct {
	OrderID string          `json:"order_id"`
	Lines   []*LineQuantity `json:"lines,omitempty"`
	Address *AddressChanges `json:"address,omitempty"`
}

type EditOrderResponse struct {
	Order *Order `json:"order"`
}

type TransitionOrderRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type TransitionOrderResponse struct {
	Order *Order `json:"order"`
}

type DeleteOrderRequest struct {
	OrderID string `json:"order_id"`
}

type DeleteOrderResponse struct {
	OrderID string `json:"order_id"`
}
