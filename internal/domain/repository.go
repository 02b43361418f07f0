package domain

import (
	"context"
	"time"
)

// Все методы репозиториев принимают ctx: если в нём открыта транзакция
// TxManager, операция выполняется внутри неё.

// ProductRepository описывает хранилище товаров и атомарные операции над остатком.
type ProductRepository interface {
	// Get возвращает товар или ErrProductNotFound (в том числе для мягко удалённых).
	Get(ctx context.Context, id string) (Product, error)
	// Save создаёт или обновляет товар целиком.
	Save(ctx context.Context, product Product) error
	// DecrementStock уменьшает остаток на qty одной условной операцией.
	// Если остатка не хватает, возвращает *InsufficientStockError и ничего не меняет.
	DecrementStock(ctx context.Context, id string, qty int32) (Product, error)
	// IncrementStock возвращает qty единиц на склад.
	IncrementStock(ctx context.Context, id string, qty int32) (Product, error)
}

// BasketRepository описывает хранилище корзин.
type BasketRepository interface {
	// GetActiveForUser возвращает активную корзину пользователя или ErrBasketNotFound.
	// Внутри транзакции строка корзины блокируется до её завершения.
	GetActiveForUser(ctx context.Context, userID string) (Basket, error)
	// Create сохраняет новую корзину. ErrActiveBasketExists, если активная уже есть.
	Create(ctx context.Context, basket Basket) error
	// Save сохраняет корзину вместе с позициями с учётом optimistic locking.
	Save(ctx context.Context, basket Basket) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	// Мягко удалённые заказы возвращаются: фильтрует вызывающая сторона.
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает не удалённые заказы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
}

// AddressRepository — адресная книга (только то, что нужно оформлению заказа).
type AddressRepository interface {
	Create(ctx context.Context, address Address) error
	// DefaultForUser возвращает адрес по умолчанию, иначе самый ранний; ErrAddressNotFound, если адресов нет.
	DefaultForUser(ctx context.Context, userID string) (Address, error)
	ListByUser(ctx context.Context, userID string) ([]Address, error)
}

// DiscountCodeRepository — справочник промокодов.
type DiscountCodeRepository interface {
	Get(ctx context.Context, code string) (DiscountCode, error)
	Save(ctx context.Context, code DiscountCode) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
// Enqueue участвует в транзакции из ctx.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, status int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, status int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}
