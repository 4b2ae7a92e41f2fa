package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/platform/pagination"
	"github.com/biccshop/checkout/internal/repositories"
)

const orderColumns = `id, order_date, customer_id, customer_name, customer_email, sub_total, discount,
	discount_reason, coupon_code, shipping_charge, tax, gateway_fee, order_total, shipping_mode,
	shipping_street, shipping_city, shipping_post_code, shipping_state, shipping_country, status,
	payment_method, payment_status, card_holder_name, card_number, card_expiry_date`

const insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
	$21, $22, $23, $24, $25)`

const insertDetailSQL = `INSERT INTO order_details (order_id, line, product_id, seller_id, store_name,
	product_name, product_unit_price, product_thumbnail_url, quantity, sub_total, status, delivery_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// OrderRepository stores orders in the orders and order_details tables.
type OrderRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Postgres-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool) (*OrderRepository, error) {
	if pool == nil {
		return nil, errors.New("order repository requires postgres pool")
	}
	return &OrderRepository{pool: pool}, nil
}

// Insert writes the order row and its details in one transaction.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return repositories.NewStoreError("orders.insert", repositories.ErrorKindConflict, errors.New("order id is required"))
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertOrderSQL,
			order.ID, order.OrderDate.UTC(), order.CustomerID, order.CustomerName, order.CustomerEmail,
			order.SubTotal, order.Discount, order.DiscountReason, order.CouponCode, order.ShippingCharge,
			order.Tax, order.GatewayFee, order.OrderTotal, string(order.ShippingMode),
			order.ShippingStreet, order.ShippingCity, order.ShippingPostCode, order.ShippingState,
			order.ShippingCountry, order.Status, string(order.PaymentMethod), string(order.PaymentStatus),
			order.CardHolderName, order.CardNumber, order.CardExpiryDate,
		); err != nil {
			return err
		}
		if len(order.OrderDetails) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for i, d := range order.OrderDetails {
			batch.Queue(insertDetailSQL,
				order.ID, i+1, d.ProductID, d.SellerID, d.StoreName, d.ProductName, d.ProductUnitPrice,
				d.ProductThumbnailURL, d.Quantity, d.SubTotal, d.Status, d.DeliveryDate,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	return wrapError("orders.insert", err)
}

// FindByID loads the order with its details in line order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, strings.TrimSpace(orderID))
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, wrapError("orders.find", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT product_id, seller_id, store_name, product_name,
	product_unit_price, product_thumbnail_url, quantity, sub_total, status, delivery_date
FROM order_details WHERE order_id = $1 ORDER BY line`, order.ID)
	if err != nil {
		return domain.Order{}, wrapError("orders.details", err)
	}
	details, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderDetail, error) {
		var d domain.OrderDetail
		err := row.Scan(&d.ProductID, &d.SellerID, &d.StoreName, &d.ProductName, &d.ProductUnitPrice,
			&d.ProductThumbnailURL, &d.Quantity, &d.SubTotal, &d.Status, &d.DeliveryDate)
		if d.DeliveryDate != nil {
			utc := d.DeliveryDate.UTC()
			d.DeliveryDate = &utc
		}
		return d, err
	})
	if err != nil {
		return domain.Order{}, wrapError("orders.details", err)
	}
	order.OrderDetails = details
	return order, nil
}

// ListByCustomer pages order headers newest first with a keyset on (order_date, id).
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	key, hasKey, err := pagination.DecodeTimeKey(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, repositories.NewStoreError("orders.list", repositories.ErrorKindConflict, err)
	}
	limit := pager.PageSize
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1`
	args := []any{strings.TrimSpace(customerID)}
	if hasKey {
		query += ` AND (order_date, id) < ($2, $3)`
		args = append(args, key.At.UTC(), key.ID)
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(` ORDER BY order_date DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, wrapError("orders.list", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, wrapError("orders.list", err)
	}

	page := domain.CursorPage[domain.Order]{Items: orders}
	if len(orders) > limit {
		page.Items = orders[:limit]
		last := page.Items[limit-1]
		token, err := pagination.EncodeTimeKey(pagination.TimeKey{At: last.OrderDate, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var orderDate time.Time
	var shippingMode, paymentMethod, payStatus string
	err := row.Scan(&o.ID, &orderDate, &o.CustomerID, &o.CustomerName, &o.CustomerEmail, &o.SubTotal,
		&o.Discount, &o.DiscountReason, &o.CouponCode, &o.ShippingCharge, &o.Tax, &o.GatewayFee,
		&o.OrderTotal, &shippingMode, &o.ShippingStreet, &o.ShippingCity, &o.ShippingPostCode,
		&o.ShippingState, &o.ShippingCountry, &o.Status, &paymentMethod, &payStatus,
		&o.CardHolderName, &o.CardNumber, &o.CardExpiryDate)
	if err != nil {
		return domain.Order{}, err
	}
	o.OrderDate = orderDate.UTC()
	o.ShippingMode = domain.ShippingMode(shippingMode)
	o.PaymentMethod = domain.PaymentMethod(paymentMethod)
	o.PaymentStatus = domain.PaymentStatus(payStatus)
	return o, nil
}
