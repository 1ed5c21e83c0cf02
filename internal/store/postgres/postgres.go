package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/orderid"
	"retailpos/backend/internal/pricing"
	"retailpos/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, barcode, name, category, price_cents, cost_cents, stock, low_stock_threshold, unit, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Barcode, &p.Name, &p.Category, &p.PriceCents, &p.CostCents,
		&p.Stock, &p.LowStockThreshold, &p.Unit, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context, category string, search string) ([]domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR barcode LIKE '%' || $2 || '%')
		ORDER BY category, name
	`
	rows, err := s.db.QueryContext(ctx, query, category, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, barcode, name, category, price_cents, cost_cents, stock, low_stock_threshold, unit, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, product.ID, product.Barcode, product.Name, product.Category, product.PriceCents, product.CostCents,
		product.Stock, product.LowStockThreshold, product.Unit, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateBarcode
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE barcode = $1
	`, barcode)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET barcode = $2, name = $3, category = $4, price_cents = $5, cost_cents = $6,
		    stock = $7, low_stock_threshold = $8, unit = $9, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Barcode, product.Name, product.Category, product.PriceCents, product.CostCents,
		product.Stock, product.LowStockThreshold, product.Unit)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateBarcode
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpsertProductByBarcode(ctx context.Context, product domain.Product) (bool, error) {
	if err := validateProduct(product); err != nil {
		return false, err
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	var inserted bool
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, barcode, name, category, price_cents, cost_cents, stock, low_stock_threshold, unit, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
		ON CONFLICT (barcode) DO UPDATE
		SET name = EXCLUDED.name, category = EXCLUDED.category, price_cents = EXCLUDED.price_cents,
		    cost_cents = EXCLUDED.cost_cents, stock = EXCLUDED.stock,
		    low_stock_threshold = EXCLUDED.low_stock_threshold, unit = EXCLUDED.unit, updated_at = now()
		RETURNING (xmax = 0)
	`, product.ID, product.Barcode, product.Name, product.Category, product.PriceCents, product.CostCents,
		product.Stock, product.LowStockThreshold, product.Unit).Scan(&inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING `+productColumns+`
	`, id, delta)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the product is missing or the delta would go negative.
			if _, lookupErr := s.GetProductByID(ctx, id); lookupErr != nil {
				return nil, lookupErr
			}
			return nil, store.ErrInsufficientStock
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE stock <= low_stock_threshold
		ORDER BY stock, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateSale runs the whole finalization in one serializable
// transaction: product rows are locked, prices and costs re-read,
// totals recomputed, the per-day order number advanced, and stock
// decremented. Nothing is visible until commit.
func (s *Store) CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	if len(draft.Lines) == 0 {
		return nil, store.ErrInvalidSale
	}
	if draft.PaymentMethod != domain.PaymentMethodCash && draft.PaymentMethod != domain.PaymentMethodCard {
		return nil, store.ErrInvalidSale
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	productIDs := uniqueProductIDs(draft.Lines)
	if len(productIDs) == 0 {
		return nil, store.ErrInvalidSale
	}

	productRows, err := pgTx.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, productIDs)
	if err != nil {
		return nil, err
	}
	productMap := make(map[string]domain.Product, len(productIDs))
	for productRows.Next() {
		p, err := scanProduct(productRows)
		if err != nil {
			_ = productRows.Close()
			return nil, err
		}
		productMap[p.ID] = p
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	cartLines := make([]domain.CartLine, 0, len(draft.Lines))
	saleLines := make([]domain.SaleLine, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidSale
		}
		product, exists := productMap[line.ProductID]
		if !exists {
			return nil, fmt.Errorf("product %s unavailable: %w", line.ProductID, store.ErrNotFound)
		}
		if product.Stock < line.Quantity {
			return nil, store.ErrInsufficientStock
		}
		product.Stock -= line.Quantity
		productMap[line.ProductID] = product

		cartLines = append(cartLines, domain.CartLine{
			ProductID:      product.ID,
			UnitPriceCents: product.PriceCents,
			UnitCostCents:  product.CostCents,
			Quantity:       line.Quantity,
			DiscountCents:  line.DiscountCents,
		})
		saleLines = append(saleLines, domain.SaleLine{
			ProductID:      product.ID,
			Barcode:        product.Barcode,
			Name:           product.Name,
			Category:       product.Category,
			UnitPriceCents: product.PriceCents,
			UnitCostCents:  product.CostCents,
			Quantity:       line.Quantity,
			DiscountCents:  pricing.ClampLineDiscount(line.DiscountCents, product.PriceCents*int64(line.Quantity)),
		})
	}

	totals := pricing.Calculate(cartLines, draft.OrderDiscountCents, draft.TaxRateBP)
	if totals.TotalCents <= 0 {
		return nil, store.ErrInvalidSale
	}

	now := time.Now().UTC()
	var seq int
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO order_counters (day, n)
		VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET n = order_counters.n + 1
		RETURNING n
	`, nowDateUTC(now)).Scan(&seq)
	if err != nil {
		return nil, err
	}
	if seq > orderid.MaxPerDay {
		return nil, fmt.Errorf("daily order numbers exhausted: %w", store.ErrInvalidSale)
	}

	sale := domain.Sale{
		ID:            uuid.NewString(),
		OrderID:       orderid.Format(now, seq),
		Lines:         saleLines,
		SubtotalCents: totals.SubtotalCents,
		DiscountCents: totals.EffectiveDiscountCents,
		TaxCents:      totals.TaxCents,
		TotalCents:    totals.TotalCents,
		ProfitCents:   totals.ProfitCents,
		PaymentMethod: draft.PaymentMethod,
		Status:        domain.SaleStatusCompleted,
		CashierName:   draft.CashierName,
		CreatedAt:     now,
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, order_id, subtotal_cents, discount_cents, tax_cents, total_cents,
			profit_cents, payment_method, status, cashier_name, created_at, refunded_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, sale.ID, sale.OrderID, sale.SubtotalCents, sale.DiscountCents, sale.TaxCents, sale.TotalCents,
		sale.ProfitCents, sale.PaymentMethod, sale.Status, nullIfEmpty(sale.CashierName), sale.CreatedAt, nil)
	if err != nil {
		return nil, err
	}

	for _, line := range sale.Lines {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, barcode, name, category, unit_price_cents, unit_cost_cents, qty, discount_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, sale.ID, line.ProductID, line.Barcode, line.Name, line.Category,
			line.UnitPriceCents, line.UnitCostCents, line.Quantity, line.DiscountCents)
		if err != nil {
			return nil, err
		}
		_, err = pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = now()
			WHERE id = $2
		`, line.Quantity, line.ProductID)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &sale, nil
}

const saleColumns = `id, order_id, subtotal_cents, discount_cents, tax_cents, total_cents, profit_cents, payment_method, status, cashier_name, created_at, refunded_at`

func scanSale(row interface{ Scan(...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	var cashier sql.NullString
	var refundedAt sql.NullTime
	err := row.Scan(&sale.ID, &sale.OrderID, &sale.SubtotalCents, &sale.DiscountCents, &sale.TaxCents,
		&sale.TotalCents, &sale.ProfitCents, &sale.PaymentMethod, &sale.Status, &cashier, &sale.CreatedAt, &refundedAt)
	if err != nil {
		return sale, err
	}
	if cashier.Valid {
		sale.CashierName = cashier.String
	}
	if refundedAt.Valid {
		at := refundedAt.Time.UTC()
		sale.RefundedAt = &at
	}
	return sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1
	`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := s.loadSaleItems(ctx, []*domain.Sale{&sale}); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) FindSaleByOrderID(ctx context.Context, query string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE order_id = $1
		   OR order_id LIKE '%' || $1 || '%'
		ORDER BY (order_id = $1) DESC, created_at DESC
		LIMIT 1
	`, query)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := s.loadSaleItems(ctx, []*domain.Sale{&sale}); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at DESC, order_id DESC
	`, nullTimeValue(from), nullTimeValue(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 128)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*domain.Sale, len(sales))
	for i := range sales {
		refs[i] = &sales[i]
	}
	if err := s.loadSaleItems(ctx, refs); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) loadSaleItems(ctx context.Context, sales []*domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Sale, len(sales))
	ids := make([]string, 0, len(sales))
	for _, sale := range sales {
		byID[sale.ID] = sale
		ids = append(ids, sale.ID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, barcode, name, category, unit_price_cents, unit_cost_cents, qty, discount_cents
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, barcode
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID string
		var line domain.SaleLine
		if err := rows.Scan(&saleID, &line.ProductID, &line.Barcode, &line.Name, &line.Category,
			&line.UnitPriceCents, &line.UnitCostCents, &line.Quantity, &line.DiscountCents); err != nil {
			return err
		}
		if sale, ok := byID[saleID]; ok {
			sale.Lines = append(sale.Lines, line)
		}
	}
	return rows.Err()
}

// MarkSaleRefunded flips the sale to refunded and restores stock for
// its lines in the same transaction. Refunding twice is rejected.
func (s *Store) MarkSaleRefunded(ctx context.Context, id string, at time.Time) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status string
	err = pgTx.QueryRowContext(ctx, `
		SELECT status
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status != domain.SaleStatusCompleted {
		return nil, store.ErrInvalidSale
	}

	refundedAt := at.UTC()
	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales
		SET status = $2, refunded_at = $3
		WHERE id = $1
	`, id, domain.SaleStatusRefunded, refundedAt)
	if err != nil {
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE products p
		SET stock = p.stock + items.qty, updated_at = now()
		FROM (
			SELECT product_id, SUM(qty) AS qty
			FROM sale_items
			WHERE sale_id = $1
			GROUP BY product_id
		) AS items
		WHERE p.id = items.product_id
	`, id)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.GetSaleByID(ctx, id)
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidSale
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("user %s already exists", user.Username)
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func validateProduct(product domain.Product) error {
	if product.Barcode == "" || product.Name == "" {
		return store.ErrInvalidSale
	}
	if product.PriceCents < 0 || product.CostCents < 0 || product.Stock < 0 {
		return store.ErrInvalidSale
	}
	return nil
}

func uniqueProductIDs(lines []domain.SaleDraftLine) []string {
	if len(lines) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if line.ProductID == "" {
			continue
		}
		set[line.ProductID] = struct{}{}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nowDateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTimeValue(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}
