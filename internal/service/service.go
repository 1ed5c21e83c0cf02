package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"retailpos/backend/internal/cart"
	"retailpos/backend/internal/csvio"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/pricing"
	"retailpos/backend/internal/report"
	"retailpos/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	carts     *cart.Manager
	taxRateBP int64
}

func New(repo store.Repository, carts *cart.Manager, taxRateBP int64) *Service {
	if taxRateBP < 0 {
		taxRateBP = 0
	}

	return &Service{
		repo:      repo,
		carts:     carts,
		taxRateBP: taxRateBP,
	}
}

func (s *Service) ListProducts(ctx context.Context, category string, search string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, strings.TrimSpace(category), strings.TrimSpace(search))
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, store.ErrInvalidSale
	}
	product, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	product, err := productFromRequest(req)
	if err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.Barcode, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PriceCents, created.Stock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidSale
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Barcode != nil {
		barcode := strings.TrimSpace(*req.Barcode)
		if barcode == "" {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.Barcode = barcode
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.CostCents != nil {
		if *req.CostCents < 0 {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.CostCents = *req.CostCents
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.Stock = *req.Stock
	}
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.LowStockThreshold = *req.LowStockThreshold
	}
	if req.Unit != nil {
		updated.Unit = defaultString(*req.Unit, csvio.DefaultUnit)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.Barcode, fmt.Sprintf("price=%d,cost=%d,stock=%d", saved.PriceCents, saved.CostCents, saved.Stock))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidSale
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}
	if delta == 0 {
		return domain.Product{}, store.ErrInvalidSale
	}

	updated, err := s.repo.AdjustStock(ctx, id, delta)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "stock_adjust", "product", updated.Barcode, fmt.Sprintf("delta=%d,stock=%d", delta, updated.Stock))
	return *updated, nil
}

func (s *Service) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStock(ctx)
}

// ImportProducts parses a CSV upload and upserts each valid row by
// barcode. Bad rows are reported but never abort the rest of the file.
func (s *Service) ImportProducts(ctx context.Context, r io.Reader) (domain.ImportResult, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.ImportResult{}, fmt.Errorf("admin role required")
	}

	rows, rowErrs, err := csvio.ParseProducts(r)
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("%w: %v", store.ErrInvalidSale, err)
	}

	result := domain.ImportResult{Errors: rowErrs}
	for _, row := range rows {
		product, err := productFromRequest(row.Product)
		if err != nil {
			result.Errors = append(result.Errors, domain.ImportRowError{Line: row.Line, Reason: err.Error()})
			continue
		}
		created, err := s.repo.UpsertProductByBarcode(ctx, product)
		if err != nil {
			result.Errors = append(result.Errors, domain.ImportRowError{Line: row.Line, Reason: err.Error()})
			continue
		}
		if created {
			result.Imported++
		} else {
			result.Updated++
		}
	}
	result.Failed = len(result.Errors)

	s.logAudit(ctx, "product_import", "catalog", "", fmt.Sprintf("imported=%d,updated=%d,failed=%d", result.Imported, result.Updated, result.Failed))
	return result, nil
}

func (s *Service) ExportProducts(ctx context.Context, w io.Writer) error {
	products, err := s.repo.ListProducts(ctx, "", "")
	if err != nil {
		return err
	}
	return csvio.WriteProducts(w, products)
}

func (s *Service) ExportLowStock(ctx context.Context, w io.Writer) error {
	products, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return err
	}
	return csvio.WriteLowStock(w, products)
}

func (s *Service) ExportSales(ctx context.Context, w io.Writer, from time.Time, to time.Time) error {
	sales, err := s.repo.ListSales(ctx, from, to)
	if err != nil {
		return err
	}
	return csvio.WriteSales(w, sales)
}

func (s *Service) WriteImportTemplate(w io.Writer) error {
	return csvio.WriteImportTemplate(w)
}

func (s *Service) GetCart(ctx context.Context, sessionID string) (domain.CartView, error) {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(c), nil
}

// AddToCart resolves the product by barcode (the scanner path) or by
// ID, then merges it into the session's cart.
func (s *Service) AddToCart(ctx context.Context, sessionID string, req domain.CartAddItemRequest) (domain.CartView, error) {
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}

	var (
		product *domain.Product
		err     error
	)
	switch {
	case strings.TrimSpace(req.Barcode) != "":
		product, err = s.repo.GetProductByBarcode(ctx, strings.TrimSpace(req.Barcode))
	case strings.TrimSpace(req.ProductID) != "":
		product, err = s.repo.GetProductByID(ctx, strings.TrimSpace(req.ProductID))
	default:
		return domain.CartView{}, fmt.Errorf("%w: barcode or product_id is required", store.ErrInvalidSale)
	}
	if err != nil {
		return domain.CartView{}, err
	}
	if product.Stock < qty {
		return domain.CartView{}, store.ErrInsufficientStock
	}

	c, err := s.carts.AddItem(ctx, sessionID, *product, qty)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(c), nil
}

func (s *Service) SetCartQuantity(ctx context.Context, sessionID string, req domain.CartQuantityRequest) (domain.CartView, error) {
	c, err := s.carts.SetQuantity(ctx, sessionID, strings.TrimSpace(req.ProductID), req.Quantity)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(c), nil
}

func (s *Service) SetLineDiscount(ctx context.Context, sessionID string, req domain.DiscountRequest) (domain.CartView, error) {
	c, err := s.carts.SetLineDiscount(ctx, sessionID, strings.TrimSpace(req.ProductID), req.AmountCents, req.Percent)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(c), nil
}

func (s *Service) SetOrderDiscount(ctx context.Context, sessionID string, req domain.DiscountRequest) (domain.CartView, error) {
	c, err := s.carts.SetOrderDiscount(ctx, sessionID, req.AmountCents, req.Percent)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(c), nil
}

func (s *Service) ClearCart(ctx context.Context, sessionID string) error {
	return s.carts.Clear(ctx, sessionID)
}

// Checkout finalizes the session's cart as a sale. The store performs
// the sale insert, stock decrement, and order numbering in one
// transaction; the cart is only cleared after that commits.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Sale, error) {
	method, ok := NormalizePaymentMethod(req.PaymentMethod)
	if !ok {
		return domain.Sale{}, fmt.Errorf("%w: unsupported payment method %q", store.ErrInvalidSale, req.PaymentMethod)
	}

	c, err := s.carts.Get(ctx, req.SessionID)
	if err != nil {
		return domain.Sale{}, err
	}
	if len(c.Lines) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: cart is empty", store.ErrInvalidSale)
	}

	draft := domain.SaleDraft{
		OrderDiscountCents: c.OrderDiscountCents,
		TaxRateBP:          s.taxRateBP,
		PaymentMethod:      method,
	}
	if actor, ok := ActorFromContext(ctx); ok {
		draft.CashierName = actor.Username
	}
	for _, line := range c.Lines {
		draft.Lines = append(draft.Lines, domain.SaleDraftLine{
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			DiscountCents: line.DiscountCents,
		})
	}

	sale, err := s.repo.CreateSale(ctx, draft)
	if err != nil {
		return domain.Sale{}, err
	}

	if err := s.carts.Clear(ctx, req.SessionID); err != nil {
		log.Printf("[service] WARN: failed to clear cart session=%s after checkout: %v", req.SessionID, err)
	}

	s.logAudit(ctx, "checkout", "sale", sale.OrderID, fmt.Sprintf("total=%d,payment=%s", sale.TotalCents, sale.PaymentMethod))
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, from, to)
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// FindSaleByOrderID powers the refund screen: an exact order ID wins,
// otherwise the newest sale containing the digits. Queries shorter
// than three digits match too much to be useful.
func (s *Service) FindSaleByOrderID(ctx context.Context, query string) (domain.SaleLookupResponse, error) {
	query = strings.TrimSpace(query)
	if len(query) < 3 || !isDigits(query) {
		return domain.SaleLookupResponse{}, fmt.Errorf("%w: order id query must be at least 3 digits", store.ErrInvalidSale)
	}

	sale, err := s.repo.FindSaleByOrderID(ctx, query)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SaleLookupResponse{Found: false}, nil
		}
		return domain.SaleLookupResponse{}, err
	}
	return domain.SaleLookupResponse{Found: true, Sale: sale}, nil
}

// RefundSale refunds by exact order ID, restoring stock atomically.
func (s *Service) RefundSale(ctx context.Context, orderID string) (domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Sale{}, fmt.Errorf("admin role required")
	}

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Sale{}, store.ErrInvalidSale
	}

	sale, err := s.repo.FindSaleByOrderID(ctx, orderID)
	if err != nil {
		return domain.Sale{}, err
	}
	if sale.OrderID != orderID {
		// A substring hit is not good enough to move money.
		return domain.Sale{}, store.ErrNotFound
	}

	refunded, err := s.repo.MarkSaleRefunded(ctx, sale.ID, time.Now().UTC())
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "refund", "sale", refunded.OrderID, fmt.Sprintf("total=%d", refunded.TotalCents))
	return *refunded, nil
}

func (s *Service) SalesReport(ctx context.Context, from time.Time, to time.Time, topN int) (domain.SalesReport, error) {
	if to.Before(from) {
		return domain.SalesReport{}, fmt.Errorf("%w: report range end before start", store.ErrInvalidSale)
	}
	sales, err := s.repo.ListSales(ctx, from, to)
	if err != nil {
		return domain.SalesReport{}, err
	}
	return report.Build(sales, from, to, topN), nil
}

func (s *Service) cartView(c *domain.Cart) domain.CartView {
	view := domain.CartView{
		Cart:   *c,
		Totals: pricing.Calculate(c.Lines, c.OrderDiscountCents, s.taxRateBP),
	}
	for _, line := range c.Lines {
		if line.DiscountCents == 0 {
			continue
		}
		view.Percent = append(view.Percent, domain.LinePercent{
			ProductID: line.ProductID,
			Percent:   pricing.PercentFromAmount(line.DiscountCents, line.UnitPriceCents*int64(line.Quantity)),
		})
	}
	return view
}

// NormalizePaymentMethod maps UI payment labels onto the two stored
// methods. The register's "online"/"phonepe" buttons are both card.
func NormalizePaymentMethod(method string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case domain.PaymentMethodCash:
		return domain.PaymentMethodCash, true
	case domain.PaymentMethodCard, "online", "phonepe":
		return domain.PaymentMethodCard, true
	default:
		return "", false
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	log.Printf("[audit] actor=%s role=%s action=%s entity=%s/%s %s", actor.Username, actor.Role, action, entityType, entityID, detail)
}

func productFromRequest(req domain.ProductCreateRequest) (domain.Product, error) {
	barcode := strings.TrimSpace(req.Barcode)
	name := strings.TrimSpace(req.Name)
	if barcode == "" || name == "" {
		return domain.Product{}, fmt.Errorf("%w: barcode and name are required", store.ErrInvalidSale)
	}
	if req.PriceCents < 0 || req.CostCents < 0 || req.Stock < 0 || req.LowStockThreshold < 0 {
		return domain.Product{}, store.ErrInvalidSale
	}

	threshold := req.LowStockThreshold
	if threshold == 0 {
		threshold = csvio.DefaultLowStockThreshold
	}

	return domain.Product{
		Barcode:           barcode,
		Name:              name,
		Category:          strings.TrimSpace(req.Category),
		PriceCents:        req.PriceCents,
		CostCents:         req.CostCents,
		Stock:             req.Stock,
		LowStockThreshold: threshold,
		Unit:              defaultString(req.Unit, csvio.DefaultUnit),
	}, nil
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
