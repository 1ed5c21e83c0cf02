package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/orderid"
	"retailpos/backend/internal/pricing"
	"retailpos/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	barcodeIndex    map[string]string
	salesByID       map[string]*domain.Sale
	salesByOrderID  map[string]string
	usersByUsername map[string]domain.UserAccount
	orderSeq        orderid.Sequencer
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		barcodeIndex:    make(map[string]string),
		salesByID:       make(map[string]*domain.Sale),
		salesByOrderID:  make(map[string]string),
		usersByUsername: seedUsers(),
	}
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	seed := []domain.Product{
		{Barcode: "8991002100012", Name: "Instant Noodles", Category: "grocery", PriceCents: 350, CostCents: 250, Stock: 120, LowStockThreshold: 20, Unit: "pcs"},
		{Barcode: "8991002100029", Name: "Eggs (10 pack)", Category: "grocery", PriceCents: 2650, CostCents: 2250, Stock: 40, LowStockThreshold: 10, Unit: "pack"},
		{Barcode: "8991002100036", Name: "UHT Milk 1L", Category: "dairy", PriceCents: 1890, CostCents: 1350, Stock: 55, LowStockThreshold: 12, Unit: "carton"},
		{Barcode: "8991002100043", Name: "White Bread", Category: "bakery", PriceCents: 1780, CostCents: 1250, Stock: 25, LowStockThreshold: 8, Unit: "loaf"},
		{Barcode: "8991002100050", Name: "Coffee Sachet", Category: "beverage", PriceCents: 260, CostCents: 170, Stock: 200, LowStockThreshold: 40, Unit: "pcs"},
		{Barcode: "8991002100067", Name: "Sugar 1kg", Category: "grocery", PriceCents: 1740, CostCents: 1530, Stock: 35, LowStockThreshold: 10, Unit: "bag"},
		{Barcode: "8991002100074", Name: "Tea Bags", Category: "beverage", PriceCents: 980, CostCents: 720, Stock: 60, LowStockThreshold: 15, Unit: "box"},
		{Barcode: "8991002100081", Name: "Mineral Water 600ml", Category: "beverage", PriceCents: 390, CostCents: 320, Stock: 150, LowStockThreshold: 30, Unit: "bottle"},
		{Barcode: "8991002100098", Name: "Cassava Chips", Category: "snack", PriceCents: 1280, CostCents: 800, Stock: 45, LowStockThreshold: 10, Unit: "bag"},
		{Barcode: "8991002100104", Name: "Chocolate Bar", Category: "snack", PriceCents: 860, CostCents: 560, Stock: 70, LowStockThreshold: 15, Unit: "pcs"},
		{Barcode: "8991002100111", Name: "Bath Soap", Category: "household", PriceCents: 740, CostCents: 500, Stock: 80, LowStockThreshold: 20, Unit: "pcs"},
		{Barcode: "8991002100128", Name: "Shampoo Sachet", Category: "household", PriceCents: 320, CostCents: 210, Stock: 5, LowStockThreshold: 15, Unit: "pcs"},
	}
	for _, p := range seed {
		p.ID = uuid.NewString()
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
		s.barcodeIndex[p.Barcode] = p.ID
	}
	return s
}

func (s *Store) ListProducts(_ context.Context, category string, search string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if category != "" && p.Category != category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(p.Barcode, needle) {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if _, exists := s.barcodeIndex[product.Barcode]; exists {
		return nil, store.ErrDuplicateBarcode
	}

	now := time.Now().UTC()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	s.barcodeIndex[product.Barcode] = product.ID
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.barcodeIndex[barcode]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := s.products[id]
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateProduct(product); err != nil {
		return nil, err
	}
	current, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if other, taken := s.barcodeIndex[product.Barcode]; taken && other != product.ID {
		return nil, store.ErrDuplicateBarcode
	}

	if current.Barcode != product.Barcode {
		delete(s.barcodeIndex, current.Barcode)
		s.barcodeIndex[product.Barcode] = product.ID
	}
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	delete(s.barcodeIndex, product.Barcode)
	return nil
}

func (s *Store) UpsertProductByBarcode(_ context.Context, product domain.Product) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateProduct(product); err != nil {
		return false, err
	}
	now := time.Now().UTC()
	if id, exists := s.barcodeIndex[product.Barcode]; exists {
		current := s.products[id]
		product.ID = id
		product.CreatedAt = current.CreatedAt
		product.UpdatedAt = now
		s.products[id] = product
		return false, nil
	}

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	s.barcodeIndex[product.Barcode] = product.ID
	return true, nil
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	remaining := product.Stock + delta
	if remaining < 0 {
		return nil, store.ErrInsufficientStock
	}
	product.Stock = remaining
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	updated := product
	return &updated, nil
}

func (s *Store) ListLowStock(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0)
	for _, p := range s.products {
		if p.Stock <= p.LowStockThreshold {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Stock == b.Stock {
			return cmpString(a.Name, b.Name)
		}
		if a.Stock < b.Stock {
			return -1
		}
		return 1
	})
	return products, nil
}

// CreateSale finalizes a checkout under one lock: prices and costs are
// re-read from the catalog, totals recomputed, the order number drawn
// from the per-day sequence, and stock decremented. Any failure leaves
// the store untouched.
func (s *Store) CreateSale(_ context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(draft.Lines) == 0 {
		return nil, store.ErrInvalidSale
	}
	if draft.PaymentMethod != domain.PaymentMethodCash && draft.PaymentMethod != domain.PaymentMethodCard {
		return nil, store.ErrInvalidSale
	}

	cartLines := make([]domain.CartLine, 0, len(draft.Lines))
	saleLines := make([]domain.SaleLine, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidSale
		}
		product, exists := s.products[line.ProductID]
		if !exists {
			return nil, fmt.Errorf("product %s unavailable: %w", line.ProductID, store.ErrNotFound)
		}
		if product.Stock < line.Quantity {
			return nil, store.ErrInsufficientStock
		}
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
	seq, ok := s.orderSeq.Next(now)
	if !ok {
		return nil, fmt.Errorf("daily order numbers exhausted: %w", store.ErrInvalidSale)
	}

	sale := &domain.Sale{
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

	for _, line := range saleLines {
		product := s.products[line.ProductID]
		product.Stock -= line.Quantity
		product.UpdatedAt = now
		s.products[line.ProductID] = product
	}

	s.salesByID[sale.ID] = sale
	s.salesByOrderID[sale.OrderID] = sale.ID
	return cloneSale(sale), nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

// FindSaleByOrderID matches exactly first, then falls back to the most
// recent sale whose order ID contains the query.
func (s *Store) FindSaleByOrderID(_ context.Context, query string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.salesByOrderID[query]; ok {
		return cloneSale(s.salesByID[id]), nil
	}

	var best *domain.Sale
	for _, sale := range s.salesByID {
		if !strings.Contains(sale.OrderID, query) {
			continue
		}
		if best == nil || sale.CreatedAt.After(best.CreatedAt) {
			best = sale
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return cloneSale(best), nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if !from.IsZero() && sale.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && sale.CreatedAt.After(to) {
			continue
		}
		sales = append(sales, *cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.OrderID, a.OrderID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return sales, nil
}

// MarkSaleRefunded flips the sale's status and restores its stock in
// the same critical section.
func (s *Store) MarkSaleRefunded(_ context.Context, id string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if sale.Status != domain.SaleStatusCompleted {
		return nil, store.ErrInvalidSale
	}

	sale.Status = domain.SaleStatusRefunded
	refundedAt := at.UTC()
	sale.RefundedAt = &refundedAt

	for _, line := range sale.Lines {
		product, ok := s.products[line.ProductID]
		if !ok {
			// Product deleted since the sale; nothing to restock.
			continue
		}
		product.Stock += line.Quantity
		product.UpdatedAt = refundedAt
		s.products[line.ProductID] = product
	}
	return cloneSale(sale), nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidSale
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("user %s already exists", user.Username)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
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

func cloneSale(sale *domain.Sale) *domain.Sale {
	out := *sale
	out.Lines = append([]domain.SaleLine(nil), sale.Lines...)
	if sale.RefundedAt != nil {
		at := *sale.RefundedAt
		out.RefundedAt = &at
	}
	return &out
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
