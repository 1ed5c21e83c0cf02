package domain

import "time"

type Product struct {
	ID                string    `json:"id"`
	Barcode           string    `json:"barcode"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	PriceCents        int64     `json:"price_cents"`
	CostCents         int64     `json:"cost_cents"`
	Stock             int       `json:"stock"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	Unit              string    `json:"unit"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Barcode           string `json:"barcode"`
	Name              string `json:"name"`
	Category          string `json:"category"`
	PriceCents        int64  `json:"price_cents"`
	CostCents         int64  `json:"cost_cents"`
	Stock             int    `json:"stock"`
	LowStockThreshold int    `json:"low_stock_threshold"`
	Unit              string `json:"unit"`
}

type ProductUpdateRequest struct {
	Barcode           *string `json:"barcode,omitempty"`
	Name              *string `json:"name,omitempty"`
	Category          *string `json:"category,omitempty"`
	PriceCents        *int64  `json:"price_cents,omitempty"`
	CostCents         *int64  `json:"cost_cents,omitempty"`
	Stock             *int    `json:"stock,omitempty"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty"`
	Unit              *string `json:"unit,omitempty"`
}

type ProductListResponse struct {
	Products []Product `json:"products"`
}

type StockAdjustRequest struct {
	Delta int `json:"delta"`
}

// CartLine carries a catalog snapshot so the register keeps working
// with the prices it quoted even if the catalog changes mid-sale.
// Finalization re-reads the catalog anyway.
type CartLine struct {
	ProductID      string `json:"product_id"`
	Barcode        string `json:"barcode"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	UnitCostCents  int64  `json:"unit_cost_cents"`
	Quantity       int    `json:"quantity"`
	DiscountCents  int64  `json:"discount_cents"`
}

type Cart struct {
	SessionID          string     `json:"session_id"`
	Lines              []CartLine `json:"lines"`
	OrderDiscountCents int64      `json:"order_discount_cents"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type CartAddItemRequest struct {
	Barcode   string `json:"barcode,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type CartQuantityRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// DiscountRequest sets a discount either as an absolute amount or as a
// percentage. When both are present the amount wins; percent is only an
// input convenience and is never stored.
type DiscountRequest struct {
	ProductID   string   `json:"product_id,omitempty"`
	AmountCents *int64   `json:"amount_cents,omitempty"`
	Percent     *float64 `json:"percent,omitempty"`
}

type CartView struct {
	Cart    Cart          `json:"cart"`
	Totals  CartTotals    `json:"totals"`
	Percent []LinePercent `json:"line_discount_percents,omitempty"`
}

type LinePercent struct {
	ProductID string  `json:"product_id"`
	Percent   float64 `json:"percent"`
}

type CartTotals struct {
	SubtotalCents           int64   `json:"subtotal_cents"`
	LineDiscountCents       int64   `json:"line_discount_cents"`
	OrderDiscountCents      int64   `json:"order_discount_cents"`
	DiscountedSubtotalCents int64   `json:"discounted_subtotal_cents"`
	EffectiveDiscountCents  int64   `json:"effective_discount_cents"`
	TaxCents                int64   `json:"tax_cents"`
	TotalCents              int64   `json:"total_cents"`
	ProfitCents             int64   `json:"profit_cents"`
	ItemCount               int     `json:"item_count"`
	OrderDiscountPercent    float64 `json:"order_discount_percent"`
}

type CheckoutRequest struct {
	SessionID     string `json:"session_id"`
	PaymentMethod string `json:"payment_method"`
}

// SaleDraft is what checkout hands to the store. The store re-reads
// product prices and costs inside its transaction and recomputes every
// total, so callers cannot finalize stale or tampered amounts.
type SaleDraft struct {
	Lines              []SaleDraftLine
	OrderDiscountCents int64
	TaxRateBP          int64
	PaymentMethod      string
	CashierName        string
}

type SaleDraftLine struct {
	ProductID     string
	Quantity      int
	DiscountCents int64
}

type SaleLine struct {
	ProductID      string `json:"product_id"`
	Barcode        string `json:"barcode"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	UnitCostCents  int64  `json:"unit_cost_cents"`
	Quantity       int    `json:"quantity"`
	DiscountCents  int64  `json:"discount_cents"`
}

type Sale struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	Lines         []SaleLine `json:"lines"`
	SubtotalCents int64      `json:"subtotal_cents"`
	DiscountCents int64      `json:"discount_cents"`
	TaxCents      int64      `json:"tax_cents"`
	TotalCents    int64      `json:"total_cents"`
	ProfitCents   int64      `json:"profit_cents"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	CashierName   string     `json:"cashier_name,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
}

type SaleListResponse struct {
	Sales []Sale `json:"sales"`
}

type SaleLookupResponse struct {
	Found bool  `json:"found"`
	Sale  *Sale `json:"sale,omitempty"`
}

type RefundRequest struct {
	OrderID string `json:"order_id"`
}

type DailyPoint struct {
	Date         string `json:"date"`
	RevenueCents int64  `json:"revenue_cents"`
	ProfitCents  int64  `json:"profit_cents"`
	Orders       int    `json:"orders"`
}

type CategorySlice struct {
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
}

type TopProduct struct {
	Barcode      string `json:"barcode"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	RevenueCents int64  `json:"revenue_cents"`
}

type ReportStats struct {
	RevenueCents      int64 `json:"revenue_cents"`
	ProfitCents       int64 `json:"profit_cents"`
	Orders            int   `json:"orders"`
	AverageOrderCents int64 `json:"average_order_cents"`
	ItemsSold         int   `json:"items_sold"`
}

type SalesReport struct {
	From        string          `json:"from"`
	To          string          `json:"to"`
	Daily       []DailyPoint    `json:"daily"`
	Categories  []CategorySlice `json:"categories"`
	TopProducts []TopProduct    `json:"top_products"`
	Stats       ReportStats     `json:"stats"`
}

type ImportRowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Imported int              `json:"imported"`
	Updated  int              `json:"updated"`
	Failed   int              `json:"failed"`
	Errors   []ImportRowError `json:"errors,omitempty"`
}

type UnlockRequest struct {
	Code string `json:"code"`
}

type UnlockResponse struct {
	Unlocked bool `json:"unlocked"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusRefunded  = "refunded"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)
