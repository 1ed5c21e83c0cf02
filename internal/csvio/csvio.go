// Package csvio reads product import files and writes the catalog,
// sales, and low-stock exports. Column matching on import is
// case-insensitive and order-free.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"retailpos/backend/internal/domain"
)

const (
	DefaultLowStockThreshold = 10
	DefaultUnit              = "pcs"
)

var requiredColumns = []string{"barcode", "name", "category", "price", "cost", "stock"}

// Row is a parsed import line plus its position in the source file, so
// failures later in the import can still point at the right line.
type Row struct {
	Line    int
	Product domain.ProductCreateRequest
}

// ParseProducts reads a product import file. Rows that cannot be
// parsed are reported individually; the valid rows still come back so
// imports are best-effort rather than all-or-nothing.
func ParseProducts(r io.Reader) ([]Row, []domain.ImportRowError, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("import file is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range requiredColumns {
		if _, ok := cols[required]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var (
		rows    []Row
		rowErrs []domain.ImportRowError
	)
	lineNo := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			rowErrs = append(rowErrs, domain.ImportRowError{Line: lineNo, Reason: err.Error()})
			continue
		}

		field := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		row := domain.ProductCreateRequest{
			Barcode:  field("barcode"),
			Name:     field("name"),
			Category: field("category"),
			Unit:     field("unit"),
		}
		if row.Barcode == "" || row.Name == "" {
			rowErrs = append(rowErrs, domain.ImportRowError{Line: lineNo, Reason: "barcode and name are required"})
			continue
		}
		if row.Unit == "" {
			row.Unit = DefaultUnit
		}

		if row.PriceCents, err = ParseMoney(field("price")); err != nil {
			rowErrs = append(rowErrs, domain.ImportRowError{Line: lineNo, Reason: "invalid price: " + field("price")})
			continue
		}
		if row.CostCents, err = ParseMoney(field("cost")); err != nil {
			rowErrs = append(rowErrs, domain.ImportRowError{Line: lineNo, Reason: "invalid cost: " + field("cost")})
			continue
		}
		if row.Stock, err = parseNonNegativeInt(field("stock")); err != nil {
			rowErrs = append(rowErrs, domain.ImportRowError{Line: lineNo, Reason: "invalid stock: " + field("stock")})
			continue
		}

		row.LowStockThreshold = DefaultLowStockThreshold
		if raw := field("lowstockthreshold"); raw != "" {
			threshold, err := parseNonNegativeInt(raw)
			if err != nil {
				rowErrs = append(rowErrs, domain.ImportRowError{Line: lineNo, Reason: "invalid lowstockthreshold: " + raw})
				continue
			}
			row.LowStockThreshold = threshold
		}

		rows = append(rows, Row{Line: lineNo, Product: row})
	}
	return rows, rowErrs, nil
}

// ParseMoney converts a decimal currency string like "12.50" to cents.
// More than two fraction digits is an error rather than a silent
// truncation.
func ParseMoney(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	negative := strings.HasPrefix(raw, "-")
	if negative {
		return 0, fmt.Errorf("negative amount %q", raw)
	}
	whole, frac, _ := strings.Cut(raw, ".")
	if whole == "" {
		whole = "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	cents := units * 100
	if frac != "" {
		if len(frac) > 2 {
			return 0, fmt.Errorf("amount %q has more than two decimal places", raw)
		}
		for len(frac) < 2 {
			frac += "0"
		}
		fracCents, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse amount %q: %w", raw, err)
		}
		cents += fracCents
	}
	return cents, nil
}

// FormatMoney renders cents as a plain decimal string for export.
func FormatMoney(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func parseNonNegativeInt(raw string) (int, error) {
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if val < 0 {
		return 0, fmt.Errorf("negative value %d", val)
	}
	return val, nil
}

// WriteProducts writes the catalog export.
func WriteProducts(w io.Writer, products []domain.Product) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"barcode", "name", "category", "price", "cost", "stock", "lowStockThreshold", "unit"}); err != nil {
		return err
	}
	for _, p := range products {
		record := []string{
			p.Barcode,
			p.Name,
			p.Category,
			FormatMoney(p.PriceCents),
			FormatMoney(p.CostCents),
			strconv.Itoa(p.Stock),
			strconv.Itoa(p.LowStockThreshold),
			p.Unit,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteImportTemplate writes the product header row plus one example
// row, for downloading as a starting point.
func WriteImportTemplate(w io.Writer) error {
	writer := csv.NewWriter(w)
	rows := [][]string{
		{"barcode", "name", "category", "price", "cost", "stock", "lowstockthreshold", "unit"},
		{"8991002100012", "Instant Noodles", "grocery", "3.50", "2.00", "120", "10", "pcs"},
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

// WriteSales writes the sale-ledger export.
func WriteSales(w io.Writer, sales []domain.Sale) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Order ID", "Date & Time", "Items", "Payment Method", "Subtotal", "Discount", "Total", "Profit"}); err != nil {
		return err
	}
	for _, sale := range sales {
		items := make([]string, 0, len(sale.Lines))
		for _, line := range sale.Lines {
			items = append(items, fmt.Sprintf("%s x%d", line.Name, line.Quantity))
		}
		record := []string{
			sale.OrderID,
			sale.CreatedAt.Format("2006-01-02 15:04:05"),
			strings.Join(items, "; "),
			sale.PaymentMethod,
			FormatMoney(sale.SubtotalCents),
			FormatMoney(sale.DiscountCents),
			FormatMoney(sale.TotalCents),
			FormatMoney(sale.ProfitCents),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteLowStock writes the low-stock export.
func WriteLowStock(w io.Writer, products []domain.Product) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Barcode", "Name", "Category", "Stock", "Threshold"}); err != nil {
		return err
	}
	for _, p := range products {
		record := []string{
			p.Barcode,
			p.Name,
			p.Category,
			strconv.Itoa(p.Stock),
			strconv.Itoa(p.LowStockThreshold),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
