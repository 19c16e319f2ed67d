package infra

import (
	"fmt"

	"stockpos/internal/model"

	"github.com/xuri/excelize/v2"
)

const (
	salesSheet = "Sales"
	itemsSheet = "Items"
)

// RenderSalesWorkbook writes one row per sale on the first sheet and one row
// per line item on the second. Sales must be hydrated.
func RenderSalesWorkbook(sales []model.Sale) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", salesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	saleHeader := []interface{}{"Sale ID", "Date", "Customer", "Phone", "Payment", "Status", "Paid at", "Total", "Created by"}
	itemHeader := []interface{}{"Sale ID", "Product ID", "Product", "Quantity", "Unit price", "Total"}
	if err := writeRow(f, salesSheet, 1, saleHeader); err != nil {
		return nil, err
	}
	if err := writeRow(f, itemsSheet, 1, itemHeader); err != nil {
		return nil, err
	}
	_ = f.SetRowStyle(salesSheet, 1, 1, bold)
	_ = f.SetRowStyle(itemsSheet, 1, 1, bold)

	itemRow := 2
	for i, s := range sales {
		paidAt := ""
		if s.PaymentDate != nil {
			paidAt = s.PaymentDate.Format("2006-01-02 15:04:05")
		}
		creator := s.CreatedBy.String()
		if s.Creator != nil {
			creator = s.Creator.Username
		}
		total, _ := s.TotalAmount.Float64()
		row := []interface{}{
			s.ID.String(), s.SaleDate.Format("2006-01-02 15:04:05"), s.CustomerName, s.CustomerPhone,
			string(s.PaymentType), string(s.Status), paidAt, total, creator,
		}
		if err := writeRow(f, salesSheet, i+2, row); err != nil {
			return nil, err
		}

		for _, it := range s.Items {
			name := ""
			if it.Product != nil {
				name = it.Product.Name
			}
			unit, _ := it.UnitPrice.Float64()
			line, _ := it.TotalPrice.Float64()
			if err := writeRow(f, itemsSheet, itemRow, []interface{}{
				s.ID.String(), it.ProductID.String(), name, it.Quantity, unit, line,
			}); err != nil {
				return nil, err
			}
			itemRow++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
