package service

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

var orderExportHeaders = []string{
	"序号", "药品ID", "数量", "单价", "小计", "已入库",
}

// ExportOrder 导出采购订单为xlsx
func (s *OrderService) ExportOrder(ctx context.Context, id string) (*excelize.File, string, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "采购订单"
	f.SetSheetName("Sheet1", sheet)

	// 订单抬头
	f.SetCellValue(sheet, "A1", "订单号")
	f.SetCellValue(sheet, "B1", order.OrderNumber)
	f.SetCellValue(sheet, "A2", "状态")
	f.SetCellValue(sheet, "B2", order.Status)
	f.SetCellValue(sheet, "A3", "供应商")
	if order.Supplier != nil {
		f.SetCellValue(sheet, "B3", order.Supplier.Name)
	} else {
		f.SetCellValue(sheet, "B3", order.SupplierID)
	}
	f.SetCellValue(sheet, "A4", "创建时间")
	f.SetCellValue(sheet, "B4", order.CreatedAt.Format("2006-01-02 15:04"))

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	headerRow := 6
	for i, h := range orderExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s%d", col, headerRow)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, item := range order.Items {
		row := headerRow + 1 + rowIdx
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), rowIdx+1)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), item.ProductID)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), item.OrderedQuantity)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), item.UnitPrice)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), item.TotalPrice)
		stocked := "否"
		if item.StockedAt != nil {
			stocked = "是"
		}
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), stocked)
	}

	// 底部汇总行
	summaryRow := headerRow + 1 + len(order.Items)
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "汇总")
	f.SetCellValue(sheet, fmt.Sprintf("C%d", summaryRow), fmt.Sprintf("行项数: %d", len(order.Items)))
	f.SetCellValue(sheet, fmt.Sprintf("E%d", summaryRow), order.TotalAmount)
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("F%d", summaryRow), summaryStyle)

	colWidths := []float64{6, 40, 8, 10, 12, 8}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("采购订单_%s.xlsx", order.OrderNumber)
	return f, filename, nil
}
