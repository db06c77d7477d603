// Package catalog 保存聊天助手可以绑定到图表上的静态示例数据集。
// 数据集在运行期间只读，所有对外返回的行都是副本。
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// 数据集名称
const (
	MonthlyTrends   = "monthly-trends"
	StatusBreakdown = "status-breakdown"
	TopCategories   = "top-categories"
	CategoryRevenue = "category-revenue"
	WidgetRevenue   = "widget-revenue"
	WidgetStatus    = "widget-status"
)

// ChartKind 是图表渲染端支持的图表类型。
type ChartKind string

const (
	ChartBar  ChartKind = "bar"
	ChartLine ChartKind = "line"
	ChartPie  ChartKind = "pie"
)

var (
	ErrUnknownDataset   = errors.New("unknown dataset")
	ErrUnsupportedChart = errors.New("unsupported chart kind")
	ErrShapeMismatch    = errors.New("dataset shape does not fit chart kind")
)

// Row 是一行以字段名为键的数据。
type Row map[string]interface{}

// Dataset 是一个命名的示例数据集。
type Dataset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Rows        []Row  `json:"rows"`
}

var datasets = map[string]Dataset{
	MonthlyTrends: {
		Name:        MonthlyTrends,
		Description: "Monthly transactions, revenue and average amount for the last six months",
		Rows: []Row{
			{"month": "Jan", "transactions": 240, "revenue": 4000, "avgAmount": 16.67},
			{"month": "Feb", "transactions": 139, "revenue": 3000, "avgAmount": 21.58},
			{"month": "Mar", "transactions": 180, "revenue": 2000, "avgAmount": 11.11},
			{"month": "Apr", "transactions": 221, "revenue": 2780, "avgAmount": 12.58},
			{"month": "May", "transactions": 250, "revenue": 1890, "avgAmount": 7.56},
			{"month": "Jun", "transactions": 210, "revenue": 2390, "avgAmount": 11.38},
		},
	},
	StatusBreakdown: {
		Name:        StatusBreakdown,
		Description: "Transaction counts by status",
		Rows: []Row{
			{"name": "Completed", "value": 1180, "color": "#10B981"},
			{"name": "Pending", "value": 67, "color": "#F59E0B"},
			{"name": "Failed", "value": 40, "color": "#EF4444"},
		},
	},
	TopCategories: {
		Name:        TopCategories,
		Description: "Revenue and transaction totals per business category",
		Rows: []Row{
			{"category": "E-commerce", "amount": 8500, "transactions": 450},
			{"category": "Services", "amount": 6200, "transactions": 320},
			{"category": "Digital Products", "amount": 4800, "transactions": 280},
			{"category": "Subscriptions", "amount": 3200, "transactions": 180},
		},
	},
	WidgetRevenue: {
		Name:        WidgetRevenue,
		Description: "Monthly revenue and transactions shown by the chat widget",
		Rows: []Row{
			{"month": "Jan", "revenue": 4000, "transactions": 240},
			{"month": "Feb", "revenue": 3000, "transactions": 139},
			{"month": "Mar", "revenue": 2000, "transactions": 180},
			{"month": "Apr", "revenue": 2780, "transactions": 221},
			{"month": "May", "revenue": 1890, "transactions": 250},
			{"month": "Jun", "revenue": 2390, "transactions": 210},
		},
	},
	WidgetStatus: {
		Name:        WidgetStatus,
		Description: "Transaction status split shown by the chat widget",
		Rows: []Row{
			{"name": "Completed", "value": 400, "color": "#10B981"},
			{"name": "Pending", "value": 300, "color": "#F59E0B"},
			{"name": "Failed", "value": 100, "color": "#EF4444"},
		},
	},
}

func init() {
	// category-revenue 是 top-categories 的图表友好形式：category/amount -> name/revenue
	src := datasets[TopCategories]
	rows := make([]Row, 0, len(src.Rows))
	for _, r := range src.Rows {
		rows = append(rows, Row{
			"name":         r["category"],
			"revenue":      r["amount"],
			"transactions": r["transactions"],
		})
	}
	datasets[CategoryRevenue] = Dataset{
		Name:        CategoryRevenue,
		Description: "Top categories reshaped for bar charts",
		Rows:        rows,
	}
}

var sampleImages = []string{
	"https://images.unsplash.com/photo-1649972904349-6e44c42644a7?w=400&h=300&fit=crop",
	"https://images.unsplash.com/photo-1488590528505-98d2b5aba04b?w=400&h=300&fit=crop",
	"https://images.unsplash.com/photo-1518770660439-4636190af475?w=400&h=300&fit=crop",
}

// SampleImages 返回内置的示例图片地址。
func SampleImages() []string {
	out := make([]string, len(sampleImages))
	copy(out, sampleImages)
	return out
}

// Names 返回所有数据集名称（已排序）。
func Names() []string {
	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup 返回数据集的副本。
func Lookup(name string) (Dataset, bool) {
	ds, ok := datasets[name]
	if !ok {
		return Dataset{}, false
	}
	ds.Rows = copyRows(ds.Rows)
	return ds, true
}

// Rows 返回数据集行的副本。
func Rows(name string) ([]Row, error) {
	ds, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	return ds.Rows, nil
}

// Materialize 校验图表类型与数据集后，把行序列化为可以直接交给渲染端的 JSON。
func Materialize(kind ChartKind, name string) (json.RawMessage, error) {
	if err := Validate(kind, name); err != nil {
		return nil, err
	}
	b, err := json.Marshal(datasets[name].Rows)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dataset %s: %w", name, err)
	}
	return b, nil
}

// Validate 检查数据集存在且字段满足图表类型的要求：
// bar/line 需要 month 或 name 作为标签列以及至少一个数值列；pie 需要 name、value、color。
func Validate(kind ChartKind, name string) error {
	if !SupportedKind(kind) {
		return fmt.Errorf("%w: %q", ErrUnsupportedChart, kind)
	}
	ds, ok := datasets[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	if len(ds.Rows) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrShapeMismatch, name)
	}
	for _, row := range ds.Rows {
		if err := checkRow(kind, row); err != nil {
			return fmt.Errorf("%w: %s as %s: %v", ErrShapeMismatch, name, kind, err)
		}
	}
	return nil
}

// SupportedKind 报告图表类型是否可被渲染。
func SupportedKind(kind ChartKind) bool {
	switch kind {
	case ChartBar, ChartLine, ChartPie:
		return true
	}
	return false
}

func checkRow(kind ChartKind, row Row) error {
	switch kind {
	case ChartPie:
		if _, ok := row["name"].(string); !ok {
			return errors.New("missing name")
		}
		if !isNumber(row["value"]) {
			return errors.New("missing numeric value")
		}
		if _, ok := row["color"].(string); !ok {
			return errors.New("missing color")
		}
		return nil
	case ChartBar, ChartLine:
		_, hasMonth := row["month"].(string)
		_, hasName := row["name"].(string)
		if !hasMonth && !hasName {
			return errors.New("missing month or name label")
		}
		for k, v := range row {
			if k != "month" && k != "name" && isNumber(v) {
				return nil
			}
		}
		return errors.New("missing numeric field")
	default:
		return ErrUnsupportedChart
	}
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int64, float64:
		return true
	}
	return false
}

func copyRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		cp := make(Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}
