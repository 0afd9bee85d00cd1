package azure

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"
	"github.com/zgpcy/azure-resource-explorer/internal/clock"
	"github.com/zgpcy/azure-resource-explorer/internal/logger"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// ServiceCost is the summed cost of one Azure service over the query window
type ServiceCost struct {
	Service  string  `json:"service"`
	Cost     float64 `json:"cost"`
	Currency string  `json:"currency"`
	Days     int     `json:"days"`
}

// CostWindow configures the date range of cost queries
type CostWindow struct {
	DaysToQuery   int
	EndDateOffset int
	// Currency is used when the API response carries no Currency column
	Currency string
}

// UsageFunc runs a Cost Management query against scope
type UsageFunc func(ctx context.Context, scope string, query armcostmanagement.QueryDefinition, cred azcore.TokenCredential) (armcostmanagement.QueryResult, error)

// LiveUsage queries the Azure Cost Management API
func LiveUsage(ctx context.Context, scope string, query armcostmanagement.QueryDefinition, cred azcore.TokenCredential) (armcostmanagement.QueryResult, error) {
	client, err := armcostmanagement.NewQueryClient(cred, nil)
	if err != nil {
		return armcostmanagement.QueryResult{}, fmt.Errorf("failed to create cost management client: %w", err)
	}
	resp, err := client.Usage(ctx, scope, query, nil)
	if err != nil {
		return armcostmanagement.QueryResult{}, err
	}
	return resp.QueryResult, nil
}

// CostClient lists per-service costs of a subscription
type CostClient struct {
	usage  UsageFunc
	window CostWindow
	retry  RetryPolicy
	logger *logger.Logger
	clock  clock.Clock // Time provider for testing
}

// NewCostClient creates a cost client. A nil usage func uses LiveUsage and
// a nil clock the system time.
func NewCostClient(usage UsageFunc, window CostWindow, retry RetryPolicy, clk clock.Clock, log *logger.Logger) *CostClient {
	if usage == nil {
		usage = LiveUsage
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &CostClient{
		usage:  usage,
		window: window,
		retry:  retry,
		logger: log.Component("cost"),
		clock:  clk,
	}
}

// ListServiceCosts returns the costs of the subscription grouped by service,
// most expensive first
func (c *CostClient) ListServiceCosts(ctx context.Context, sub resource.Subscription, cred azcore.TokenCredential) ([]ServiceCost, error) {
	startDate, endDate := c.dateRange()
	scope := fmt.Sprintf("/subscriptions/%s", sub.ID)
	queryDef := c.queryDefinition(startDate, endDate)

	c.logger.Debug("Querying Azure Cost Management API",
		"subscription", sub.Name,
		"start_date", startDate.Format("2006-01-02"),
		"end_date", endDate.Format("2006-01-02"),
		"current_time", c.clock.Now().Format("2006-01-02 15:04:05 MST"))

	var result armcostmanagement.QueryResult
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		r, err := c.usage(ctx, scope, queryDef, cred)
		if err != nil {
			c.logger.Debug("Azure API call failed, will retry",
				"subscription_name", sub.Name,
				"subscription_id", sub.ID,
				"error", err)
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cost query failed for date range %s to %s: %w",
			startDate.Format("2006-01-02"), endDate.Format("2006-01-02"), err)
	}

	return c.summarize(c.parseResponse(result)), nil
}

// dateRange returns the first and last day of the query window in UTC
func (c *CostClient) dateRange() (time.Time, time.Time) {
	days := c.window.DaysToQuery
	if days < 1 {
		days = 1
	}
	endDate := c.clock.Now().AddDate(0, 0, -c.window.EndDateOffset)
	startDate := endDate.AddDate(0, 0, -(days - 1))

	// Truncate to beginning of day in UTC
	startDate = time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, time.UTC)
	endDate = time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 0, 0, 0, 0, time.UTC)
	return startDate, endDate
}

func (c *CostClient) queryDefinition(startDate, endDate time.Time) armcostmanagement.QueryDefinition {
	queryType := armcostmanagement.ExportTypeActualCost
	timeframe := armcostmanagement.TimeframeTypeCustom
	granularity := armcostmanagement.GranularityTypeDaily
	dimension := armcostmanagement.QueryColumnTypeDimension

	aggregation := map[string]*armcostmanagement.QueryAggregation{
		"totalCost": {
			Name:     stringPtr("Cost"),
			Function: functionPtr(armcostmanagement.FunctionTypeSum),
		},
	}

	return armcostmanagement.QueryDefinition{
		Type:      &queryType,
		Timeframe: &timeframe,
		TimePeriod: &armcostmanagement.QueryTimePeriod{
			From: &startDate,
			To:   &endDate,
		},
		Dataset: &armcostmanagement.QueryDataset{
			Granularity: &granularity,
			Aggregation: aggregation,
			Grouping: []*armcostmanagement.QueryGrouping{
				{Type: &dimension, Name: stringPtr("ServiceName")},
			},
		},
	}
}

// costRow is one daily row of a cost query result
type costRow struct {
	Date     string
	Service  string
	Cost     float64
	Currency string
}

// buildColumnMap creates a map of column names to their indices
func buildColumnMap(columns []*armcostmanagement.QueryColumn) map[string]int {
	columnMap := make(map[string]int)
	for i, col := range columns {
		if col != nil && col.Name != nil {
			columnMap[*col.Name] = i
		}
	}
	return columnMap
}

// getStringFromRow extracts a string value from a row by column name
func getStringFromRow(row []interface{}, columnMap map[string]int, columnName string) string {
	if idx, ok := columnMap[columnName]; ok && len(row) > idx {
		value := fmt.Sprintf("%v", row[idx])
		if value != "" && value != "<nil>" {
			return value
		}
	}
	return ""
}

// parseCost extracts and converts cost value to float64
func parseCost(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0.0
	}
}

// formatDateValue converts various date types to string
func formatDateValue(value interface{}) string {
	switch v := value.(type) {
	case int, int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// extractDigits extracts only digit characters from a string
func extractDigits(s string) string {
	var digits strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	return digits.String()
}

// formatYYYYMMDD formats date digits as YYYY-MM-DD
func formatYYYYMMDD(dateDigits string) string {
	if len(dateDigits) >= 8 {
		return fmt.Sprintf("%s-%s-%s",
			dateDigits[0:4],
			dateDigits[4:6],
			dateDigits[6:8])
	}
	return dateDigits
}

// parseDate extracts and formats date from various input types
func parseDate(value interface{}) string {
	return formatYYYYMMDD(extractDigits(formatDateValue(value)))
}

// extractService extracts service name with fallback to MeterCategory
func extractService(row []interface{}, columnMap map[string]int) string {
	if service := getStringFromRow(row, columnMap, "ServiceName"); service != "" {
		return service
	}
	if meterCat := getStringFromRow(row, columnMap, "MeterCategory"); meterCat != "" {
		return meterCat
	}
	return "Unknown"
}

// parseResponse converts an Azure API response to daily rows
func (c *CostClient) parseResponse(result armcostmanagement.QueryResult) []costRow {
	var rows []costRow

	if result.Properties == nil || result.Properties.Rows == nil {
		return rows
	}

	columnMap := buildColumnMap(result.Properties.Columns)

	costIdx, hasCost := columnMap["Cost"]
	dateIdx, hasDate := columnMap["UsageDate"]
	if !hasCost || !hasDate {
		return rows
	}

	for _, row := range result.Properties.Rows {
		if len(row) <= costIdx || len(row) <= dateIdx {
			continue
		}
		currency := getStringFromRow(row, columnMap, "Currency")
		if currency == "" {
			currency = c.window.Currency
		}
		rows = append(rows, costRow{
			Date:     parseDate(row[dateIdx]),
			Service:  extractService(row, columnMap),
			Cost:     parseCost(row[costIdx]),
			Currency: currency,
		})
	}

	return rows
}

// summarize sums daily rows per service. Ties in cost are ordered by name.
func (c *CostClient) summarize(rows []costRow) []ServiceCost {
	byService := make(map[string]*ServiceCost)
	days := make(map[string]map[string]struct{})

	for _, r := range rows {
		sc, ok := byService[r.Service]
		if !ok {
			sc = &ServiceCost{Service: r.Service, Currency: r.Currency}
			byService[r.Service] = sc
			days[r.Service] = make(map[string]struct{})
		}
		sc.Cost += r.Cost
		days[r.Service][r.Date] = struct{}{}
	}

	costs := make([]ServiceCost, 0, len(byService))
	for name, sc := range byService {
		sc.Days = len(days[name])
		costs = append(costs, *sc)
	}
	sort.Slice(costs, func(i, j int) bool {
		if costs[i].Cost != costs[j].Cost {
			return costs[i].Cost > costs[j].Cost
		}
		return costs[i].Service < costs[j].Service
	})
	return costs
}

// Helper functions
func stringPtr(s string) *string {
	return &s
}

func functionPtr(f armcostmanagement.FunctionType) *armcostmanagement.FunctionType {
	return &f
}
