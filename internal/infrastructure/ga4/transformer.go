package ga4

import (
	"strconv"
	"strings"

	"aibos-connector-sync/internal/domain"

	"github.com/shopspring/decimal"
)

// MetricExternalID keys one property's date and channel group
func MetricExternalID(propertyID, date, channel string) string {
	return propertyID + ":" + date + ":" + channel
}

// reportDate turns the Data API's YYYYMMDD into YYYY-MM-DD
func reportDate(raw string) string {
	if len(raw) == 8 && !strings.Contains(raw, "-") {
		return raw[:4] + "-" + raw[4:6] + "-" + raw[6:]
	}
	return raw
}

// count parses integer metrics; GA4 may render them with a decimal part
func count(raw string) int64 {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0
	}
	return d.Round(0).IntPart()
}

// TransformRow maps one daily report row. Revenue is rounded half away from
// zero to 2 places.
func TransformRow(row Row, propertyID, workspaceID string) *domain.AnalyticsDailyMetric {
	date := reportDate(row.Dimensions["date"])
	channel := row.Dimensions["sessionDefaultChannelGroup"]
	if channel == "" {
		channel = "(not set)"
	}
	return &domain.AnalyticsDailyMetric{
		EntityBase:   domain.NewEntityBase(workspaceID, domain.ConnectorGA4, MetricExternalID(propertyID, date, channel), nil),
		PropertyID:   propertyID,
		Date:         date,
		ChannelGroup: channel,
		Sessions:     count(row.Metrics["sessions"]),
		ActiveUsers:  count(row.Metrics["activeUsers"]),
		NewUsers:     count(row.Metrics["newUsers"]),
		Conversions:  count(row.Metrics["conversions"]),
		Revenue:      domain.RoundedAmount(row.Metrics["totalRevenue"], 2),
	}
}
