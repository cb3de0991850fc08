package domain

// AnalyticsDailyMetric is one GA4 report row: a date and a channel group.
// ExternalID is "<propertyId>:<date>:<channelGroup>".
type AnalyticsDailyMetric struct {
	EntityBase   `bson:",inline"`
	PropertyID   string `json:"property_id" bson:"propertyId"`
	Date         string `json:"date" bson:"date"`
	ChannelGroup string `json:"channel_group" bson:"channelGroup"`
	Sessions     int64  `json:"sessions" bson:"sessions"`
	ActiveUsers  int64  `json:"active_users" bson:"activeUsers"`
	NewUsers     int64  `json:"new_users" bson:"newUsers"`
	Conversions  int64  `json:"conversions" bson:"conversions"`
	Revenue      Amount `json:"revenue,omitempty" bson:"revenue,omitempty"`
}

func (*AnalyticsDailyMetric) Kind() EntityKind { return KindAnalyticsDaily }
