package sales

const (
	TopicSaleCompleted  = "pos.sale.completed"
	TopicStockRestocked = "pos.stock.restocked"
)

// Partition key = sale_id so every event of one sale stays ordered.
func PartitionKey(saleID string) []byte { return []byte(saleID) }
