package schema

// DataRecordTable represents the 'records' table
type DataRecordTable struct {
	Table     string
	ID        string
	Model     string
	Doc       string
	CreatedAt string
}

// DataRecord is the schema definition for records
var DataRecord = DataRecordTable{
	Table:     "records",
	ID:        "id",
	Model:     "model",
	Doc:       "doc",
	CreatedAt: "created_at",
}
