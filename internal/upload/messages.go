package upload

// File level messages.
const (
	MsgEmptyFile           = "CSV file is empty or invalid"
	MsgNoFileProvided      = "No CSV file provided"
	MsgInvalidFileType     = "File must be a CSV file"
	MsgInvalidHeaders      = "Invalid CSV headers"
	MsgInsufficientColumns = "Insufficient columns in CSV row"
	MsgFileProcessingError = "File processing error"
)

// Row level messages. MsgReadingTooOldFmt takes the candidate timestamp
// followed by the stored latest timestamp.
const (
	MsgInvalidAccountIDFormat  = "Invalid AccountId format"
	MsgInvalidDateTimeFormat   = "Invalid MeterReadingDateTime format (expected: dd/MM/yyyy HH:mm)"
	MsgInvalidMeterValueFormat = "Invalid MeterReadValue format"
	MsgValueOutOfRangeFmt      = "Reading value must be between %d and %d (NNNNN format)"
	MsgAccountNotFoundFmt      = "Account with AccountId %d not found"
	MsgDuplicateEntry          = "Duplicate meter reading entry (same AccountId, DateTime, and Value)"
	MsgReadingTooOldFmt        = "New reading date (%s) must be newer than existing latest reading (%s)"
	MsgDatabaseErrorFmt        = "Database error: %s"
)
