package upload

// Rules holds the fixed CSV layout and business bounds. It is built once at
// startup and shared read-only by the parser and validator.
type Rules struct {
	Headers         []string
	MinColumns      int
	MinValue        int
	MaxValue        int
	DateTimeLayouts []string
	DisplayLayout   string
	FileExtension   string
}

// DefaultRules returns the meter reading CSV rules.
func DefaultRules() Rules {
	return Rules{
		Headers:    []string{"AccountId", "MeterReadingDateTime", "MeterReadValue"},
		MinColumns: 3,
		MinValue:   0,
		MaxValue:   99999,
		DateTimeLayouts: []string{
			"02/01/2006 15:04", // dd/MM/yyyy HH:mm
			"2/01/2006 15:04",  // d/MM/yyyy HH:mm
			"02/1/2006 15:04",  // dd/M/yyyy HH:mm
			"2/1/2006 15:04",   // d/M/yyyy HH:mm
		},
		DisplayLayout: "02/01/2006 15:04",
		FileExtension: ".csv",
	}
}
