package catalog

// Redacted replaces the value of every sensitive field in sample rows.
const Redacted = "REDACTED"

// sensitiveFields are matched on the exact field name only.
var sensitiveFields = map[string]struct{}{
	"email": {},
	"phone": {},
}

// Redact overwrites sensitive fields in place, whatever their type or value.
func Redact(rows []Row) {
	for _, row := range rows {
		for i := range row {
			if _, ok := sensitiveFields[row[i].Name]; ok {
				row[i].Value = String(Redacted)
			}
		}
	}
}
