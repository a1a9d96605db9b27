package catalog

// fieldNames pairs every snake_case spelling accepted on input with its
// canonical camelCase name. Unknown keys pass through untouched.
var fieldNames = [][2]string{
	{"plant_id", "plantId"},
	{"plant_date", "plantDate"},
	{"device_inventory", "deviceInventory"},
	{"last_updated", "lastUpdated"},
	{"device_id", "deviceId"},
	{"device_type", "deviceType"},
	{"device_name", "deviceName"},
	{"device_location", "deviceLocation"},
	{"device_status", "deviceStatus"},
	{"status_options", "statusOptions"},
	{"measure_types", "measureTypes"},
	{"available_services", "availableServices"},
	{"services_details", "servicesDetails"},
	{"service_type", "serviceType"},
	{"service_ip", "serviceIp"},
	{"user_id", "userId"},
	{"user_name", "userName"},
	{"telegram_id", "telegramId"},
}

var (
	snakeToCamel = make(map[string]string, len(fieldNames))
	camelToSnake = make(map[string]string, len(fieldNames))
)

func init() {
	for _, pair := range fieldNames {
		snakeToCamel[pair[0]] = pair[1]
		camelToSnake[pair[1]] = pair[0]
	}
}

// CanonicalName returns the camelCase name for a field spelling.
func CanonicalName(name string) string {
	if camel, ok := snakeToCamel[name]; ok {
		return camel
	}
	return name
}

// SnakeName returns the snake_case spelling of a canonical field name.
func SnakeName(name string) string {
	if snake, ok := camelToSnake[name]; ok {
		return snake
	}
	return name
}

// Normalize rewrites the keys of a decoded JSON object, recursively, to their
// canonical names. When both spellings are present the camelCase value wins.
func Normalize(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for key, value := range doc {
		canonical := CanonicalName(key)
		if canonical != key {
			if _, clash := doc[canonical]; clash {
				continue
			}
		}
		out[canonical] = normalizeValue(value)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Normalize(val)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = normalizeValue(item)
		}
		return items
	default:
		return v
	}
}

// Snake rewrites canonical keys to snake_case, recursively. It is the output
// counterpart of Normalize for clients that ask for snake_case documents.
func Snake(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for key, value := range doc {
		out[SnakeName(key)] = snakeValue(value)
	}
	return out
}

func snakeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Snake(val)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = snakeValue(item)
		}
		return items
	default:
		return v
	}
}
