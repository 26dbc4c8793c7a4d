package cache

import "fmt"

func RateLimitKey(clientKey string) string {
	return fmt.Sprintf("ratelimit:%s", clientKey)
}

func IntegrationKeyLookupKey(widgetKey string) string {
	return fmt.Sprintf("intkey:%s", widgetKey)
}
