package journal

// logKey returns the log-family key for a single (domain, item, timestamp)
// mutation: "<domain>:<item>:<timestamp>".
func logKey(domain, item, ts string) string {
	return domain + ":" + item + ":" + ts
}

// listKey returns the list-family key for an item's per-item journal:
// "<domain>:<item>".
func listKey(domain, item string) string {
	return domain + ":" + item
}
