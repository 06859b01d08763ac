package ports

// Beacon queues a low-priority, fire-and-forget delivery. It reports false
// when the payload could not be queued.
type Beacon interface {
	SendBeacon(url string, body []byte) bool
}
