// Package tracking owns the engagement feedback loop: the public open/click/
// unsubscribe endpoints, the provider delivery webhook, and the redis queue
// that decouples request handling from database writes. Endpoints stay fast
// and dumb; the consumer applies the status changes.
package tracking
