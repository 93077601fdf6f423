package tatrapay

import (
	"sync"
	"time"
)

// tokenExpirySkew is subtracted from the declared token lifetime so a token
// is never used to authenticate a call that would observe it expire
// mid-flight. Also absorbs clock skew between us and the gateway.
const tokenExpirySkew = 60 * time.Second

// tokenCache holds a single cached bearer token. One credential set is
// assumed per provider instance; refresh is idempotent and the last writer
// wins. The clock is injectable for tests.
type tokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func newTokenCache() *tokenCache {
	return &tokenCache{now: time.Now}
}

// get returns the cached token if it is still inside the safety margin
func (c *tokenCache) get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == "" || !c.now().Before(c.expiresAt.Add(-tokenExpirySkew)) {
		return "", false
	}
	return c.token, true
}

// set stores a freshly issued token with its declared lifetime in seconds
func (c *tokenCache) set(token string, expiresIn int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
	c.expiresAt = c.now().Add(time.Duration(expiresIn) * time.Second)
}
