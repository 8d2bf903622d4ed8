package credentials

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/mediagateway/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingRecorder struct {
	mu           sync.Mutex
	hits, misses int
}

func (r *countingRecorder) RecordCacheHit(string) {
	r.mu.Lock()
	r.hits++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordCacheMiss(string) {
	r.mu.Lock()
	r.misses++
	r.mu.Unlock()
}

func TestIssueToken_Claims(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(WithClock(clock.Now))

	token, err := m.IssueToken("ak-1", "sk-1")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		return []byte("sk-1"), nil
	}, jwt.WithTimeFunc(clock.Now), jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, "JWT", parsed.Header["typ"])
	assert.Equal(t, "HS256", parsed.Header["alg"])
	assert.Equal(t, "ak-1", claims.Issuer)
	assert.Equal(t, clock.Now().Add(1800*time.Second).Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, clock.Now().Add(-10*time.Second).Unix(), claims.NotBefore.Unix())
}

func TestIssueToken_WrongSecretFailsVerification(t *testing.T) {
	m := NewManager()
	token, err := m.IssueToken("ak", "sk")
	require.NoError(t, err)

	_, err = jwt.Parse(token, func(tok *jwt.Token) (any, error) {
		return []byte("other"), nil
	})
	assert.Error(t, err)
}

func TestIssueToken_CacheLifecycle(t *testing.T) {
	clock := newFakeClock()
	rec := &countingRecorder{}
	m := NewManager(WithClock(clock.Now), WithCacheRecorder(rec))

	first, err := m.IssueToken("ak", "sk")
	require.NoError(t, err)

	clock.Advance(1499 * time.Second)
	second, err := m.IssueToken("ak", "sk")
	require.NoError(t, err)
	assert.Equal(t, first, second, "token with more than 300s left must be reused")

	clock.Advance(1 * time.Second) // exactly 300s left
	third, err := m.IssueToken("ak", "sk")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Equal(t, 1, m.Size())

	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 2, rec.misses)
}

func TestIssueToken_SeparatePairs(t *testing.T) {
	m := NewManager()

	a, err := m.IssueToken("ak", "sk-a")
	require.NoError(t, err)
	b, err := m.IssueToken("ak", "sk-b")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, m.Size())
}

func TestInvalidate_ForcesNewToken(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(WithClock(clock.Now))

	first, err := m.IssueToken("ak", "sk")
	require.NoError(t, err)

	clock.Advance(time.Second)
	m.Invalidate("ak", "sk")

	second, err := m.IssueToken("ak", "sk")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestIssueToken_MissingCredentials(t *testing.T) {
	m := NewManager()

	_, err := m.IssueToken("", "sk")
	require.Error(t, err)
	assert.Equal(t, types.ErrAuthentication, types.GetErrorCode(err))

	ge, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 401, ge.HTTPStatus)
	assert.Equal(t, 0, m.Size())
}

func TestIssueToken_ConcurrentCallersShareOneEntry(t *testing.T) {
	clock := newFakeClock()
	rec := &countingRecorder{}
	m := NewManager(WithClock(clock.Now), WithCacheRecorder(rec))

	const workers = 32
	tokens := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := m.IssueToken("ak", "sk")
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	for _, tok := range tokens {
		assert.Equal(t, tokens[0], tok)
	}
	assert.Equal(t, 1, rec.misses, "only one caller may sign")
	assert.Equal(t, workers-1, rec.hits)
}

func TestPair_Masked(t *testing.T) {
	p := Pair{AccessKey: "ak-secret", SecretKey: "sk-secret"}

	assert.NotContains(t, p.String(), "secret")
	assert.NotContains(t, fmt.Sprintf("%v", p), "secret")

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_key":"***","secret_key":"***"}`, string(out))

	assert.Equal(t, "Pair{}", Pair{}.String())
}

func TestProperty_TokenReuseWindow(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		clock := newFakeClock()
		m := NewManager(WithClock(clock.Now))
		ak := rapid.StringMatching(`[a-z0-9]{1,16}`).Draw(rt, "access_key")
		sk := rapid.StringMatching(`[a-z0-9]{1,16}`).Draw(rt, "secret_key")

		first, err := m.IssueToken(ak, sk)
		require.NoError(rt, err)

		reuse := rapid.IntRange(0, 1499).Draw(rt, "reuse_after")
		clock.Advance(time.Duration(reuse) * time.Second)
		again, err := m.IssueToken(ak, sk)
		require.NoError(rt, err)
		assert.Equal(rt, first, again)

		// 剩余有效期不足 300s 后必然重新签发
		stale := rapid.IntRange(1500-reuse, 4000).Draw(rt, "stale_after")
		clock.Advance(time.Duration(stale) * time.Second)
		fresh, err := m.IssueToken(ak, sk)
		require.NoError(rt, err)
		assert.NotEqual(rt, first, fresh)
	})
}
