package jamf

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/fjacquet/jamfpro/internal/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newBasicMock returns a builder already serving the Basic token endpoint
// and requiring its token on every other path.
func newBasicMock() *testutil.MockServerBuilder {
	return testutil.NewMockServer().
		WithBasicToken(testutil.TestUsername, testutil.TestPassword, testutil.TestToken, time.Hour).
		RequireBearer(testutil.TestToken)
}

func newTestClient(t *testing.T, mock *testutil.MockServer, opts ...Option) *Client {
	t.Helper()
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	opts = append([]Option{WithLogger(logger), WithTimeout(5 * time.Second)}, opts...)
	c, err := New(mock.URL, BasicCredentials(testutil.TestUsername, testutil.TestPassword), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
