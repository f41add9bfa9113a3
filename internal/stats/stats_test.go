package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewatch/mercadolivre-scraper/internal/models"
)

func TestRecordClassifiesOutcomes(t *testing.T) {
	c := NewCollector()

	c.Record("browser", models.StatusSuccess)
	c.Record("browser", models.StatusBlocked)
	c.Record("browser", models.StatusRateLimited)
	c.Record("browser", models.StatusTimeout)
	c.Record("browser", models.StatusTransient)
	c.RecordTokenRefresh("ml_api")

	snap := c.Snapshot()
	browser := snap["browser"]
	assert.Equal(t, int64(5), browser.Attempts)
	assert.Equal(t, int64(1), browser.Successes)
	assert.Equal(t, int64(1), browser.Blocked)
	assert.Equal(t, int64(1), browser.RateLimited)
	assert.Equal(t, int64(2), browser.Errors)
	assert.Equal(t, "20.0%", browser.SuccessRate)
	require.NotNil(t, browser.LastSuccess)

	assert.Equal(t, int64(1), snap["ml_api"].TokenRefreshes)
	assert.Nil(t, snap["ml_api"].LastSuccess)
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	c := NewCollector()

	const workers = 16
	const perWorker = 500

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				c.Record("proxy", models.StatusSuccess)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()["proxy"]
	assert.Equal(t, int64(workers*perWorker), snap.Attempts)
	assert.Equal(t, int64(workers*perWorker), snap.Successes)
}

func TestReset(t *testing.T) {
	c := NewCollector()
	c.Record("browser", models.StatusSuccess)
	c.Reset()
	assert.Empty(t, c.Snapshot())
}
