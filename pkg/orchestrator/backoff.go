package orchestrator

import (
	"math/rand"
	"time"

	"github.com/duelnet/duelnet/pkg/config"
)

// backoffDelay computes the wait before reconnect attempt n (0-based):
// the base doubled per attempt up to the cap, plus full jitter.
func backoffDelay(n int, conf config.Reconnect, rng *rand.Rand) time.Duration {
	d := conf.Base
	for i := 0; i < n; i++ {
		d *= 2
		if d >= conf.Cap {
			d = conf.Cap
			break
		}
	}
	if conf.Jitter > 0 {
		d += time.Duration(rng.Int63n(int64(conf.Jitter)))
	}
	return d
}
