package orchestrator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/duelnet/duelnet/pkg/config"
)

func TestBackoffDelayBounds(t *testing.T) {
	conf := config.DefaultClient().Reconnect
	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 12; n++ {
		want := time.Duration(1<<uint(n)) * conf.Base
		if want > conf.Cap {
			want = conf.Cap
		}
		for i := 0; i < 100; i++ {
			d := backoffDelay(n, conf, rng)
			if d < want || d >= want+conf.Jitter {
				t.Fatalf("attempt %d: delay %v outside [%v, %v)", n, d, want, want+conf.Jitter)
			}
		}
	}
}

func TestBackoffDelayNoJitter(t *testing.T) {
	conf := config.Reconnect{Base: time.Second, Cap: 30 * time.Second}
	rng := rand.New(rand.NewSource(1))
	for n, want := range []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	} {
		if d := backoffDelay(n, conf, rng); d != want {
			t.Fatalf("attempt %d: got %v, want %v", n, d, want)
		}
	}
}
