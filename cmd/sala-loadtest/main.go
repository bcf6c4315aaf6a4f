// Command sala-loadtest drives many concurrent requests through one client
// while the backend keeps expiring the access cookie, and reports how many
// refresh cycles the client needed to absorb the 401s.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goSala "github.com/MrEthical07/goSala"
	"github.com/MrEthical07/goSala/cookiestore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	concurrency int
	ops         int
	expireEvery time.Duration
	latency     time.Duration
	redisAddr   string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sala-loadtest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var o options
	fs.IntVar(&o.concurrency, "concurrency", 64, "number of concurrent workers")
	fs.IntVar(&o.ops, "ops", 20000, "total requests")
	fs.DurationVar(&o.expireEvery, "expire-every", 50*time.Millisecond, "how often the backend expires the access cookie")
	fs.DurationVar(&o.latency, "refresh-latency", 5*time.Millisecond, "artificial latency of the refresh endpoint")
	fs.StringVar(&o.redisAddr, "redis-addr", "", "redis address for the cookie store; if empty, REDIS_ADDR env or miniredis is used")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if o.concurrency <= 0 || o.ops <= 0 || o.expireEvery <= 0 {
		fmt.Fprintln(stderr, "concurrency, ops, and expire-every must be > 0")
		return 2
	}

	res, err := loadtest(ctx, o, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "loadtest failed: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "---- results ----")
	printStats(stdout, "requests", res.stats)
	fmt.Fprintf(stdout, "expiries=%d refresh_calls=%d refresh_cycles=%d unauthorized=%d replays=%d\n",
		res.expiries, res.refreshCalls, res.cycles, res.unauthorized, res.replays)
	return 0
}

type result struct {
	stats        phaseStats
	expiries     int64
	refreshCalls int64
	cycles       uint64
	unauthorized uint64
	replays      uint64
}

// backend accepts the access cookie while it matches the current
// generation. A ticker bumps the generation to simulate expiry.
type backend struct {
	gen          atomic.Int64
	refreshCalls atomic.Int64
	latency      time.Duration
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		b.setAccess(w)
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "r", Path: "/", HttpOnly: true})
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/api/auth/refresh/", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		time.Sleep(b.latency)
		b.setAccess(w)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/api/auth/me/", b.protected(`{"id":1,"email":"carga@example.com","name":"Carga","roles":[],"is_staff":true}`))
	mux.HandleFunc("/api/livros/", b.protected(`{"count":0,"next":null,"results":[]}`))
	return mux
}

func (b *backend) setAccess(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    strconv.FormatInt(b.gen.Load(), 10),
		Path:     "/",
		HttpOnly: true,
	})
}

func (b *backend) protected(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("access_token")
		if err != nil || c.Value != strconv.FormatInt(b.gen.Load(), 10) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(body))
	}
}

func loadtest(ctx context.Context, o options, stdout io.Writer) (result, error) {
	addr := o.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var rdb redis.UniversalClient
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return result{}, fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Fprintf(stdout, "using miniredis at %s\n", addr)
	} else {
		fmt.Fprintf(stdout, "using redis at %s\n", addr)
	}
	rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer rdb.Close()

	be := &backend{latency: o.latency}
	srv := httptest.NewServer(be.handler())
	defer srv.Close()

	cfg := goSala.DefaultConfig()
	cfg.HTTP.BaseURL = srv.URL
	cfg.Log.Level = "error"
	cfg.Metrics.EnableLatencyHistograms = true

	client, err := goSala.New().
		WithConfig(cfg).
		WithLogger(goSala.NewLogger(cfg.Log, io.Discard)).
		WithCookieStore(cookiestore.NewRedisStore(rdb, "sala-loadtest", time.Hour)).
		Build()
	if err != nil {
		return result{}, err
	}
	defer client.Close()

	if _, err := client.Login(ctx, "carga", "carga"); err != nil {
		return result{}, fmt.Errorf("login: %w", err)
	}

	stop := make(chan struct{})
	var expiries atomic.Int64
	go func() {
		t := time.NewTicker(o.expireEvery)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				be.gen.Add(1)
				expiries.Add(1)
			}
		}
	}()

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, o.ops)
		mu        sync.Mutex
	)
	start := time.Now()
	for w := 0; w < o.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > o.ops {
					return
				}
				path := "/api/livros/"
				if r.Intn(10) == 0 {
					path = "/api/auth/me/"
				}
				t0 := time.Now()
				_, err := client.Get(ctx, path, nil)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	close(stop)

	_, _, cycles := client.RefreshState()
	snap := client.MetricsSnapshot()
	return result{
		stats:        computeStats(time.Since(start), latencies, failures),
		expiries:     expiries.Load(),
		refreshCalls: be.refreshCalls.Load(),
		cycles:       cycles,
		unauthorized: snap.Counters[goSala.MetricUnauthorized],
		replays:      snap.Counters[goSala.MetricReplay],
	}, nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
