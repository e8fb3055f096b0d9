package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
	Client      *http.Client
}

type Result struct {
	TotalRequests int
	Failures      int
	StatusClasses map[string]int
}

// Run drives the identity API with registered users for cfg.Duration.
// Profiles: "auth" exercises login, "resolve" exercises credential
// resolution on /me, "mixed" alternates between the two.
func Run(ctx context.Context, cfg Config) (Result, error) {
	cfg.Profile = normalizeProfile(cfg.Profile)
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS)
	var (
		mu  sync.Mutex
		res = Result{StatusClasses: map[string]int{}}
	)
	record := func(status int, err error) {
		mu.Lock()
		defer mu.Unlock()
		res.TotalRequests++
		if err != nil {
			res.Failures++
			res.StatusClasses["error"]++
			return
		}
		class := classifyStatusClass(status)
		res.StatusClasses[class]++
		if status >= 400 {
			res.Failures++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(w)))
		username := fmt.Sprintf("loadgen-%d-%d-%d", cfg.Seed, w, time.Now().UnixNano()%1_000_000)
		password := fmt.Sprintf("lg-pass-%06d", rng.Intn(1_000_000))
		g.Go(func() error {
			status, token, err := call(gctx, cfg.Client, http.MethodPost, base+"/api/v1/auth/register", "", map[string]string{"username": username, "password": password})
			record(status, err)
			if err != nil || status != http.StatusCreated {
				return nil
			}
			for i := 0; ; i++ {
				if err := limiter.Wait(gctx); err != nil {
					return nil
				}
				var status int
				var err error
				switch pickAction(cfg.Profile, i) {
				case "login":
					var fresh string
					status, fresh, err = call(gctx, cfg.Client, http.MethodPost, base+"/api/v1/auth/login", "", map[string]string{"username": username, "password": password})
					if fresh != "" {
						token = fresh
					}
				default:
					status, _, err = call(gctx, cfg.Client, http.MethodGet, base+"/api/v1/me", token, nil)
				}
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || gctx.Err() != nil {
					return nil
				}
				record(status, err)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

func pickAction(profile string, i int) string {
	switch profile {
	case "auth":
		return "login"
	case "resolve":
		return "me"
	default:
		if i%3 == 0 {
			return "login"
		}
		return "me"
	}
}

func call(ctx context.Context, client *http.Client, method, url, token string, body any) (int, string, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, "", err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return 0, "", err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()
	var env struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env.Data.Token, nil
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func normalizeProfile(p string) string {
	switch v := strings.ToLower(strings.TrimSpace(p)); v {
	case "auth", "resolve":
		return v
	default:
		return "mixed"
	}
}
