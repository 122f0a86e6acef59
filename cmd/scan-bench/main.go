package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Load client for the scan endpoint. Drives a fixed request rate with a
// worker pool and reports throughput and outcome distribution, including how
// quickly the rate limiter starts rejecting a single hot source address.

type benchResult struct {
	total       int64
	success     int64
	rateLimited int64
	invalid     int64
	errors      int64
	latencySum  int64
}

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "server base URL")
		token    = flag.String("token", os.Getenv("SCANHUB_TOKEN"), "scanner bearer token")
		uniqueID = flag.String("code", "", "unique id of an issued customer card code")
		ownerID  = flag.Int64("owner", 1, "owner id embedded in the payload")
		rps      = flag.Int("rps", 200, "target requests per second")
		workers  = flag.Int("workers", 20, "concurrent workers")
		duration = flag.Duration("duration", 30*time.Second, "test duration")
	)
	flag.Parse()

	if *token == "" || *uniqueID == "" {
		fmt.Fprintln(os.Stderr, "both -token and -code are required")
		os.Exit(1)
	}

	body, err := json.Marshal(map[string]interface{}{
		"code_type": "customer_card",
		"payload": map[string]interface{}{
			"kind":      "customer_card",
			"unique_id": *uniqueID,
			"owner_id":  *ownerID,
		},
		"options": map[string]interface{}{
			"source_address": "bench",
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode payload: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        *workers * 4,
			MaxIdleConnsPerHost: *workers * 4,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: 10 * time.Second,
	}

	limiter := rate.NewLimiter(rate.Limit(*rps), max(*rps / *workers, 1))
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var result benchResult
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				doScan(ctx, client, *baseURL, *token, body, &result)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	total := atomic.LoadInt64(&result.total)
	fmt.Println("==========================================")
	fmt.Printf("requests     : %d (%.0f/s)\n", total, float64(total)/elapsed.Seconds())
	fmt.Printf("success      : %d\n", atomic.LoadInt64(&result.success))
	fmt.Printf("rate limited : %d\n", atomic.LoadInt64(&result.rateLimited))
	fmt.Printf("invalid      : %d\n", atomic.LoadInt64(&result.invalid))
	fmt.Printf("errors       : %d\n", atomic.LoadInt64(&result.errors))
	if total > 0 {
		avg := time.Duration(atomic.LoadInt64(&result.latencySum) / total)
		fmt.Printf("avg latency  : %v\n", avg)
	}
	fmt.Println("==========================================")
}

func doScan(ctx context.Context, client *http.Client, baseURL, token string, body []byte, result *benchResult) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/scan", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&result.errors, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := client.Do(req)
	atomic.AddInt64(&result.total, 1)
	atomic.AddInt64(&result.latencySum, int64(time.Since(start)))
	if err != nil {
		atomic.AddInt64(&result.errors, 1)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		atomic.AddInt64(&result.success, 1)
	case resp.StatusCode == http.StatusTooManyRequests:
		atomic.AddInt64(&result.rateLimited, 1)
	case resp.StatusCode >= 500:
		atomic.AddInt64(&result.errors, 1)
	default:
		atomic.AddInt64(&result.invalid, 1)
	}
}
