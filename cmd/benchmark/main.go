package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // PAYMENT_SUCCESS / DYNAMIC_ROUTE_WELCOME
	reject400     uint64 // Guard rejections (low balance, insufficient fare)
	fail404       uint64 // Unknown cards / buses
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:5000", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		payload := map[string]interface{}{
			"cardUID": pickCard(),
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/process-fare", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 200:
			atomic.AddUint64(&success200, 1)
		case 400, 403:
			atomic.AddUint64(&reject400, 1)
		case 404:
			atomic.AddUint64(&fail404, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func pickCard() string {
	// Assumes the seeder's 1000 cards (CARD-0000 .. CARD-0999)
	totalCards := 1000

	if workload == "hotspot" {
		// Hotspot: 90% of taps come from 2 cards, stressing the per-rider
		// row lock on concurrent settlement.
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return "CARD-0001"
			}
			return "CARD-0002"
		}
	}

	return fmt.Sprintf("CARD-%04d", rand.Intn(totalCards))
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s200 := atomic.LoadUint64(&success200)
	r400 := atomic.LoadUint64(&reject400)
	f404 := atomic.LoadUint64(&fail404)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	rejectRate := float64(r400) / float64(total) * 100

	results := map[string]interface{}{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  tps,
		"settled":         s200,
		"guard_rejected":  r400,
		"not_found":       f404,
		"reject_rate_pct": rejectRate,
		"errors":          fErr,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, _ := os.Create(filename)
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
