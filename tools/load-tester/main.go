package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the shop server")
	botHeader := flag.String("bot-header", "X-Is-Bot", "Bot classification header to set")
	botRatio := flag.Float64("bot-ratio", 0.3, "Fraction of requests flagged as bot traffic")
	checkoutRatio := flag.Float64("checkout-ratio", 0.4, "Fraction of requests hitting checkout instead of login")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 100, "Requests per second limit")
	flag.Parse()

	log.Printf("Starting load test on %s", *baseURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d, Bot ratio: %.2f", *concurrency, *duration, *rps, *botRatio)

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

			for {
				select {
				case <-ctx.Done():
					return
				default:
					limiter.Wait(ctx) // Wait for token from rate limiter

					var target, payload string
					if rng.Float64() < *checkoutRatio {
						target = *baseURL + "/api/checkout"
						payload = fmt.Sprintf(`{"items": [{"productId": "%s", "quantity": %d}]}`, uuid.NewString(), rng.Intn(5)+1)
					} else {
						target = *baseURL + "/api/auth/login"
						payload = fmt.Sprintf(`{"username": "user-%s", "password": "hunter2"}`, uuid.NewString()[:8])
					}

					req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewBufferString(payload))
					if err != nil {
						continue // Should not happen
					}
					req.Header.Set("Content-Type", "application/json")
					req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", rng.Intn(255)))
					if rng.Float64() < *botRatio {
						req.Header.Set(*botHeader, "true")
						req.Header.Set("User-Agent", "loadbot/1.0")
					}

					resp, err := client.Do(req)
					if err != nil {
						errorCount.Add(1)
						continue
					}

					// Failed logins still count: a 401 is exactly the
					// bot traffic the dashboard exists to show.
					if resp.StatusCode < 500 {
						successCount.Add(1)
					} else {
						errorCount.Add(1)
					}
					resp.Body.Close()
				}
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Recorded (non-5xx): %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
}
