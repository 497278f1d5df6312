package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/punchamoorthee/trash2cash/internal/auth"
	"github.com/punchamoorthee/trash2cash/internal/domain"
)

// Config holds the benchmark settings
var (
	targetURL  string
	rounds     int
	requesters int
	secret     string
)

// Metrics
var (
	totalAccepts  uint64
	success200    uint64 // Accepted
	fail409       uint64 // Lost the race
	failOther     uint64
	brokenRounds  uint64 // Rounds with more than one winner
	setupFailures uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&rounds, "rounds", 20, "Number of contended listings")
	flag.IntVar(&requesters, "requesters", 25, "Requests (and concurrent accepts) per listing")
	flag.StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "JWT secret shared with the API")
}

type client struct {
	http  *http.Client
	authn *auth.Authenticator
}

func main() {
	flag.Parse()
	authn, err := auth.NewAuthenticator(secret)
	if err != nil {
		log.Fatalf("benchmark needs the API's JWT secret: %v", err)
	}
	c := &client{http: &http.Client{Timeout: 10 * time.Second}, authn: authn}
	log.Printf("Starting Benchmark: %d rounds | %d requesters per listing", rounds, requesters)

	start := time.Now()
	for i := 0; i < rounds; i++ {
		c.round(i)
	}
	printResults(time.Since(start))
}

// round posts a listing, has every requester ask for it and then fires all
// accepts at once. Exactly one accept may succeed.
func (c *client) round(n int) {
	owner := domain.Actor{ID: fmt.Sprintf("bench-owner-%d-%d", n, time.Now().UnixNano()), Role: domain.RoleHomeowner}

	var listing domain.Listing
	code := c.send("POST", "/api/v1/listings", owner, map[string]interface{}{
		"title": "Benchmark listing", "description": "contention round", "price": 1, "wasteType": "Plastic",
	}, &listing)
	if code != http.StatusCreated {
		log.Printf("round %d: create listing returned %d", n, code)
		atomic.AddUint64(&setupFailures, 1)
		return
	}

	ids := make([]string, 0, requesters)
	for i := 0; i < requesters; i++ {
		requester := domain.Actor{ID: fmt.Sprintf("%s-collector-%d", owner.ID, i), Role: domain.RoleCollector}
		var req domain.Request
		if code := c.send("POST", "/api/v1/listings/"+listing.ID+"/requests", requester, nil, &req); code != http.StatusCreated {
			atomic.AddUint64(&setupFailures, 1)
			continue
		}
		ids = append(ids, req.ID)
	}

	var (
		wg      sync.WaitGroup
		winners uint64
		gate    = make(chan struct{})
	)
	wg.Add(len(ids))
	for _, id := range ids {
		go func(id string) {
			defer wg.Done()
			<-gate
			code := c.send("POST", "/api/v1/requests/"+id+"/accept", owner, map[string]string{
				"pickupLocation": "Depot 1", "contactNumber": "555-010-0000",
			}, nil)
			atomic.AddUint64(&totalAccepts, 1)
			switch code {
			case http.StatusOK:
				atomic.AddUint64(&success200, 1)
				atomic.AddUint64(&winners, 1)
			case http.StatusConflict:
				atomic.AddUint64(&fail409, 1)
			default:
				atomic.AddUint64(&failOther, 1)
			}
		}(id)
	}
	close(gate)
	wg.Wait()

	if w := atomic.LoadUint64(&winners); w > 1 {
		atomic.AddUint64(&brokenRounds, 1)
		log.Printf("round %d: listing %s accepted %d times", n, listing.ID, w)
	}
}

func (c *client) send(method, path string, actor domain.Actor, payload interface{}, out interface{}) int {
	var body bytes.Buffer
	if payload != nil {
		json.NewEncoder(&body).Encode(payload)
	}
	req, _ := http.NewRequest(method, targetURL+path, &body)
	req.Header.Set("Content-Type", "application/json")
	tok, err := c.authn.Issue(actor, time.Hour)
	if err != nil {
		return 0
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalAccepts)
	s200 := atomic.LoadUint64(&success200)
	f409 := atomic.LoadUint64(&fail409)
	fErr := atomic.LoadUint64(&failOther)

	abortRate := 0.0
	if total > 0 {
		abortRate = float64(f409) / float64(total) * 100
	}

	results := map[string]interface{}{
		"rounds":           rounds,
		"requesters":       requesters,
		"duration_sec":     d.Seconds(),
		"total_accepts":    total,
		"accepted":         s200,
		"aborts_conflict":  f409,
		"abort_rate_pct":   abortRate,
		"errors":           fErr,
		"setup_failures":   atomic.LoadUint64(&setupFailures),
		"double_accepted":  atomic.LoadUint64(&brokenRounds),
		"invariant_intact": atomic.LoadUint64(&brokenRounds) == 0,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	file, err := os.Create("results_contention.json")
	if err != nil {
		log.Printf("save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
