// wafcheck probes a running deployment with attack-shaped requests and
// reports the status-code distribution.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"sync"
	"time"
)

func main() {
	target := flag.String("target", "http://localhost:8080", "Target URL")
	concurrency := flag.Int("c", 10, "Concurrent clients")
	requests := flag.Int("n", 100, "Total requests")
	mode := flag.String("mode", "clean", "Payload mode: clean, sqli, xss, traversal, cmd")
	flag.Parse()

	fmt.Printf("probing %s: c=%d n=%d mode=%s\n", *target, *concurrency, *requests, *mode)

	results := make(chan int, *requests)
	var wg sync.WaitGroup
	perClient := *requests / *concurrency

	start := time.Now()
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 5 * time.Second}
			for j := 0; j < perClient; j++ {
				url := *target
				switch *mode {
				case "sqli":
					url += "/observers/1?filter=1' OR '1'='1"
				case "xss":
					url += "/observers/1?q=<script>alert(1)</script>"
				case "traversal":
					url += "/observers/..%2f..%2fetc%2fpasswd"
				case "cmd":
					url += "/observers/1?exec=;cat /etc/passwd"
				}
				resp, err := client.Get(url)
				if err != nil {
					results <- 0
					continue
				}
				results <- resp.StatusCode
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()
	close(results)

	elapsed := time.Since(start)
	counts := make(map[int]int)
	total := 0
	for code := range results {
		counts[code]++
		total++
	}

	fmt.Printf("\n%d requests in %v (%.1f req/s)\n", total, elapsed, float64(total)/elapsed.Seconds())
	for code, count := range counts {
		label := ""
		switch code {
		case 200:
			label = "OK"
		case 400:
			label = "Bad Request (threat scan)"
		case 403:
			label = "Forbidden (block/allow list)"
		case 429:
			label = "Too Many Requests (rate limit)"
		case 0:
			label = "connection error"
		}
		fmt.Printf("  %d [%s]: %d\n", code, label, count)
	}
}
