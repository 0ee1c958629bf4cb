package endpoint

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// Supplier hands out host CMS origins in round-robin order.
type Supplier interface {
	Get() string
	Len() int
}

type supplier struct {
	origins []string
	current int
	mutex   sync.Mutex
}

// NewSupplier probes every origin in parallel and keeps the healthy ones. When
// none answers, all origins are kept so requests can still be attempted once
// the CMS comes up.
func NewSupplier(ctx context.Context, origins []string, healthPath string) Supplier {
	if len(origins) == 0 {
		return &supplier{origins: []string{}}
	}

	healthyCh := make(chan string, len(origins))
	semaphore := make(chan struct{}, 8)
	var wg sync.WaitGroup

	log.Infof("🔄 Probing %d CMS origins...", len(origins))

	for i, origin := range origins {
		wg.Add(1)

		go func(index int, origin string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			log.Debugf("🔄 Probing origin %d/%d: %s", index+1, len(origins), origin)

			if isHealthy(ctx, origin, healthPath) {
				healthyCh <- origin
				log.Infof("✅ Origin %s is answering", origin)
			} else {
				log.Warnf("⚠️ Origin %s is not answering, skipping", origin)
			}
		}(i, strings.TrimRight(origin, "/"))
	}

	wg.Wait()
	close(healthyCh)

	healthy := make([]string, 0, len(origins))
	for origin := range healthyCh {
		healthy = append(healthy, origin)
	}

	if len(healthy) == 0 {
		log.Warnf("⚠️ No CMS origin answered the probe, keeping all %d", len(origins))
		for _, origin := range origins {
			healthy = append(healthy, strings.TrimRight(origin, "/"))
		}
	} else {
		log.Infof("✅ Endpoint supplier initialized with %d healthy origins out of %d", len(healthy), len(origins))
	}

	return &supplier{origins: healthy}
}

// Static returns a supplier over origins without probing them.
func Static(origins ...string) Supplier {
	trimmed := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed = append(trimmed, strings.TrimRight(origin, "/"))
	}
	return &supplier{origins: trimmed}
}

// Get returns the next origin, or "" when there is none.
func (s *supplier) Get() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.origins) == 0 {
		return ""
	}

	origin := s.origins[s.current]
	s.current = (s.current + 1) % len(s.origins)

	return origin
}

func (s *supplier) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.origins)
}

func isHealthy(ctx context.Context, origin, healthPath string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0)
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Get(origin + healthPath)

	if err != nil {
		log.Debugf("Origin probe failed for %s: %v", origin, err)
		return false
	}

	if resp.IsError() {
		log.Debugf("Origin probe failed for %s with status: %s", origin, resp.Status())
		return false
	}

	return true
}
