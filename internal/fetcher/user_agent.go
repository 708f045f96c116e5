package fetcher

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Browser families, named the way the crawl service names its engines.
const (
	BrowserChromium = "chromium"
	BrowserFirefox  = "firefox"
	BrowserWebkit   = "webkit"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36"

var userAgents = map[string][]string{
	BrowserChromium: {
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
		defaultUserAgent,
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0",
	},
	BrowserFirefox: {
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:132.0) Gecko/20100101 Firefox/132.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.1; rv:132.0) Gecko/20100101 Firefox/132.0",
		"Mozilla/5.0 (X11; Linux x86_64; rv:132.0) Gecko/20100101 Firefox/132.0",
	},
	BrowserWebkit: {
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_1_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	},
}

type UserAgentSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewUserAgentSelector() *UserAgentSelector {
	return &UserAgentSelector{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// UserAgent picks the header for a request. An explicit agent always wins.
// Mode "random" draws from the browser family; otherwise the family's first
// agent is used so repeated requests look the same.
func (uas *UserAgentSelector) UserAgent(explicit, browser, mode string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}

	agents, ok := userAgents[strings.ToLower(strings.TrimSpace(browser))]
	if !ok {
		agents = userAgents[BrowserChromium]
	}
	if strings.EqualFold(mode, "random") {
		uas.mu.Lock()
		defer uas.mu.Unlock()
		return agents[uas.rng.Intn(len(agents))]
	}
	return agents[0]
}
