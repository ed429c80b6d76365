package loadtest

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/G-Research/logingester/internal/logingester/model"
)

var (
	tenants      = []string{"tenant-a", "tenant-b", "tenant-c", "tenant-d"}
	routes       = []string{"/order", "/users", "/search"}
	routeWeights = []int{3, 2, 5}
	clientErrors = []int{400, 401, 403, 404, 409, 422}
	serverErrors = []int{500, 502, 503}
)

// Generator produces access log events that look like they came from a single service handling three routes for
// four tenants.  It is safe for concurrent use.
type Generator struct {
	source      string
	environment model.Environment
	clock       clock.Clock

	mu   sync.Mutex
	rand *rand.Rand
}

func NewGenerator(source string, environment model.Environment, seed int64) *Generator {
	return &Generator{
		source:      source,
		environment: environment,
		clock:       clock.RealClock{},
		rand:        rand.New(rand.NewSource(seed)),
	}
}

func (g *Generator) Next() *model.LogEvent {
	g.mu.Lock()
	route := g.pickRoute()
	tenant := tenants[g.rand.Intn(len(tenants))]
	method := "GET"
	if route == "/order" && g.rand.Float64() < 0.35 {
		method = "POST"
	}
	status, level := g.pickStatus()
	durationMs := int64(5 + g.rand.Intn(1196))
	node := fmt.Sprintf("pod-%d", 1+g.rand.Intn(50))
	g.mu.Unlock()

	occurredAt := g.clock.Now().UTC().Truncate(time.Second)
	traceId := strings.ReplaceAll(uuid.NewString(), "-", "")
	correlationId := "req-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	return &model.LogEvent{
		OccurredAt:    &occurredAt,
		TenantId:      tenant,
		Source:        g.source,
		Environment:   g.environment,
		Level:         level,
		Type:          model.TypeAccess,
		Message:       method + " " + route,
		TraceId:       &traceId,
		CorrelationId: &correlationId,
		Method:        &method,
		Path:          &route,
		StatusCode:    &status,
		DurationMs:    &durationMs,
		Properties: map[string]interface{}{
			"service":  g.source,
			"endpoint": route,
			"node":     node,
		},
	}
}

// must be called with mu held
func (g *Generator) pickRoute() string {
	total := 0
	for _, w := range routeWeights {
		total += w
	}
	n := g.rand.Intn(total)
	for i, w := range routeWeights {
		if n < w {
			return routes[i]
		}
		n -= w
	}
	return routes[len(routes)-1]
}

// 92% success, 6% client errors, 2% server errors.  Must be called with mu held.
func (g *Generator) pickStatus() (int, model.Level) {
	r := g.rand.Float64()
	switch {
	case r < 0.92:
		return 200, model.LevelInfo
	case r < 0.98:
		return clientErrors[g.rand.Intn(len(clientErrors))], model.LevelWarn
	default:
		return serverErrors[g.rand.Intn(len(serverErrors))], model.LevelError
	}
}
