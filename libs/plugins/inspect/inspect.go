package inspect

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dangvanduc1999/doffy-aop/libs/aop"
	"github.com/dangvanduc1999/doffy-aop/libs/core"
)

// ServiceName is the container key of the plugin itself
const ServiceName = "inspector"

// InspectPlugin counts calls per woven method and serves the weaver's
// registry over HTTP
type InspectPlugin struct {
	aop.BasePlugin
	mu    sync.RWMutex
	stats map[string]*Stats
}

// Stats are the counters of one method
type Stats struct {
	Calls         int64         `json:"calls"`
	Errors        int64         `json:"errors"`
	TotalDuration time.Duration `json:"total_duration"`
	LastCalledAt  time.Time     `json:"last_called_at"`
}

// MethodInfo is the JSON view of a MethodDescriptor
type MethodInfo struct {
	Name      string   `json:"name"`
	Receiver  string   `json:"receiver,omitempty"`
	Signature string   `json:"signature"`
	Params    []string `json:"params"`
	Variadic  bool     `json:"variadic"`
	Result    string   `json:"result,omitempty"`
	HasError  bool     `json:"has_error"`
	Shape     string   `json:"shape"`
	Stats     Stats    `json:"stats"`
}

func NewInspectPlugin() *InspectPlugin {
	return &InspectPlugin{
		stats: make(map[string]*Stats),
	}
}

func (p *InspectPlugin) Name() string {
	return "inspect"
}

func (p *InspectPlugin) Version() string {
	return "1.0.0"
}

func (p *InspectPlugin) Register(container core.DIContainer) error {
	return container.RegisterProvider(core.NewValueProvider(ServiceName, p))
}

func (p *InspectPlugin) Interceptors() []aop.Interceptor {
	return []aop.Interceptor{aop.InterceptorFunc(p.intercept)}
}

func (p *InspectPlugin) intercept(inv *aop.Invocation, next aop.Handler) (interface{}, error) {
	start := time.Now()
	res, err := next(inv)
	p.record(inv.Method.QualifiedName(), start, err)
	return res, err
}

func (p *InspectPlugin) record(name string, start time.Time, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.stats[name]
	if !ok {
		s = &Stats{}
		p.stats[name] = s
	}
	s.Calls++
	if err != nil {
		s.Errors++
	}
	s.TotalDuration += time.Since(start)
	s.LastCalledAt = start
}

// Stats returns a copy of the counters for a qualified method name
func (p *InspectPlugin) Stats(name string) Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s, ok := p.stats[name]; ok {
		return *s
	}
	return Stats{}
}

func (p *InspectPlugin) describe(m *aop.MethodDescriptor) MethodInfo {
	info := MethodInfo{
		Name:      m.QualifiedName(),
		Signature: m.Type.String(),
		Params:    make([]string, len(m.Params)),
		Variadic:  m.Variadic,
		HasError:  m.HasError,
		Shape:     m.Shape.String(),
		Stats:     p.Stats(m.QualifiedName()),
	}
	if m.Receiver != nil {
		info.Receiver = m.Receiver.String()
	}
	if m.Result != nil {
		info.Result = m.Result.String()
	}
	for i, t := range m.Params {
		info.Params[i] = t.String()
	}
	return info
}

// Routes registers GET /aop/methods and GET /aop/methods/:name for w
func (p *InspectPlugin) Routes(router gin.IRouter, w *aop.Weaver) {
	group := router.Group("/aop")

	group.GET("/methods", func(c *gin.Context) {
		methods := w.Methods()
		out := make([]MethodInfo, 0, len(methods))
		for _, m := range methods {
			out = append(out, p.describe(m))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		c.JSON(http.StatusOK, gin.H{"methods": out, "count": len(out)})
	})

	group.GET("/methods/:name", func(c *gin.Context) {
		name := c.Param("name")
		for _, m := range w.Methods() {
			if m.QualifiedName() == name || m.Name == name {
				c.JSON(http.StatusOK, p.describe(m))
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "method not found", "name": name})
	})
}
