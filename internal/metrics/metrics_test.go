package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type captureRecorder struct {
	noopRecorder
	mu    sync.Mutex
	ops   map[string]int
	tools map[string]int
}

func (c *captureRecorder) IncDBOpTotal(op string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.ops[op]++
	}
}

func (c *captureRecorder) IncToolTotal(tool string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !success {
		c.tools[tool]++
	}
}

func TestTimeHelpersReportToRecorder(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetRecorder(prev) })

	rec := &captureRecorder{ops: map[string]int{}, tools: map[string]int{}}
	SetRecorder(rec)

	TimeOp("db_upsert_entity")(true)
	TimeOp("db_upsert_entity")(true)
	TimeOp("db_upsert_entity")(false)
	TimeTool("read_graph")(false)

	assert.Equal(t, 2, rec.ops["db_upsert_entity"])
	assert.Equal(t, 1, rec.tools["read_graph"])
}

func TestNoopRecorderIsDefault(t *testing.T) {
	r := Default()
	assert.NotNil(t, r)
	r.ObservePoolStats(1, 2)
	r.IncStmtCacheHit("prepare")
}
